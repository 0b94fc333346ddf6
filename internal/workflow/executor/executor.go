/*
Copyright 2026 The NexusForge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package executor runs a workflow.Plan's parallel groups against the
// downstream adapters.Bundle, resolving inter-step references and
// propagating failures according to the plan's Mode (spec.md §4.5).
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nexusforge/substrate/internal/adapters"
	"github.com/nexusforge/substrate/internal/corerr"
	"github.com/nexusforge/substrate/internal/workflow"
)

// DefaultMaxConcurrentSteps bounds how many steps within one parallel group
// run at once (spec.md §4.5).
const DefaultMaxConcurrentSteps = 5

// Outcome classifies how a completed run fared.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeDegraded  Outcome = "degraded"
	OutcomeFailed    Outcome = "failed"
)

// Report summarizes one Run.
type Report struct {
	Outcome                  Outcome
	ParallelizationEfficiency float64
}

// Executor dispatches a Plan's steps to a Bundle, respecting each parallel
// group as a synchronization barrier and each step's own timeout.
type Executor struct {
	bundle             *adapters.Bundle
	maxConcurrentSteps int
	log                *zap.Logger
}

// New builds an Executor. maxConcurrentSteps <= 0 falls back to
// DefaultMaxConcurrentSteps.
func New(bundle *adapters.Bundle, maxConcurrentSteps int, log *zap.Logger) *Executor {
	if maxConcurrentSteps <= 0 {
		maxConcurrentSteps = DefaultMaxConcurrentSteps
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{bundle: bundle, maxConcurrentSteps: maxConcurrentSteps, log: log}
}

// Run executes plan group by group. Within a group, up to
// maxConcurrentSteps steps run concurrently; a group never starts until its
// predecessor group has fully settled, since later groups may reference
// earlier steps' results.
func (e *Executor) Run(ctx context.Context, plan *workflow.Plan) (Report, error) {
	now := time.Now()
	plan.StartedAt = &now
	plan.Status = workflow.PlanRunning

	results := make(map[string]*workflow.StepResult, len(plan.Steps))
	skipped := make(map[string]bool)
	var resultsMu sync.Mutex

	var stepDurationSum time.Duration
	runStart := time.Now()

	for _, group := range plan.ParallelGroups {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.maxConcurrentSteps)

		for _, stepID := range group {
			stepID := stepID
			step := plan.StepByID(stepID)
			if step == nil {
				continue
			}

			g.Go(func() error {
				resultsMu.Lock()
				blockedBy, isSkipped := e.skipIfDependencyFailed(step, plan.Mode, skipped)
				resultsMu.Unlock()
				if isSkipped {
					res := &workflow.StepResult{
						StepID: step.ID,
						Status: workflow.StepSkipped,
						Error: &workflow.StepError{
							Code:    workflow.ErrStepException,
							Message: "skipped: upstream dependency " + blockedBy + " failed",
						},
					}
					step.Status = workflow.StepSkipped
					resultsMu.Lock()
					results[step.ID] = res
					if step.Name != "" {
						results[step.Name] = res
					}
					skipped[step.ID] = true
					resultsMu.Unlock()
					return nil
				}

				res := e.runStep(gctx, step, results, &resultsMu)

				resultsMu.Lock()
				results[step.ID] = res
				if step.Name != "" {
					results[step.Name] = res
				}
				if res.Status == workflow.StepFailed {
					skipped[step.ID] = true
				}
				stepDurationSum += res.Duration()
				resultsMu.Unlock()
				return nil
			})
		}

		// Errors from individual steps are recorded on their StepResult, not
		// propagated through the errgroup; every step function returns nil,
		// so Wait serves only as the barrier between groups.
		_ = g.Wait()
	}

	wallClock := time.Since(runStart)
	finish := time.Now()
	plan.CompletedAt = &finish

	outcome := classify(plan, results)
	plan.Status = planStatusFor(outcome)

	efficiency := 1.0
	if wallClock > 0 {
		efficiency = float64(stepDurationSum) / float64(wallClock)
		if efficiency > 1 {
			efficiency = 1
		}
	}

	for _, step := range plan.Steps {
		if res, ok := results[step.ID]; ok {
			step.Error = res.Error
		}
	}

	return Report{Outcome: outcome, ParallelizationEfficiency: efficiency}, nil
}

// skipIfDependencyFailed reports whether step must be skipped under strict
// mode because one of its dependencies already failed or was itself
// skipped.
func (e *Executor) skipIfDependencyFailed(step *workflow.WorkflowStep, mode workflow.Mode, skipped map[string]bool) (string, bool) {
	if mode != workflow.ModeStrict {
		return "", false
	}
	for _, dep := range step.DependsOn {
		if skipped[dep] {
			return dep, true
		}
	}
	return "", false
}

func (e *Executor) runStep(ctx context.Context, step *workflow.WorkflowStep, results map[string]*workflow.StepResult, mu *sync.Mutex) *workflow.StepResult {
	start := time.Now()
	step.StartedAt = &start
	step.Status = workflow.StepRunning

	mu.Lock()
	resolved := resolveInput(step.Input, results)
	mu.Unlock()

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = workflow.DefaultTimeouts[step.Service]
	}
	stepCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, err := dispatch(stepCtx, e.bundle, step, resolved)
	end := time.Now()
	step.CompletedAt = &end

	res := &workflow.StepResult{
		StepID:      step.ID,
		Data:        data,
		StartedAt:   start,
		CompletedAt: end,
	}

	if err != nil {
		res.Status = workflow.StepFailed
		res.Error = classifyStepError(stepCtx, err)
		step.Status = workflow.StepFailed
		e.log.Warn("step failed",
			zap.String("step_id", step.ID),
			zap.String("service", string(step.Service)),
			zap.Error(err))
	} else {
		res.Status = workflow.StepCompleted
		step.Status = workflow.StepCompleted
	}
	return res
}

// classifyStepError maps a dispatch error onto the closed ErrorCode
// taxonomy, per spec.md §4.5.
func classifyStepError(ctx context.Context, err error) *workflow.StepError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &workflow.StepError{Code: workflow.ErrTimeout, Message: err.Error(), Recoverable: true}
	}
	switch corerr.KindOf(err) {
	case corerr.KindValidation:
		return &workflow.StepError{Code: workflow.ErrValidationFailed, Message: err.Error(), Recoverable: false}
	case corerr.KindUnavailable, corerr.KindTransient:
		return &workflow.StepError{Code: workflow.ErrUnavailable, Message: err.Error(), Recoverable: true}
	case corerr.KindCancelled:
		return &workflow.StepError{Code: workflow.ErrStepException, Message: err.Error(), Recoverable: false}
	default:
		return &workflow.StepError{Code: workflow.ErrServiceError, Message: err.Error(), Recoverable: false}
	}
}

// classify derives the run's overall Outcome from its step results and mode.
func classify(plan *workflow.Plan, results map[string]*workflow.StepResult) Outcome {
	anyFailed := false
	allOK := true
	for _, step := range plan.Steps {
		res, ok := results[step.ID]
		if !ok {
			continue
		}
		if res.Status == workflow.StepFailed || res.Status == workflow.StepSkipped {
			anyFailed = true
			allOK = false
		}
	}
	switch {
	case allOK:
		return OutcomeCompleted
	case plan.Mode == workflow.ModeStrict && anyFailed:
		return OutcomeFailed
	default:
		return OutcomeDegraded
	}
}

func planStatusFor(o Outcome) workflow.PlanStatus {
	switch o {
	case OutcomeCompleted:
		return workflow.PlanCompleted
	case OutcomeDegraded:
		return workflow.PlanDegraded
	default:
		return workflow.PlanFailed
	}
}
