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

package planner

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/nexusforge/substrate/internal/corerr"
	"github.com/nexusforge/substrate/internal/workflow"
)

const systemPrompt = `You are a workflow planner. Given a user request, decompose it into a
JSON object with this exact shape and nothing else, no prose, no markdown fences:

{
  "steps": [
    {"name": "string", "service": "sandbox|fileprocess|cyberagent|mageagent|graphrag",
     "operation": "string", "input": {}, "depends_on": ["stepName", ...]}
  ],
  "confidence": 0.0,
  "clarifications": ["string", ...]
}

"depends_on" lists the "name" of prior steps this step needs to have completed first.
Leave "clarifications" empty unless the request is genuinely ambiguous.`

// rawPlan mirrors the JSON contract asked of the model in systemPrompt.
type rawPlan struct {
	Steps []struct {
		Name      string                 `json:"name"`
		Service   string                 `json:"service"`
		Operation string                 `json:"operation"`
		Input     map[string]interface{} `json:"input"`
		DependsOn []string               `json:"depends_on"`
	} `json:"steps"`
	Confidence     float64  `json:"confidence"`
	Clarifications []string `json:"clarifications"`
}

// Options tunes a single Plan call.
type Options struct {
	TenantID string
	Priority int
	Mode     workflow.Mode
	Timeout  time.Duration
}

// Planner turns natural-language requests into validated workflow.Plan
// values by delegating decomposition to an llms.Model and checking the
// result against a closed OperationRegistry (spec.md §4.4).
type Planner struct {
	model    llms.Model
	registry OperationRegistry
	log      *zap.Logger
}

// New builds a Planner. A nil registry falls back to DefaultOperationRegistry.
func New(model llms.Model, registry OperationRegistry, log *zap.Logger) *Planner {
	if registry == nil {
		registry = DefaultOperationRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{model: model, registry: registry, log: log}
}

// Plan decomposes request into a workflow.Plan, computing its parallel
// groups and blending the model's self-reported confidence with the
// fraction of steps the registry actually recognized.
func (p *Planner) Plan(ctx context.Context, request string, opts Options) (*workflow.Plan, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, request),
	}
	resp, err := p.model.GenerateContent(ctx, messages)
	if err != nil {
		return nil, corerr.New(corerr.KindUnavailable, "planner.GenerateContent", err)
	}
	if len(resp.Choices) == 0 {
		return nil, corerr.New(corerr.KindPermanent, "planner.GenerateContent", corerr.FailedTo("produce a choice", nil))
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(extractJSON(resp.Choices[0].Content)), &raw); err != nil {
		return nil, corerr.New(corerr.KindDataIntegrity, "planner.parse", corerr.ParseError("plan", "json", err))
	}
	if len(raw.Steps) == 0 {
		return nil, corerr.New(corerr.KindValidation, "planner.Plan", corerr.ValidationError("steps", "must contain at least one step"))
	}

	nameToID := make(map[string]string, len(raw.Steps))
	steps := make([]*workflow.WorkflowStep, 0, len(raw.Steps))
	recognized := 0

	for _, rs := range raw.Steps {
		id := uuid.NewString()
		nameToID[rs.Name] = id
		service := workflow.Service(rs.Service)
		if p.registry.Known(service, rs.Operation) {
			recognized++
		} else {
			return nil, corerr.New(corerr.KindValidation, "planner.Plan",
				corerr.ValidationError("steps", "unknown operation "+rs.Service+"."+rs.Operation))
		}
		timeout := workflow.DefaultTimeouts[service]
		steps = append(steps, &workflow.WorkflowStep{
			ID:        id,
			Name:      rs.Name,
			Service:   service,
			Operation: rs.Operation,
			Input:     rs.Input,
			Timeout:   timeout,
			Status:    workflow.StepPending,
		})
	}

	for i, rs := range raw.Steps {
		for _, depName := range rs.DependsOn {
			depID, ok := nameToID[depName]
			if !ok {
				return nil, corerr.New(corerr.KindValidation, "planner.Plan",
					corerr.ValidationError("depends_on", "unknown step name "+depName))
			}
			steps[i].DependsOn = append(steps[i].DependsOn, depID)
		}
	}

	groups, err := workflow.ComputeParallelGroups(steps)
	if err != nil {
		return nil, corerr.New(corerr.KindValidation, "planner.Plan", err)
	}

	registryConfidence := float64(recognized) / float64(len(raw.Steps))
	confidence := raw.Confidence
	if registryConfidence < confidence {
		confidence = registryConfidence
	}

	mode := opts.Mode
	if mode == "" {
		mode = workflow.ModeBestEffort
	}

	plan := &workflow.Plan{
		ID:              uuid.NewString(),
		CorrelationID:   uuid.NewString(),
		OriginalRequest: request,
		Steps:           steps,
		ParallelGroups:  groups,
		Status:          workflow.PlanPending,
		Mode:            mode,
		Priority:        opts.Priority,
		Timeout:         opts.Timeout,
		CreatedAt:       time.Now(),
		TenantID:        opts.TenantID,
		Confidence:      confidence,
		Clarifications:  raw.Clarifications,
	}

	p.log.Info("planned workflow",
		zap.String("plan_id", plan.ID),
		zap.Int("steps", len(steps)),
		zap.Float64("confidence", confidence))

	return plan, nil
}

// extractJSON strips any surrounding markdown code fence a model adds
// despite being asked not to.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
