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

// Package metrics is the typed counter/gauge/histogram registry shared by
// every subsystem. It is a process-wide structure mutated by many
// goroutines; every exported method is safe for concurrent use because the
// underlying prometheus collectors already serialize observations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the typed, label-aware metrics surface the rest of the
// substrate observes through. It is constructor-injected rather than a
// package-level global so multiple instances (e.g. in tests) never collide.
type Registry struct {
	reg prometheus.Registerer

	rpcCallsTotal   *prometheus.CounterVec
	rpcCallDuration *prometheus.HistogramVec

	breakerTransitionsTotal *prometheus.CounterVec
	breakerStateGauge       *prometheus.GaugeVec

	streamChunksWrittenTotal      *prometheus.CounterVec
	streamChunksPersistedTotal    *prometheus.CounterVec
	streamChunksDeadLetteredTotal *prometheus.CounterVec
	streamQueueDepth              *prometheus.GaugeVec
	streamBatchPersistDuration    *prometheus.HistogramVec

	patternLookupsTotal          *prometheus.CounterVec
	patternConfidenceUpdateTotal *prometheus.CounterVec
	patternsPrunedTotal          prometheus.Counter
	patternStoreSize             prometheus.Gauge

	workflowPlansTotal        *prometheus.CounterVec
	workflowStepsTotal        *prometheus.CounterVec
	workflowExecutionDuration *prometheus.HistogramVec
	workflowParallelEfficiency prometheus.Histogram
}

// New builds a Registry that registers its collectors onto reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with other suites;
// pass prometheus.DefaultRegisterer in production so promhttp.Handler()
// (owned by the transport layer, out of this core's scope) can export it.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		reg: reg,
		rpcCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substrate_rpc_calls_total",
			Help: "Total resilient RPC client calls, by downstream, operation and outcome.",
		}, []string{"downstream", "operation", "outcome"}),
		rpcCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "substrate_rpc_call_duration_seconds",
			Help:    "Resilient RPC client call latency, by downstream and operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"downstream", "operation"}),
		breakerTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substrate_breaker_transitions_total",
			Help: "Circuit breaker state transitions, by downstream, from-state and to-state.",
		}, []string{"downstream", "from", "to"}),
		breakerStateGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "substrate_breaker_state",
			Help: "Current circuit breaker state per downstream (0=closed, 1=half_open, 2=open).",
		}, []string{"downstream"}),
		streamChunksWrittenTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substrate_stream_chunks_written_total",
			Help: "Chunks accepted by a streaming pipeline, by stream domain.",
		}, []string{"domain"}),
		streamChunksPersistedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substrate_stream_chunks_persisted_total",
			Help: "Chunks durably persisted to the knowledge store, by stream domain.",
		}, []string{"domain"}),
		streamChunksDeadLetteredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substrate_stream_chunks_dead_lettered_total",
			Help: "Chunks routed to the dead-letter queue, by stream domain.",
		}, []string{"domain"}),
		streamQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "substrate_stream_queue_depth",
			Help: "Current in-memory queue depth per stream.",
		}, []string{"stream_id"}),
		streamBatchPersistDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "substrate_stream_batch_persist_duration_seconds",
			Help:    "Latency of a batch persistence call, by stream domain.",
			Buckets: prometheus.DefBuckets,
		}, []string{"domain"}),
		patternLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substrate_pattern_lookups_total",
			Help: "Pattern store lookups, by outcome (hit/miss).",
		}, []string{"outcome"}),
		patternConfidenceUpdateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substrate_pattern_confidence_updates_total",
			Help: "Pattern confidence updates, by outcome (success/failure).",
		}, []string{"outcome"}),
		patternsPrunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "substrate_patterns_pruned_total",
			Help: "Patterns deleted for exceeding the failure-rate pruning threshold.",
		}),
		patternStoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "substrate_pattern_store_size",
			Help: "Current number of patterns held in the store.",
		}),
		workflowPlansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substrate_workflow_plans_total",
			Help: "Workflow plans created, by mode (strict/best-effort).",
		}, []string{"mode"}),
		workflowStepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substrate_workflow_steps_total",
			Help: "Workflow steps executed, by service and final status.",
		}, []string{"service", "status"}),
		workflowExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "substrate_workflow_execution_duration_seconds",
			Help:    "Wall-clock duration of a workflow execution, by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		workflowParallelEfficiency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "substrate_workflow_parallel_efficiency",
			Help:    "min(1, sum(step durations) / wall clock duration) per workflow execution.",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
	}

	reg.MustRegister(
		r.rpcCallsTotal, r.rpcCallDuration,
		r.breakerTransitionsTotal, r.breakerStateGauge,
		r.streamChunksWrittenTotal, r.streamChunksPersistedTotal, r.streamChunksDeadLetteredTotal,
		r.streamQueueDepth, r.streamBatchPersistDuration,
		r.patternLookupsTotal, r.patternConfidenceUpdateTotal, r.patternsPrunedTotal, r.patternStoreSize,
		r.workflowPlansTotal, r.workflowStepsTotal, r.workflowExecutionDuration, r.workflowParallelEfficiency,
	)
	return r
}

// RecordRPCCall tags one resilient RPC client call with its outcome and
// observes its latency.
func (r *Registry) RecordRPCCall(downstream, operation, outcome string, duration time.Duration) {
	r.rpcCallsTotal.WithLabelValues(downstream, operation, outcome).Inc()
	r.rpcCallDuration.WithLabelValues(downstream, operation).Observe(duration.Seconds())
}

const (
	breakerStateClosedValue   = 0
	breakerStateHalfOpenValue = 1
	breakerStateOpenValue     = 2
)

// RecordBreakerTransition records a from->to circuit breaker transition and
// updates the current-state gauge for downstream.
func (r *Registry) RecordBreakerTransition(downstream, from, to string, stateValue float64) {
	r.breakerTransitionsTotal.WithLabelValues(downstream, from, to).Inc()
	r.breakerStateGauge.WithLabelValues(downstream).Set(stateValue)
}

func (r *Registry) RecordStreamChunkWritten(domain string)      { r.streamChunksWrittenTotal.WithLabelValues(domain).Inc() }
func (r *Registry) RecordStreamChunkPersisted(domain string)    { r.streamChunksPersistedTotal.WithLabelValues(domain).Inc() }
func (r *Registry) RecordStreamChunkDeadLettered(domain string) { r.streamChunksDeadLetteredTotal.WithLabelValues(domain).Inc() }

func (r *Registry) SetStreamQueueDepth(streamID string, depth int) {
	r.streamQueueDepth.WithLabelValues(streamID).Set(float64(depth))
}

func (r *Registry) RecordStreamBatchPersist(domain string, d time.Duration) {
	r.streamBatchPersistDuration.WithLabelValues(domain).Observe(d.Seconds())
}

func (r *Registry) RecordPatternLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.patternLookupsTotal.WithLabelValues(outcome).Inc()
}

func (r *Registry) RecordPatternConfidenceUpdate(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	r.patternConfidenceUpdateTotal.WithLabelValues(outcome).Inc()
}

func (r *Registry) RecordPatternPruned()          { r.patternsPrunedTotal.Inc() }
func (r *Registry) SetPatternStoreSize(n int)     { r.patternStoreSize.Set(float64(n)) }

func (r *Registry) RecordWorkflowPlanCreated(mode string) { r.workflowPlansTotal.WithLabelValues(mode).Inc() }

func (r *Registry) RecordWorkflowStep(service, status string) {
	r.workflowStepsTotal.WithLabelValues(service, status).Inc()
}

func (r *Registry) RecordWorkflowExecution(outcome string, d time.Duration, parallelEfficiency float64) {
	r.workflowExecutionDuration.WithLabelValues(outcome).Observe(d.Seconds())
	r.workflowParallelEfficiency.Observe(parallelEfficiency)
}

// Timer measures elapsed wall-clock time for a single operation.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer { return &Timer{start: time.Now()} }

func (t *Timer) Elapsed() time.Duration { return time.Since(t.start) }
