package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(prometheus.NewRegistry())
}

func TestRecordRPCCall(t *testing.T) {
	r := newTestRegistry(t)

	r.RecordRPCCall("sandbox", "execute", "success", 50*time.Millisecond)

	got := testutil.ToFloat64(r.rpcCallsTotal.WithLabelValues("sandbox", "execute", "success"))
	if got != 1.0 {
		t.Errorf("rpcCallsTotal = %v, want 1", got)
	}
}

func TestRecordBreakerTransition(t *testing.T) {
	r := newTestRegistry(t)

	r.RecordBreakerTransition("sandbox", "closed", "open", breakerStateOpenValue)

	got := testutil.ToFloat64(r.breakerTransitionsTotal.WithLabelValues("sandbox", "closed", "open"))
	if got != 1.0 {
		t.Errorf("breakerTransitionsTotal = %v, want 1", got)
	}
	gauge := testutil.ToFloat64(r.breakerStateGauge.WithLabelValues("sandbox"))
	if gauge != breakerStateOpenValue {
		t.Errorf("breakerStateGauge = %v, want %v", gauge, breakerStateOpenValue)
	}
}

func TestStreamMetrics(t *testing.T) {
	r := newTestRegistry(t)

	r.RecordStreamChunkWritten("ingest")
	r.RecordStreamChunkPersisted("ingest")
	r.RecordStreamChunkDeadLettered("ingest")
	r.SetStreamQueueDepth("stream-1", 7)
	r.RecordStreamBatchPersist("ingest", 10*time.Millisecond)

	if testutil.ToFloat64(r.streamChunksWrittenTotal.WithLabelValues("ingest")) != 1 {
		t.Error("expected one written chunk")
	}
	if testutil.ToFloat64(r.streamChunksPersistedTotal.WithLabelValues("ingest")) != 1 {
		t.Error("expected one persisted chunk")
	}
	if testutil.ToFloat64(r.streamChunksDeadLetteredTotal.WithLabelValues("ingest")) != 1 {
		t.Error("expected one dead-lettered chunk")
	}
	if testutil.ToFloat64(r.streamQueueDepth.WithLabelValues("stream-1")) != 7 {
		t.Error("expected queue depth of 7")
	}
}

func TestPatternMetrics(t *testing.T) {
	r := newTestRegistry(t)

	r.RecordPatternLookup(true)
	r.RecordPatternLookup(false)
	r.RecordPatternConfidenceUpdate(true)
	r.RecordPatternPruned()
	r.SetPatternStoreSize(42)

	if testutil.ToFloat64(r.patternLookupsTotal.WithLabelValues("hit")) != 1 {
		t.Error("expected one hit")
	}
	if testutil.ToFloat64(r.patternLookupsTotal.WithLabelValues("miss")) != 1 {
		t.Error("expected one miss")
	}
	if testutil.ToFloat64(r.patternsPrunedTotal) != 1 {
		t.Error("expected one prune")
	}
	if testutil.ToFloat64(r.patternStoreSize) != 42 {
		t.Error("expected store size 42")
	}
}

func TestWorkflowMetrics(t *testing.T) {
	r := newTestRegistry(t)

	r.RecordWorkflowPlanCreated("strict")
	r.RecordWorkflowStep("sandbox", "completed")
	r.RecordWorkflowExecution("completed", 250*time.Millisecond, 0.8)

	if testutil.ToFloat64(r.workflowPlansTotal.WithLabelValues("strict")) != 1 {
		t.Error("expected one plan created")
	}
	if testutil.ToFloat64(r.workflowStepsTotal.WithLabelValues("sandbox", "completed")) != 1 {
		t.Error("expected one step recorded")
	}
}

func TestTimerElapsed(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	if timer.Elapsed() < 5*time.Millisecond {
		t.Error("expected at least 5ms elapsed")
	}
}
