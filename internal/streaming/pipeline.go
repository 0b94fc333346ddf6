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

package streaming

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"k8s.io/client-go/util/workqueue"

	"github.com/nexusforge/substrate/internal/adapters"
	"github.com/nexusforge/substrate/internal/breaker"
	"github.com/nexusforge/substrate/internal/corerr"
	"github.com/nexusforge/substrate/internal/metrics"
)

// Persister is the knowledge-store seam a pipeline persists batches through;
// *adapters.KnowledgeStoreAdapter satisfies it.
type Persister interface {
	PersistBatch(ctx context.Context, req adapters.PersistBatchRequest) (*adapters.PersistBatchResponse, error)
}

// Snapshot is the result of Pipeline.Metrics().
type Snapshot struct {
	Written      int64
	Persisted    int64
	DeadLettered int64
	QueueDepth   int
	DLQDepth     int
	BreakerState breaker.State
}

// Pipeline is the per-stream singleton described in spec.md §4.2: a bounded
// producer/consumer converting chunk writes into batched, breaker-protected
// persistence, with a dead-letter queue for batches that keep failing.
type Pipeline struct {
	streamID string
	domain   string
	tenantID string

	cfg   Config
	cb    *breaker.CircuitBreaker
	metrics *metrics.Registry
	store Persister
	log   *zap.Logger

	mu       sync.Mutex
	q        workqueue.TypedInterface[string]
	chunks   map[string]*StreamChunk
	nextSeq  int
	stopped  bool
	finalAdmitted bool

	dlq *deadLetterQueue

	latencyMu sync.Mutex
	latencies []time.Duration

	writtenCount, persistedCount, deadLetteredCount atomic.Int64

	warnNoTenantOnce sync.Once
	stopSignal       chan struct{}
	finishedCh       chan struct{}
	closeOnce        sync.Once
}

// NewPipeline constructs and starts the per-stream consumer. tenantID empty
// means the stream was created without a tenant context (spec.md §4.2's
// tenant-scoping rule: persistence is skipped, the pipeline still drains).
func NewPipeline(streamID, domain, tenantID string, cfg Config, store Persister, reg *metrics.Registry, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	cb := breaker.New("stream:"+streamID, breaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: 2,
		Cooldown:         cfg.BreakerCooldown,
	}, reg)

	p := &Pipeline{
		streamID:   streamID,
		domain:     domain,
		tenantID:   tenantID,
		cfg:        cfg,
		cb:         cb,
		metrics:    reg,
		store:      store,
		log:        log.With(zap.String("stream_id", streamID)),
		q:          workqueue.NewTyped[string](),
		chunks:     make(map[string]*StreamChunk),
		dlq:        newDeadLetterQueue(cfg),
		stopSignal: make(chan struct{}),
		finishedCh: make(chan struct{}),
	}

	if tenantID == "" {
		p.log.Warn("stream created without tenant context; persistence will be skipped")
	}

	go p.consumeLoop()
	return p
}

// Write enqueues content as a new StreamChunk, applying back-pressure if the
// queue is at capacity and rejecting the write outright if the pipeline is
// stopped, the stream is already finalized, or the breaker is open.
func (p *Pipeline) Write(content []byte, tokens int, isFinal bool) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return corerr.Permanent("write", fmt.Errorf("stream %s is closed", p.streamID))
	}
	if p.finalAdmitted {
		p.mu.Unlock()
		return corerr.Permanent("write", fmt.Errorf("stream %s already finalized", p.streamID))
	}
	p.mu.Unlock()

	if p.cb.State() == breaker.StateOpen {
		return corerr.Unavailable("write")
	}

	p.applyBackPressure()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return corerr.Permanent("write", fmt.Errorf("stream %s is closed", p.streamID))
	}

	chunk := &StreamChunk{
		ChunkID:   uuid.NewString(),
		Sequence:  p.nextSeq,
		Content:   content,
		Tokens:    tokens,
		Timestamp: time.Now(),
		StreamID:  p.streamID,
		Domain:    p.domain,
		IsFinal:   isFinal,
	}
	p.nextSeq++
	p.chunks[chunk.ChunkID] = chunk
	p.q.Add(chunk.ChunkID)
	if isFinal {
		p.finalAdmitted = true
	}

	p.writtenCount.Add(1)
	if p.metrics != nil {
		p.metrics.RecordStreamChunkWritten(p.domain)
		p.metrics.SetStreamQueueDepth(p.streamID, len(p.chunks))
	}
	return nil
}

// applyBackPressure blocks until the queue drains to 50% capacity or the
// configured ceiling elapses, whichever comes first, then returns
// unconditionally (spec.md §4.2).
func (p *Pipeline) applyBackPressure() {
	p.mu.Lock()
	depth := len(p.chunks)
	p.mu.Unlock()
	if depth < p.cfg.MaxQueueSize {
		return
	}

	deadline := time.Now().Add(p.cfg.BackPressureCeiling)
	target := p.cfg.MaxQueueSize / 2
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		p.mu.Lock()
		depth = len(p.chunks)
		p.mu.Unlock()
		if depth <= target || time.Now().After(deadline) {
			return
		}
	}
}

// consumeLoop is the pipeline's single long-running consumer task.
func (p *Pipeline) consumeLoop() {
	defer close(p.finishedCh)
	ticker := time.NewTicker(p.cfg.BatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopSignal:
			p.drainAll()
			return
		case <-ticker.C:
			p.consumeBatch()
		}
	}
}

func (p *Pipeline) drainAll() {
	for {
		p.mu.Lock()
		empty := p.q.Len() == 0
		p.mu.Unlock()
		if empty {
			return
		}
		p.consumeBatch()
	}
}

// consumeBatch dequeues up to BatchSize chunks and persists them atomically.
func (p *Pipeline) consumeBatch() {
	p.mu.Lock()
	n := p.cfg.BatchSize
	if avail := p.q.Len(); avail < n {
		n = avail
	}
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, shutdown := p.q.Get()
		if shutdown {
			break
		}
		ids = append(ids, id)
	}
	batch := make([]*StreamChunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := p.chunks[id]; ok {
			batch = append(batch, c)
			delete(p.chunks, id)
		}
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.q.Done(id)
	}
	if len(batch) == 0 {
		return
	}

	start := time.Now()
	err := p.cb.Call(func() error { return p.persist(batch) })

	if p.metrics != nil {
		p.mu.Lock()
		depth := len(p.chunks)
		p.mu.Unlock()
		p.metrics.SetStreamQueueDepth(p.streamID, depth)
	}

	if err != nil {
		p.log.Warn("batch persist failed, moving to dead-letter queue", zap.Error(err), zap.Int("batch_size", len(batch)))
		for _, c := range batch {
			p.dlq.add(c)
			p.deadLetteredCount.Add(1)
			if p.metrics != nil {
				p.metrics.RecordStreamChunkDeadLettered(p.domain)
			}
		}
		return
	}

	p.recordLatency(time.Since(start))
	if p.tenantID == "" {
		// nothing was actually written; this batch was drained, not persisted.
		return
	}
	p.persistedCount.Add(int64(len(batch)))
	if p.metrics != nil {
		for range batch {
			p.metrics.RecordStreamChunkPersisted(p.domain)
		}
	}
}

// persist performs the tenant-scoped write, or skips it when the stream
// carries no tenant context.
func (p *Pipeline) persist(batch []*StreamChunk) error {
	if p.tenantID == "" {
		p.warnNoTenantOnce.Do(func() {
			p.log.Warn("skipping persistence: stream has no tenant context")
		})
		return nil
	}
	if p.store == nil {
		return nil
	}

	payload := make([]adapters.ChunkPayload, 0, len(batch))
	for _, c := range batch {
		payload = append(payload, adapters.ChunkPayload{
			ChunkID:  c.ChunkID,
			Sequence: c.Sequence,
			Content:  c.Content,
			Tokens:   c.Tokens,
			StreamID: c.StreamID,
			Domain:   c.Domain,
			AgentID:  c.AgentID,
			TaskID:   c.TaskID,
			IsFinal:  c.IsFinal,
			TenantID: p.tenantID,
		})
	}

	resp, err := p.store.PersistBatch(context.Background(), adapters.PersistBatchRequest{
		StreamID: p.streamID,
		Chunks:   payload,
	})
	if err != nil {
		return err
	}
	if resp == nil || !resp.Success {
		return corerr.Transient("persist_batch", fmt.Errorf("knowledge store reported failure for stream %s", p.streamID))
	}
	return nil
}

func (p *Pipeline) recordLatency(d time.Duration) {
	p.latencyMu.Lock()
	defer p.latencyMu.Unlock()
	p.latencies = append(p.latencies, d)
	if len(p.latencies) > p.cfg.LatencyWindow {
		p.latencies = p.latencies[len(p.latencies)-p.cfg.LatencyWindow:]
	}
	if p.metrics != nil {
		p.metrics.RecordStreamBatchPersist(p.domain, d)
	}
}

// RetryDeadLetters retries every dead-lettered chunk whose backoff has
// elapsed, in single-chunk batches, still gated by the stream's breaker.
func (p *Pipeline) RetryDeadLetters() {
	p.dlq.drain(
		func(c *StreamChunk) bool {
			err := p.cb.Call(func() error { return p.persist([]*StreamChunk{c}) })
			if err == nil {
				p.persistedCount.Add(1)
				if p.metrics != nil {
					p.metrics.RecordStreamChunkPersisted(p.domain)
				}
				return true
			}
			return false
		},
		func(c *StreamChunk) {
			p.log.Error("chunk permanently failed after exhausting dead-letter attempts",
				zap.String("chunk_id", c.ChunkID), zap.Int("sequence", c.Sequence))
		},
	)
}

// Metrics returns a point-in-time snapshot of the pipeline's counters.
func (p *Pipeline) Metrics() Snapshot {
	p.mu.Lock()
	depth := len(p.chunks)
	p.mu.Unlock()
	return Snapshot{
		Written:      p.writtenCount.Load(),
		Persisted:    p.persistedCount.Load(),
		DeadLettered: p.deadLetteredCount.Load(),
		QueueDepth:   depth,
		DLQDepth:     p.dlq.size(),
		BreakerState: p.cb.State(),
	}
}

// Close drains the main queue, retries the dead-letter queue once, then
// releases resources (spec.md §4.2).
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		close(p.stopSignal)
		<-p.finishedCh
		p.q.ShutDown()
		p.RetryDeadLetters()
	})
}
