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
	"sync"
	"time"
)

// dlqEntry tracks one chunk's retry state. The rate-limiting workqueue
// variants are built around a dedicated Get()-blocks-until-delay-elapses
// worker loop; retryDeadLetters is a synchronous, on-demand call instead, so
// the 2^attempt backoff here is tracked explicitly rather than through
// workqueue's delaying queue.
type dlqEntry struct {
	chunk       *StreamChunk
	attempts    int
	nextRetryAt time.Time
}

// deadLetterQueue retries failed batches with 2^attempt-second backoff,
// surfacing entries that exceed maxAttempts as permanently failed.
type deadLetterQueue struct {
	mu          sync.Mutex
	entries     map[string]*dlqEntry
	maxAttempts int
	baseDelay   time.Duration
}

func newDeadLetterQueue(cfg Config) *deadLetterQueue {
	return &deadLetterQueue{
		entries:     make(map[string]*dlqEntry),
		maxAttempts: cfg.MaxDeadLetterAttempts,
		baseDelay:   cfg.DeadLetterBaseDelay,
	}
}

// add enqueues a chunk whose batch failed to persist.
func (d *deadLetterQueue) add(c *StreamChunk) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[c.ChunkID]; ok {
		e.nextRetryAt = time.Now().Add(backoffForAttempt(e.attempts))
		return
	}
	d.entries[c.ChunkID] = &dlqEntry{chunk: c, attempts: 0, nextRetryAt: time.Now()}
}

// drain retries every entry whose backoff has elapsed. fn reports whether
// the retry succeeded; entries that have exhausted maxAttempts are handed to
// permanentlyFailed instead of being retried again.
func (d *deadLetterQueue) drain(fn func(*StreamChunk) bool, permanentlyFailed func(*StreamChunk)) {
	d.mu.Lock()
	ready := make([]string, 0, len(d.entries))
	now := time.Now()
	for id, e := range d.entries {
		if !now.Before(e.nextRetryAt) {
			ready = append(ready, id)
		}
	}
	d.mu.Unlock()

	for _, id := range ready {
		d.mu.Lock()
		e, ok := d.entries[id]
		d.mu.Unlock()
		if !ok {
			continue
		}

		if e.attempts >= d.maxAttempts {
			d.mu.Lock()
			delete(d.entries, id)
			d.mu.Unlock()
			permanentlyFailed(e.chunk)
			continue
		}

		if fn(e.chunk) {
			d.mu.Lock()
			delete(d.entries, id)
			d.mu.Unlock()
			continue
		}

		d.mu.Lock()
		e.attempts++
		e.nextRetryAt = time.Now().Add(backoffForAttempt(e.attempts))
		d.mu.Unlock()
	}
}

// size reports the number of chunks currently awaiting a DLQ retry.
func (d *deadLetterQueue) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// backoffForAttempt implements spec.md §4.2's 2^attempt-second curve.
func backoffForAttempt(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}
