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

package patterns

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusforge/substrate/internal/metrics"
)

// Config governs one Store. Defaults match spec.md §4.3.
type Config struct {
	MinConfidenceThreshold float64
	TTL                    time.Duration
	PruneSweepInterval     time.Duration
}

// DefaultConfig returns spec.md §4.3's stated defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidenceThreshold: 0.7,
		TTL:                    30 * 24 * time.Hour,
		PruneSweepInterval:     time.Hour,
	}
}

// Statistics is the snapshot returned by Store.Statistics().
type Statistics struct {
	TotalPatterns     int
	AverageConfidence float64
	TotalSuccesses    int
	TotalFailures     int
}

// Store is the in-memory cache described in spec.md §5: the backing
// Repository is the system of record, and this cache is last-writer-wins
// per composite key.
type Store struct {
	cfg     Config
	repo    Repository
	metrics *metrics.Registry
	log     *zap.Logger

	mu       sync.RWMutex
	patterns map[string]*Pattern

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// New constructs a Store, optionally warm-loading from repo. repo may be nil
// for an in-memory-only instance (tests, or a deployment that hasn't wired
// persistence yet).
func New(ctx context.Context, cfg Config, repo Repository, reg *metrics.Registry, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		cfg:       cfg,
		repo:      repo,
		metrics:   reg,
		log:       log,
		patterns:  make(map[string]*Pattern),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	if repo != nil {
		loaded, err := repo.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range loaded {
			s.patterns[p.CompositeKey] = p
		}
	}
	go s.sweepLoop()
	return s, nil
}

// Lookup returns a pattern only if its effective confidence clears the
// configured threshold; a hit refreshes LastUsed, extending the pattern's
// TTL (spec.md §4.3).
func (s *Store) Lookup(req LookupRequest) (found bool, pattern *Pattern, confidence float64) {
	key := CompositeKey(req)
	now := time.Now()

	s.mu.Lock()
	p, ok := s.patterns[key]
	if !ok {
		s.mu.Unlock()
		s.recordLookup(false)
		return false, nil, 0
	}
	eff := effectiveConfidence(p, now)
	if eff < s.cfg.MinConfidenceThreshold {
		s.mu.Unlock()
		s.recordLookup(false)
		return false, nil, eff
	}
	p.LastUsed = now
	clone := *p
	s.mu.Unlock()

	s.recordLookup(true)
	s.writeThrough(&clone)
	return true, &clone, eff
}

// FindSimilar returns up to limit patterns sharing the same decision point,
// ranked by effective confidence descending — a looser match than Lookup's
// exact composite key.
func (s *Store) FindSimilar(decisionPoint string, limit int) []*Pattern {
	now := time.Now()
	s.mu.RLock()
	candidates := make([]*Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		if p.DecisionPoint == decisionPoint {
			clone := *p
			candidates = append(candidates, &clone)
		}
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return effectiveConfidence(candidates[i], now) > effectiveConfidence(candidates[j], now)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// RecordSuccess learns from a successful outcome, creating the pattern if
// this composite key has never been observed before.
func (s *Store) RecordSuccess(req LookupRequest, decisionPoint string, decision map[string]interface{}) *Pattern {
	return s.record(req, decisionPoint, decision, true)
}

// RecordFailure learns from a failed outcome.
func (s *Store) RecordFailure(req LookupRequest, decisionPoint string) *Pattern {
	return s.record(req, decisionPoint, nil, false)
}

func (s *Store) record(req LookupRequest, decisionPoint string, decision map[string]interface{}, success bool) *Pattern {
	key := CompositeKey(req)
	now := time.Now()

	s.mu.Lock()
	p, ok := s.patterns[key]
	if !ok {
		initial := initialFailureConfidence
		if success {
			initial = initialSuccessConfidence
		}
		p = &Pattern{
			ID:            uuid.NewString(),
			CompositeKey:  key,
			DecisionPoint: decisionPoint,
			Decision:      decision,
			Confidence:    initial,
			CreatedAt:     now,
			Metadata:      newMetadata(),
		}
		if success {
			p.SuccessCount = 1
		} else {
			p.FailureCount = 1
		}
		s.patterns[key] = p
	} else if success {
		applySuccess(p)
		if decision != nil {
			p.Decision = decision
		}
	} else {
		applyFailure(p)
	}
	p.LastUsed = now
	p.UpdatedAt = now
	p.Metadata.observe(req.Extension, req.MimeType, req.SizeBytes, req.ThreatLevel)

	prune := p.ShouldPrune()
	if prune {
		delete(s.patterns, key)
	}
	clone := *p
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordPatternConfidenceUpdate(success)
		s.metrics.SetPatternStoreSize(s.Size())
	}

	if prune {
		s.deleteThrough(key)
		if s.metrics != nil {
			s.metrics.RecordPatternPruned()
		}
		return nil
	}
	s.writeThrough(&clone)
	return &clone
}

// Statistics summarizes the current cache contents.
func (s *Store) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Statistics{TotalPatterns: len(s.patterns)}
	if len(s.patterns) == 0 {
		return stats
	}
	var sumConfidence float64
	for _, p := range s.patterns {
		sumConfidence += p.Confidence
		stats.TotalSuccesses += p.SuccessCount
		stats.TotalFailures += p.FailureCount
	}
	stats.AverageConfidence = sumConfidence / float64(len(s.patterns))
	return stats
}

// Export returns a deep-copied snapshot of every pattern currently cached.
func (s *Store) Export() []*Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		clone := *p
		out = append(out, &clone)
	}
	return out
}

// Import merges patterns into the cache, keyed by composite key, overwriting
// whatever was previously cached for that key (idempotent under replay).
func (s *Store) Import(in []*Pattern) {
	s.mu.Lock()
	for _, p := range in {
		clone := *p
		s.patterns[p.CompositeKey] = &clone
	}
	s.mu.Unlock()
	for _, p := range in {
		s.writeThrough(p)
	}
}

// ClearAll empties the cache and, if a repository is wired, the backing
// store too.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.patterns = make(map[string]*Pattern)
	s.mu.Unlock()
	if s.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.repo.DeleteAll(ctx); err != nil {
			s.log.Warn("failed to clear pattern repository", zap.Error(err))
		}
	}
}

// Size reports the current cache population.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

func (s *Store) recordLookup(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordPatternLookup(hit)
	}
}

func (s *Store) writeThrough(p *Pattern) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.Upsert(ctx, p); err != nil {
		s.log.Warn("pattern repository write-through failed", zap.String("composite_key", p.CompositeKey), zap.Error(err))
	}
}

func (s *Store) deleteThrough(key string) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.Delete(ctx, key); err != nil {
		s.log.Warn("pattern repository delete failed", zap.String("composite_key", key), zap.Error(err))
	}
}

// sweepLoop periodically prunes TTL-expired and failure-heavy patterns that
// a direct record() call didn't already catch (e.g. patterns warm-loaded
// from the repository at startup).
func (s *Store) sweepLoop() {
	defer close(s.sweepDone)
	ticker := time.NewTicker(s.cfg.PruneSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	var toDelete []string

	s.mu.Lock()
	for key, p := range s.patterns {
		if p.ShouldPrune() || p.Expired(s.cfg.TTL, now) {
			toDelete = append(toDelete, key)
			delete(s.patterns, key)
		}
	}
	s.mu.Unlock()

	for _, key := range toDelete {
		s.deleteThrough(key)
		if s.metrics != nil {
			s.metrics.RecordPatternPruned()
		}
	}
	if s.metrics != nil {
		s.metrics.SetPatternStoreSize(s.Size())
	}
}

// Close stops the background sweep.
func (s *Store) Close() {
	close(s.stopSweep)
	<-s.sweepDone
}
