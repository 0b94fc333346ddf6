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

// Package patterns is the confidence-weighted, decay-aware, self-pruning
// pattern store described in spec.md §4.3: it learns from a durable,
// at-least-once outcome stream and answers lookups keyed by a composite file
// fingerprint.
package patterns

import "time"

// Metadata is the FIFO-bounded, set-accumulating side information a pattern
// keeps about the files it has been observed against.
type Metadata struct {
	FileExtensions []string
	MimeTypes      []string
	SizeRangeLow   int64
	SizeRangeHigh  int64
	ThreatLevels   map[string]struct{}
}

const maxMetadataFIFO = 10

func newMetadata() Metadata {
	return Metadata{ThreatLevels: make(map[string]struct{})}
}

func pushFIFO(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	list = append(list, v)
	if len(list) > maxMetadataFIFO {
		list = list[len(list)-maxMetadataFIFO:]
	}
	return list
}

func (m *Metadata) observe(ext, mimeType string, sizeBytes int64, threatLevel string) {
	m.FileExtensions = pushFIFO(m.FileExtensions, ext)
	m.MimeTypes = pushFIFO(m.MimeTypes, mimeType)
	if m.SizeRangeLow == 0 && m.SizeRangeHigh == 0 {
		m.SizeRangeLow, m.SizeRangeHigh = sizeBytes, sizeBytes
	} else {
		if sizeBytes < m.SizeRangeLow {
			m.SizeRangeLow = sizeBytes
		}
		if sizeBytes > m.SizeRangeHigh {
			m.SizeRangeHigh = sizeBytes
		}
	}
	if threatLevel != "" {
		if m.ThreatLevels == nil {
			m.ThreatLevels = make(map[string]struct{})
		}
		m.ThreatLevels[threatLevel] = struct{}{}
	}
}

// Pattern is spec.md §3's composite-keyed learning unit.
type Pattern struct {
	ID            string
	CompositeKey  string
	DecisionPoint string
	Decision      map[string]interface{}
	Confidence    float64
	SuccessCount  int
	FailureCount  int
	LastUsed      time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Metadata      Metadata
}

// FailureRate is successCount+failureCount-normalized failure proportion;
// zero when the pattern has never been observed.
func (p *Pattern) FailureRate() float64 {
	total := p.SuccessCount + p.FailureCount
	if total == 0 {
		return 0
	}
	return float64(p.FailureCount) / float64(total)
}

// ShouldPrune implements spec.md §4.3's pruning rule.
func (p *Pattern) ShouldPrune() bool {
	return p.SuccessCount+p.FailureCount >= 5 && p.FailureRate() > 0.5
}

// Expired reports whether the pattern has outlived ttl since it was last used.
func (p *Pattern) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(p.LastUsed) > ttl
}
