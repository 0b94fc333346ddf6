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
	"math"
	"math/rand"
	"time"
)

const (
	initialSuccessConfidence = 0.8
	initialFailureConfidence = 0.5
	minConfidence            = 0.1
	maxConfidence            = 1.0
	decayPerDay              = 0.99
)

// successFactor and failureFactor draw from spec.md §4.3's stated ranges
// (1.03-1.05 on success, 0.85-0.90 on failure) rather than a single fixed
// multiplier, matching the spread the spec names.
func successFactor() float64 { return 1.03 + rand.Float64()*(1.05-1.03) }
func failureFactor() float64 { return 0.85 + rand.Float64()*(0.90-0.85) }

func clampConfidence(c float64) float64 {
	return math.Max(minConfidence, math.Min(maxConfidence, c))
}

// applySuccess updates a pattern's confidence and counters after an observed
// success.
func applySuccess(p *Pattern) {
	p.Confidence = clampConfidence(p.Confidence * successFactor())
	p.SuccessCount++
}

// applyFailure updates a pattern's confidence and counters after an observed
// failure.
func applyFailure(p *Pattern) {
	p.Confidence = clampConfidence(p.Confidence * failureFactor())
	p.FailureCount++
}

// effectiveConfidence implements spec.md §4.3's query-time blend of stored
// confidence and empirical success rate, decayed by age since last use.
func effectiveConfidence(p *Pattern, now time.Time) float64 {
	total := p.SuccessCount + p.FailureCount
	empirical := 0.0
	if total > 0 {
		empirical = float64(p.SuccessCount) / float64(total)
	}
	blended := 0.4*p.Confidence + 0.6*empirical
	ageDays := now.Sub(p.LastUsed).Seconds() / 86400
	if ageDays < 0 {
		ageDays = 0
	}
	return blended * math.Pow(decayPerDay, ageDays)
}
