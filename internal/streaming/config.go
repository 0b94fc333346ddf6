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

import "time"

// Config governs one pipeline instance. Defaults match spec.md §4.2.
type Config struct {
	MaxQueueSize          int
	BatchSize             int
	BatchInterval         time.Duration
	FailureThreshold      uint32
	BreakerCooldown       time.Duration
	BackPressureCeiling   time.Duration
	DeadLetterBaseDelay   time.Duration
	MaxDeadLetterAttempts int
	LatencyWindow         int
}

// DefaultConfig returns spec.md §4.2's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:          50,
		BatchSize:             5,
		BatchInterval:         100 * time.Millisecond,
		FailureThreshold:      5,
		BreakerCooldown:       30 * time.Second,
		BackPressureCeiling:   30 * time.Second,
		DeadLetterBaseDelay:   1 * time.Second,
		MaxDeadLetterAttempts: 3,
		LatencyWindow:         100,
	}
}
