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

// Package breaker is the three-state admission controller reused by every
// resilient RPC client and streaming pipeline in the substrate. It wraps
// sony/gobreaker's generation-counted state machine behind the vocabulary
// spec'd for this system: Closed / Open / HalfOpen, a configurable
// consecutive-failure threshold (in place of gobreaker's fixed default), a
// success threshold to leave HalfOpen, and a cooldown.
//
// The breaker is shared per downstream, never per call site: two callers of
// the same downstream must observe the same breaker, or failure isolation
// is defeated.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nexusforge/substrate/internal/corerr"
	"github.com/nexusforge/substrate/internal/metrics"
)

// State is the breaker's externally observable state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config holds the tunables from spec.md §4.1's state table.
type Config struct {
	// FailureThreshold is the number of consecutive failures (while Closed)
	// that trips the breaker to Open.
	FailureThreshold uint32
	// SuccessThreshold is the number of consecutive successes (while
	// HalfOpen) required to close the breaker again.
	SuccessThreshold uint32
	// Cooldown is how long the breaker stays Open before admitting a single
	// probe call that moves it to HalfOpen.
	Cooldown time.Duration
}

// DefaultConfig matches spec.md §4.1's defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         60 * time.Second,
	}
}

// CircuitBreaker is a named, metrics-observed circuit breaker for one
// downstream.
type CircuitBreaker struct {
	name    string
	cfg     Config
	metrics *metrics.Registry

	mu    sync.RWMutex
	inner *gobreaker.CircuitBreaker
}

// New constructs a CircuitBreaker for downstream name. reg may be nil in
// tests that don't care about metric emission.
func New(name string, cfg Config, reg *metrics.Registry) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	cb := &CircuitBreaker{name: name, cfg: cfg, metrics: reg}
	cb.inner = cb.newInner()
	return cb
}

func (cb *CircuitBreaker) newInner() *gobreaker.CircuitBreaker {
	name := cb.name
	cfg := cb.cfg
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		// Interval=0: never clear Closed-state counts on a timer. Only a
		// success resets the consecutive-failure count, matching spec.md's
		// "Closed, failure: failureCount < threshold" bookkeeping.
		Interval: 0,
		// MaxRequests bounds how many probe calls are allowed through in
		// HalfOpen, and doubles as the success count gobreaker requires
		// before closing again — exactly spec.md's successThreshold.
		MaxRequests: cfg.SuccessThreshold,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if cb.metrics != nil {
				cb.metrics.RecordBreakerTransition(name, label(from), label(to), value(to))
			}
		},
	})
}

func label(s gobreaker.State) string {
	switch s {
	case gobreaker.StateOpen:
		return string(StateOpen)
	case gobreaker.StateHalfOpen:
		return string(StateHalfOpen)
	default:
		return string(StateClosed)
	}
}

func value(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

func (cb *CircuitBreaker) current() *gobreaker.CircuitBreaker {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.inner
}

// Call executes fn if the breaker admits the call. If the breaker is Open
// (or HalfOpen with its probe slots exhausted), fn is never invoked and a
// Kind=Unavailable error is returned — admission denial never touches the
// wire and never itself counts as a breaker failure.
func (cb *CircuitBreaker) Call(fn func() error) error {
	_, err := cb.current().Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err != nil && (errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)) {
		return corerr.Unavailable(cb.name)
	}
	return err
}

// State reports the breaker's current state.
func (cb *CircuitBreaker) State() State {
	switch cb.current().State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Counts reports the consecutive failure/success counters backing the
// current state's transition decision.
func (cb *CircuitBreaker) Counts() (consecutiveFailures, consecutiveSuccesses uint32) {
	c := cb.current().Counts()
	return c.ConsecutiveFailures, c.ConsecutiveSuccesses
}

// Name returns the downstream name this breaker protects.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Reset forces the breaker back to Closed with cleared counters, for
// operator use (e.g. an admin endpoint owned by the transport layer).
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.inner = cb.newInner()
}
