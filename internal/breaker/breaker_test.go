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

package breaker_test

import (
	"fmt"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nexusforge/substrate/internal/breaker"
	"github.com/nexusforge/substrate/internal/metrics"
)

func TestBreaker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Circuit Breaker Suite")
}

var _ = Describe("Circuit Breaker State Management", func() {
	var reg *metrics.Registry

	BeforeEach(func() {
		reg = metrics.New(prometheus.NewRegistry())
	})

	// scenario 1: breaker opens on the 5th consecutive failure
	It("opens on the 5th consecutive failure and rejects the 6th call without touching the wire", func() {
		cb := breaker.New("sandbox", breaker.Config{FailureThreshold: 5, SuccessThreshold: 2, Cooldown: time.Minute}, reg)

		for i := 0; i < 4; i++ {
			err := cb.Call(func() error { return fmt.Errorf("boom") })
			Expect(err).To(HaveOccurred())
		}
		Expect(cb.State()).To(Equal(breaker.StateClosed))

		err := cb.Call(func() error { return fmt.Errorf("boom") })
		Expect(err).To(HaveOccurred())
		Expect(cb.State()).To(Equal(breaker.StateOpen))

		called := false
		err = cb.Call(func() error { called = true; return nil })
		Expect(err).To(HaveOccurred())
		Expect(called).To(BeFalse())
	})

	// scenario 2: breaker recovers after cooldown
	It("enters HalfOpen after cooldown and closes after successThreshold successes", func() {
		cb := breaker.New("sandbox", breaker.Config{FailureThreshold: 2, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond}, reg)

		for i := 0; i < 2; i++ {
			_ = cb.Call(func() error { return fmt.Errorf("boom") })
		}
		Expect(cb.State()).To(Equal(breaker.StateOpen))

		time.Sleep(20 * time.Millisecond)

		Expect(cb.Call(func() error { return nil })).To(Succeed())
		Expect(cb.State()).To(Equal(breaker.StateHalfOpen))

		Expect(cb.Call(func() error { return nil })).To(Succeed())
		Expect(cb.State()).To(Equal(breaker.StateClosed))
	})

	It("returns HalfOpen to Open on any failure during recovery", func() {
		cb := breaker.New("sandbox", breaker.Config{FailureThreshold: 2, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond}, reg)

		for i := 0; i < 2; i++ {
			_ = cb.Call(func() error { return fmt.Errorf("boom") })
		}
		time.Sleep(20 * time.Millisecond)

		err := cb.Call(func() error { return fmt.Errorf("still failing") })
		Expect(err).To(HaveOccurred())
		Expect(cb.State()).To(Equal(breaker.StateOpen))
	})

	It("never transitions Closed->HalfOpen or Open->Closed directly", func() {
		cb := breaker.New("sandbox", breaker.Config{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Hour}, reg)

		Expect(cb.State()).To(Equal(breaker.StateClosed))
		for i := 0; i < 2; i++ {
			_ = cb.Call(func() error { return fmt.Errorf("boom") })
			Expect(cb.State()).To(Equal(breaker.StateClosed))
		}
		_ = cb.Call(func() error { return fmt.Errorf("boom") })
		Expect(cb.State()).To(Equal(breaker.StateOpen))

		// Cooldown is an hour: calling again must stay Open, not jump to Closed.
		err := cb.Call(func() error { return nil })
		Expect(err).To(HaveOccurred())
		Expect(cb.State()).To(Equal(breaker.StateOpen))
	})

	It("resets to Closed on manual Reset", func() {
		cb := breaker.New("sandbox", breaker.Config{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Hour}, reg)
		_ = cb.Call(func() error { return fmt.Errorf("boom") })
		Expect(cb.State()).To(Equal(breaker.StateOpen))

		cb.Reset()
		Expect(cb.State()).To(Equal(breaker.StateClosed))
	})

	It("shares failure isolation across two callers of the same breaker instance", func() {
		cb := breaker.New("sandbox", breaker.Config{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Hour}, reg)

		// caller A fails
		_ = cb.Call(func() error { return fmt.Errorf("boom") })
		// caller B observes the same breaker as open
		called := false
		err := cb.Call(func() error { called = true; return nil })
		Expect(err).To(HaveOccurred())
		Expect(called).To(BeFalse())
	})
})
