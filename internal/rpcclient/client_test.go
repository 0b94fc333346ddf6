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

package rpcclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nexusforge/substrate/internal/breaker"
	"github.com/nexusforge/substrate/internal/corerr"
	"github.com/nexusforge/substrate/internal/metrics"
)

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.MaxConnsPerHost < 50 {
		t.Errorf("MaxConnsPerHost = %d, want >= 50", cfg.MaxConnsPerHost)
	}
}

type executeRequest struct {
	Code   string `validate:"required"`
	Memory string `validate:"required,memlimit"`
}

func newTestClient(t *testing.T, baseURL string) (*Client, *breaker.CircuitBreaker) {
	t.Helper()
	reg := metrics.New(prometheus.NewRegistry())
	cb := breaker.New("sandbox", breaker.Config{FailureThreshold: 5, SuccessThreshold: 2, Cooldown: time.Minute}, reg)
	cfg := DefaultClientConfig()
	cfg.Timeout = 2 * time.Second
	return New("sandbox", baseURL, cfg, cb, reg, nil), cb
}

func TestExecute_ValidationBypassesBreaker(t *testing.T) {
	var hit atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, cb := newTestClient(t, srv.URL)

	err := client.Execute(context.Background(), Request{
		Operation: "execute",
		Path:      "/execute",
		Payload:   executeRequest{Code: "print(1)", Memory: "4096Mi"}, // over the 2048Mi ceiling
	})

	if corerr.KindOf(err) != corerr.KindValidation {
		t.Fatalf("expected KindValidation, got %v (%v)", corerr.KindOf(err), err)
	}
	if hit.Load() {
		t.Error("server should never have been called")
	}
	if cb.State() != breaker.StateClosed {
		t.Error("breaker must remain closed on a validation failure")
	}
}

func TestExecute_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)

	var out struct {
		OK bool `json:"ok"`
	}
	err := client.Execute(context.Background(), Request{
		Operation: "execute",
		Path:      "/execute",
		Payload:   executeRequest{Code: "print(1)", Memory: "512Mi"},
		Out:       &out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.OK {
		t.Error("expected decoded response")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", calls.Load())
	}
}

func TestExecute_4xxIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)

	err := client.Execute(context.Background(), Request{
		Operation: "execute",
		Path:      "/execute",
		Payload:   executeRequest{Code: "print(1)", Memory: "512Mi"},
	})
	if corerr.KindOf(err) != corerr.KindPermanent {
		t.Fatalf("expected KindPermanent, got %v", corerr.KindOf(err))
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls.Load())
	}
}

func TestExecute_BreakerOpenSkipsWire(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, cb := newTestClient(t, srv.URL)
	client.maxRetries = 0

	req := Request{Operation: "execute", Path: "/execute", Payload: executeRequest{Code: "x", Memory: "512Mi"}}

	for i := 0; i < 5; i++ {
		_ = client.Execute(context.Background(), req)
	}
	if cb.State() != breaker.StateOpen {
		t.Fatalf("expected breaker open after repeated failures, got %v", cb.State())
	}

	callsBefore := calls.Load()
	err := client.Execute(context.Background(), req)
	if corerr.KindOf(err) != corerr.KindUnavailable {
		t.Fatalf("expected KindUnavailable, got %v", corerr.KindOf(err))
	}
	if calls.Load() != callsBefore {
		t.Error("server should not have been called while breaker is open")
	}
}
