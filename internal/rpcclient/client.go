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

// Package rpcclient is the resilient RPC client every downstream adapter
// (sandbox, file processor, cyber scanner, knowledge store, LLM completion)
// is built on: validate, ask the breaker for admission, call with a
// per-request deadline, retry transient failures with backoff, report the
// outcome to the breaker, and emit a metric sample.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nexusforge/substrate/internal/breaker"
	"github.com/nexusforge/substrate/internal/corerr"
	"github.com/nexusforge/substrate/internal/metrics"
)

// Client fronts one downstream. It owns the downstream's breaker and HTTP
// transport; every adapter method for that downstream funnels through it.
type Client struct {
	Downstream string
	BaseURL    string

	http     *http.Client
	breaker  *breaker.CircuitBreaker
	metrics  *metrics.Registry
	validate *validator.Validate
	log      *zap.Logger

	maxRetries int
}

// New constructs a Client for one downstream, sharing cb across every
// caller of that downstream (spec.md §9: breaker per downstream, not per
// call site).
func New(downstream, baseURL string, cfg ClientConfig, cb *breaker.CircuitBreaker, reg *metrics.Registry, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		Downstream: downstream,
		BaseURL:    baseURL,
		http:       NewHTTPClient(cfg),
		breaker:    cb,
		metrics:    reg,
		validate:   newValidator(),
		log:        log.With(zap.String("downstream", downstream)),
		maxRetries: cfg.MaxRetries,
	}
}

// Request is one call through the resilient client.
type Request struct {
	Operation string
	Method    string // defaults to POST
	Path      string
	Payload   interface{} // validated via struct tags before anything else happens
	Out       interface{} // decode target for a 2xx JSON body
	Timeout   time.Duration
	Language  string // optional label for the metric sample
}

// Execute runs the full algorithm from spec.md §4.1.
func (c *Client) Execute(ctx context.Context, req Request) error {
	// (1) validate — fail fast, never touches the breaker or counts as a
	// breaker-observed failure.
	if req.Payload != nil {
		if err := c.validate.Struct(req.Payload); err != nil {
			return corerr.Validation(req.Operation, err)
		}
	}

	start := time.Now()
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	// (2)-(5): admission, call+retry, and breaker reporting all happen
	// inside the one breaker.Call so a denied admission never reaches the
	// wire and an admitted call's outcome is reported exactly once.
	callErr := c.breaker.Call(func() error {
		return c.callWithRetry(ctx, method, req)
	})

	outcome := "success"
	if callErr != nil {
		outcome = "error"
		if corerr.KindOf(callErr) == corerr.KindUnavailable {
			outcome = "unavailable"
		}
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall(c.Downstream, req.Operation, outcome, time.Since(start))
	}
	return callErr
}

// callWithRetry issues the HTTP call, retrying transient failures up to
// maxRetries times with exponential backoff. Only network errors and
// status >= 500 are retried; 4xx is returned immediately as non-retryable.
func (c *Client) callWithRetry(ctx context.Context, method string, req Request) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.Multiplier = 2
	bo.MaxInterval = 5 * time.Second

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := c.doOnce(ctx, method, req)
		if err == nil {
			return nil
		}
		lastErr = err
		if corerr.KindOf(err) != corerr.KindTransient {
			return err
		}
		if attempt == c.maxRetries {
			break
		}
		d := bo.NextBackOff()
		if d == backoff.Stop {
			break
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return corerr.Cancelled(req.Operation)
		case <-timer.C:
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method string, req Request) error {
	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Payload != nil {
		buf, err := json.Marshal(req.Payload)
		if err != nil {
			return corerr.Permanent(req.Operation, corerr.ParseError(req.Operation, "JSON", err))
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, method, c.BaseURL+req.Path, body)
	if err != nil {
		return corerr.Permanent(req.Operation, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if callCtx.Err() != nil && ctx.Err() == nil {
			// the per-request deadline tripped, not the caller's own context
			return corerr.Transient(req.Operation, fmt.Errorf("request deadline exceeded: %w", err))
		}
		return corerr.Transient(req.Operation, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if req.Out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, req.Out); err != nil {
				return corerr.DataIntegrity(req.Operation, corerr.ParseError(req.Operation, "JSON", err))
			}
		}
		return nil
	case resp.StatusCode >= 500:
		return corerr.Transient(req.Operation, fmt.Errorf("%s returned status %d", req.Operation, resp.StatusCode))
	default:
		return corerr.Permanent(req.Operation, fmt.Errorf("%s returned status %d: %s", req.Operation, resp.StatusCode, string(respBody)))
	}
}

// Healthy issues a GET /health and treats any 2xx as healthy, matching
// spec.md §6's sandbox health contract generalized to every downstream.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
