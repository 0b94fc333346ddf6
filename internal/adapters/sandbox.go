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

// Package adapters holds one thin, typed wrapper per downstream named in the
// external-interfaces contract, each built on a single shared rpcclient.Client
// and breaker.CircuitBreaker instance for that downstream.
package adapters

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nexusforge/substrate/internal/breaker"
	"github.com/nexusforge/substrate/internal/metrics"
	"github.com/nexusforge/substrate/internal/rpcclient"
)

// supportedLanguages is the allow-list enforced by the "oneof" validator tag
// on SandboxRequest.Language.
const supportedLanguages = "python javascript go bash ruby java"

// SandboxRequest is the `POST /execute` body.
type SandboxRequest struct {
	Code           string            `json:"code" validate:"required"`
	Language       string            `json:"language" validate:"required,oneof=python javascript go bash ruby java"`
	Packages       []string          `json:"packages,omitempty"`
	Files          map[string]string `json:"files,omitempty"`
	TimeoutMs      int               `json:"timeout" validate:"required,max=300000"`
	ResourceLimits ResourceLimits    `json:"resourceLimits" validate:"required"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ResourceLimits carries the sandbox's per-execution ceilings.
type ResourceLimits struct {
	Memory string `json:"memory" validate:"required,memlimit"`
	CPU    string `json:"cpu,omitempty"`
}

// SandboxResponse is the `POST /execute` decoded result.
type SandboxResponse struct {
	Success         bool              `json:"success"`
	Stdout          string            `json:"stdout,omitempty"`
	Stderr          string            `json:"stderr,omitempty"`
	ExitCode        int               `json:"exitCode,omitempty"`
	ExecutionTimeMs int64             `json:"executionTimeMs"`
	ResourceUsage   map[string]any    `json:"resourceUsage,omitempty"`
	Artifacts       []string          `json:"artifacts,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// SandboxAdapter fronts the sandbox execution service.
type SandboxAdapter struct {
	client *rpcclient.Client
}

// NewSandboxAdapter builds the adapter and its shared breaker/client pair for
// the sandbox downstream.
func NewSandboxAdapter(baseURL string, cfg rpcclient.ClientConfig, bcfg breaker.Config, reg *metrics.Registry, log *zap.Logger) *SandboxAdapter {
	cb := breaker.New("sandbox", bcfg, reg)
	return &SandboxAdapter{client: rpcclient.New("sandbox", baseURL, cfg, cb, reg, log)}
}

// Execute runs code in the sandbox and decodes the result.
func (a *SandboxAdapter) Execute(ctx context.Context, req SandboxRequest) (*SandboxResponse, error) {
	var out SandboxResponse
	err := a.client.Execute(ctx, rpcclient.Request{
		Operation: "execute",
		Path:      "/execute",
		Payload:   req,
		Out:       &out,
		Timeout:   time.Duration(req.TimeoutMs) * time.Millisecond,
		Language:  req.Language,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthy reports the sandbox's /health status.
func (a *SandboxAdapter) Healthy(ctx context.Context) bool {
	return a.client.Healthy(ctx)
}
