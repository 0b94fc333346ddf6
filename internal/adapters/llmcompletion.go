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

package adapters

import (
	"context"

	"go.uber.org/zap"

	"github.com/nexusforge/substrate/internal/breaker"
	"github.com/nexusforge/substrate/internal/metrics"
	"github.com/nexusforge/substrate/internal/rpcclient"
)

// CompletionRequest is the body for the LLM completion service's JSON RPC
// surface, used both by mageagent workflow steps and (via langchaingo
// directly, not this adapter) by the Workflow Planner's plan-generation call.
type CompletionRequest struct {
	Prompt      string  `json:"prompt" validate:"required"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty" validate:"omitempty,gt=0"`
	Temperature float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// CompletionResponse is the decoded completion result.
type CompletionResponse struct {
	Success      bool   `json:"success"`
	Text         string `json:"text,omitempty"`
	FinishReason string `json:"finishReason,omitempty"`
	Error        string `json:"error,omitempty"`
}

// LLMCompletionAdapter fronts the mageagent completion service for ordinary
// workflow steps (as distinct from the Workflow Planner's direct langchaingo
// seam, which needs streaming/tool-use features this JSON RPC surface does
// not expose).
type LLMCompletionAdapter struct {
	client *rpcclient.Client
}

// NewLLMCompletionAdapter builds the adapter and its dedicated breaker.
func NewLLMCompletionAdapter(baseURL string, cfg rpcclient.ClientConfig, bcfg breaker.Config, reg *metrics.Registry, log *zap.Logger) *LLMCompletionAdapter {
	cb := breaker.New("mageagent", bcfg, reg)
	return &LLMCompletionAdapter{client: rpcclient.New("mageagent", baseURL, cfg, cb, reg, log)}
}

// Complete issues a completion request and decodes the result.
func (a *LLMCompletionAdapter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var out CompletionResponse
	err := a.client.Execute(ctx, rpcclient.Request{
		Operation: "complete",
		Path:      "/complete",
		Payload:   req,
		Out:       &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthy reports the completion service's /health status.
func (a *LLMCompletionAdapter) Healthy(ctx context.Context) bool {
	return a.client.Healthy(ctx)
}
