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

// CyberScanRequest is the body the cyber scanner's analogous validated JSON
// RPC surface accepts (spec.md §6).
type CyberScanRequest struct {
	TargetID string            `json:"targetId" validate:"required"`
	Content  []byte            `json:"content" validate:"required"`
	ScanType string            `json:"scanType" validate:"required,oneof=static dynamic hybrid"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CyberScanResponse is the decoded scan verdict.
type CyberScanResponse struct {
	Success     bool     `json:"success"`
	ThreatLevel string   `json:"threatLevel,omitempty"`
	Findings    []string `json:"findings,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// CyberScannerAdapter fronts the malware/threat scanning service.
type CyberScannerAdapter struct {
	client *rpcclient.Client
}

// NewCyberScannerAdapter builds the adapter and its dedicated breaker.
func NewCyberScannerAdapter(baseURL string, cfg rpcclient.ClientConfig, bcfg breaker.Config, reg *metrics.Registry, log *zap.Logger) *CyberScannerAdapter {
	cb := breaker.New("cyberagent", bcfg, reg)
	return &CyberScannerAdapter{client: rpcclient.New("cyberagent", baseURL, cfg, cb, reg, log)}
}

// Scan submits content for scanning and decodes the verdict.
func (a *CyberScannerAdapter) Scan(ctx context.Context, req CyberScanRequest) (*CyberScanResponse, error) {
	var out CyberScanResponse
	err := a.client.Execute(ctx, rpcclient.Request{
		Operation: "scan",
		Path:      "/scan",
		Payload:   req,
		Out:       &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthy reports the scanner's /health status.
func (a *CyberScannerAdapter) Healthy(ctx context.Context) bool {
	return a.client.Healthy(ctx)
}
