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

const maxFileSizeBytes = 100 * 1024 * 1024 // 100 MiB, spec.md §4.1/§6

// FileProcessRequest is the body accepted by the file processor's analogous
// validated JSON RPC surface (spec.md §6).
type FileProcessRequest struct {
	FileName string `json:"fileName" validate:"required"`
	MimeType string `json:"mimeType" validate:"required"`
	SizeBytes int64  `json:"sizeBytes" validate:"required,max=104857600"`
	Content  []byte `json:"content" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// FileProcessResponse is the decoded processing result.
type FileProcessResponse struct {
	Success        bool           `json:"success"`
	Classification string         `json:"classification,omitempty"`
	ExtractedText  string         `json:"extractedText,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// FileProcessorAdapter fronts the file processing service.
type FileProcessorAdapter struct {
	client *rpcclient.Client
}

// NewFileProcessorAdapter builds the adapter and its dedicated breaker.
func NewFileProcessorAdapter(baseURL string, cfg rpcclient.ClientConfig, bcfg breaker.Config, reg *metrics.Registry, log *zap.Logger) *FileProcessorAdapter {
	cb := breaker.New("fileprocess", bcfg, reg)
	return &FileProcessorAdapter{client: rpcclient.New("fileprocess", baseURL, cfg, cb, reg, log)}
}

// Process submits a file for processing and decodes the result.
func (a *FileProcessorAdapter) Process(ctx context.Context, req FileProcessRequest) (*FileProcessResponse, error) {
	var out FileProcessResponse
	err := a.client.Execute(ctx, rpcclient.Request{
		Operation: "process",
		Path:      "/process",
		Payload:   req,
		Out:       &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthy reports the file processor's /health status.
func (a *FileProcessorAdapter) Healthy(ctx context.Context) bool {
	return a.client.Healthy(ctx)
}
