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

// ChunkPayload is one persisted unit of a batch write; the Streaming Storage
// Pipeline's consumer builds these from its in-flight StreamChunks.
type ChunkPayload struct {
	ChunkID   string `json:"chunkId" validate:"required"`
	Sequence  int    `json:"sequence" validate:"gte=0"`
	Content   []byte `json:"content" validate:"required"`
	Tokens    int    `json:"tokens" validate:"required,gt=0"`
	StreamID  string `json:"streamId" validate:"required"`
	Domain    string `json:"domain" validate:"required"`
	AgentID   string `json:"agentId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	IsFinal   bool   `json:"isFinal"`
	TenantID  string `json:"tenantId" validate:"required"`
}

// PersistBatchRequest is the body for the knowledge store's batch write
// endpoint, exercised by the Streaming Storage Pipeline's batch consumer.
type PersistBatchRequest struct {
	StreamID string         `json:"streamId" validate:"required"`
	Chunks   []ChunkPayload `json:"chunks" validate:"required,min=1,dive"`
}

// PersistBatchResponse reports which chunks landed.
type PersistBatchResponse struct {
	Success       bool     `json:"success"`
	PersistedIDs  []string `json:"persistedIds,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// QueryRequest is the body for a graphrag-style retrieval call, dispatched by
// the Workflow Executor for a step whose service is "graphrag".
type QueryRequest struct {
	Query    string `json:"query" validate:"required"`
	TopK     int    `json:"topK" validate:"required,gt=0,lte=100"`
	Filters  map[string]string `json:"filters,omitempty"`
}

// QueryResponse carries retrieved passages ranked by relevance.
type QueryResponse struct {
	Success bool              `json:"success"`
	Results []QueryResultItem `json:"results,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// QueryResultItem is a single ranked retrieval hit.
type QueryResultItem struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source,omitempty"`
}

// KnowledgeStoreAdapter fronts the vector/knowledge store, used both by the
// Streaming Storage Pipeline (persistence) and the Workflow Executor
// (graphrag retrieval steps).
type KnowledgeStoreAdapter struct {
	client *rpcclient.Client
}

// NewKnowledgeStoreAdapter builds the adapter and its dedicated breaker.
func NewKnowledgeStoreAdapter(baseURL string, cfg rpcclient.ClientConfig, bcfg breaker.Config, reg *metrics.Registry, log *zap.Logger) *KnowledgeStoreAdapter {
	cb := breaker.New("graphrag", bcfg, reg)
	return &KnowledgeStoreAdapter{client: rpcclient.New("graphrag", baseURL, cfg, cb, reg, log)}
}

// PersistBatch atomically writes one consumer batch of chunks.
func (a *KnowledgeStoreAdapter) PersistBatch(ctx context.Context, req PersistBatchRequest) (*PersistBatchResponse, error) {
	var out PersistBatchResponse
	err := a.client.Execute(ctx, rpcclient.Request{
		Operation: "persist_batch",
		Path:      "/chunks/batch",
		Payload:   req,
		Out:       &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Query runs a retrieval query against the knowledge store.
func (a *KnowledgeStoreAdapter) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	var out QueryResponse
	err := a.client.Execute(ctx, rpcclient.Request{
		Operation: "query",
		Path:      "/query",
		Payload:   req,
		Out:       &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthy reports the knowledge store's /health status.
func (a *KnowledgeStoreAdapter) Healthy(ctx context.Context) bool {
	return a.client.Healthy(ctx)
}
