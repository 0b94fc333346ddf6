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
	"go.uber.org/zap"

	"github.com/nexusforge/substrate/internal/breaker"
	"github.com/nexusforge/substrate/internal/metrics"
	"github.com/nexusforge/substrate/internal/rpcclient"
)

// Endpoints carries the per-downstream base URL, keyed by the same service
// names WorkflowStep.Service uses (spec.md §3).
type Endpoints struct {
	Sandbox      string
	FileProcess  string
	CyberAgent   string
	MageAgent    string
	GraphRAG     string
}

// BreakerConfigs carries the per-downstream breaker tunables; a zero-value
// entry falls back to breaker.DefaultConfig() (spec.md §4.1 defaults).
type BreakerConfigs struct {
	Sandbox      breaker.Config
	FileProcess  breaker.Config
	CyberAgent   breaker.Config
	MageAgent    breaker.Config
	GraphRAG     breaker.Config
}

func orDefault(c breaker.Config) breaker.Config {
	if c.FailureThreshold == 0 && c.SuccessThreshold == 0 && c.Cooldown == 0 {
		return breaker.DefaultConfig()
	}
	return c
}

// Bundle is every downstream adapter the Workflow Executor dispatches steps
// to, one per spec.md §3's WorkflowStep.Service enum.
type Bundle struct {
	Sandbox       *SandboxAdapter
	FileProcessor *FileProcessorAdapter
	CyberScanner  *CyberScannerAdapter
	KnowledgeStore *KnowledgeStoreAdapter
	LLMCompletion *LLMCompletionAdapter
}

// NewBundle wires one adapter per downstream, each with its own pooled HTTP
// client and dedicated circuit breaker (spec.md §9 "breaker per downstream,
// not per call site").
func NewBundle(ep Endpoints, cfg rpcclient.ClientConfig, bc BreakerConfigs, reg *metrics.Registry, log *zap.Logger) *Bundle {
	return &Bundle{
		Sandbox:        NewSandboxAdapter(ep.Sandbox, cfg, orDefault(bc.Sandbox), reg, log),
		FileProcessor:  NewFileProcessorAdapter(ep.FileProcess, cfg, orDefault(bc.FileProcess), reg, log),
		CyberScanner:   NewCyberScannerAdapter(ep.CyberAgent, cfg, orDefault(bc.CyberAgent), reg, log),
		KnowledgeStore: NewKnowledgeStoreAdapter(ep.GraphRAG, cfg, orDefault(bc.GraphRAG), reg, log),
		LLMCompletion:  NewLLMCompletionAdapter(ep.MageAgent, cfg, orDefault(bc.MageAgent), reg, log),
	}
}
