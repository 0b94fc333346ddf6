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

// Package config loads the substrate's process-start configuration: one
// struct per subsystem, assembled into a root Config and read once at boot
// (spec.md §6 "Configuration"; no hot reload required).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexusforge/substrate/internal/adapters"
	"github.com/nexusforge/substrate/internal/breaker"
	"github.com/nexusforge/substrate/internal/patterns"
	"github.com/nexusforge/substrate/internal/rpcclient"
	"github.com/nexusforge/substrate/internal/streaming"
)

// Downstreams carries the per-downstream base URL and breaker overrides
// named in spec.md §6.
type Downstreams struct {
	Sandbox     DownstreamConfig `yaml:"sandbox"`
	FileProcess DownstreamConfig `yaml:"fileprocess"`
	CyberAgent  DownstreamConfig `yaml:"cyberagent"`
	MageAgent   DownstreamConfig `yaml:"mageagent"`
	GraphRAG    DownstreamConfig `yaml:"graphrag"`
}

// DownstreamConfig is one entry of Downstreams.
type DownstreamConfig struct {
	BaseURL          string        `yaml:"base_url"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	SuccessThreshold uint32        `yaml:"success_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// Workflow governs the Workflow Planner and Executor (spec.md §4.4-§4.5).
type Workflow struct {
	MaxConcurrentSteps int    `yaml:"max_concurrent_steps"`
	DefaultModel       string `yaml:"default_model"`
}

// Logging governs the root zap logger's construction.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration document, loaded once at process start.
type Config struct {
	Downstreams Downstreams      `yaml:"downstreams"`
	RPCClient   rpcclient.ClientConfig `yaml:"-"`
	Streaming   streaming.Config `yaml:"streaming"`
	Patterns    patterns.Config  `yaml:"patterns"`
	Workflow    Workflow         `yaml:"workflow"`
	Logging     Logging          `yaml:"logging"`
}

// Default returns the configuration spec.md's defaults describe, before any
// file or environment overrides are applied.
func Default() Config {
	return Config{
		Downstreams: Downstreams{
			Sandbox:     DownstreamConfig{BaseURL: "http://sandbox:8080", FailureThreshold: 5, SuccessThreshold: 2, Cooldown: 60 * time.Second},
			FileProcess: DownstreamConfig{BaseURL: "http://fileprocessor:8080", FailureThreshold: 5, SuccessThreshold: 2, Cooldown: 60 * time.Second},
			CyberAgent:  DownstreamConfig{BaseURL: "http://cyberscanner:8080", FailureThreshold: 5, SuccessThreshold: 2, Cooldown: 60 * time.Second},
			MageAgent:   DownstreamConfig{BaseURL: "http://llm-completion:8080", FailureThreshold: 5, SuccessThreshold: 2, Cooldown: 60 * time.Second},
			GraphRAG:    DownstreamConfig{BaseURL: "http://knowledgestore:8080", FailureThreshold: 5, SuccessThreshold: 2, Cooldown: 60 * time.Second},
		},
		RPCClient: rpcclient.DefaultClientConfig(),
		Streaming: streaming.DefaultConfig(),
		Patterns:  patterns.DefaultConfig(),
		Workflow:  Workflow{MaxConcurrentSteps: 5, DefaultModel: "claude-sonnet"},
		Logging:   Logging{Level: "info", Format: "json"},
	}
}

// Load reads a YAML document at path over the defaults, then applies
// environment-variable overrides for per-deployment values (downstream base
// URLs, the default model, the log level).
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SANDBOX_BASE_URL"); v != "" {
		cfg.Downstreams.Sandbox.BaseURL = v
	}
	if v := os.Getenv("FILEPROCESS_BASE_URL"); v != "" {
		cfg.Downstreams.FileProcess.BaseURL = v
	}
	if v := os.Getenv("CYBERAGENT_BASE_URL"); v != "" {
		cfg.Downstreams.CyberAgent.BaseURL = v
	}
	if v := os.Getenv("MAGEAGENT_BASE_URL"); v != "" {
		cfg.Downstreams.MageAgent.BaseURL = v
	}
	if v := os.Getenv("GRAPHRAG_BASE_URL"); v != "" {
		cfg.Downstreams.GraphRAG.BaseURL = v
	}
	if v := os.Getenv("WORKFLOW_DEFAULT_MODEL"); v != "" {
		cfg.Workflow.DefaultModel = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// BreakerConfig adapts a DownstreamConfig to breaker.Config.
func (d DownstreamConfig) BreakerConfig() breaker.Config {
	cfg := breaker.DefaultConfig()
	if d.FailureThreshold > 0 {
		cfg.FailureThreshold = d.FailureThreshold
	}
	if d.SuccessThreshold > 0 {
		cfg.SuccessThreshold = d.SuccessThreshold
	}
	if d.Cooldown > 0 {
		cfg.Cooldown = d.Cooldown
	}
	return cfg
}

// Endpoints projects Downstreams into the base-URL-only shape adapters.Bundle
// wants.
func (d Downstreams) Endpoints() adapters.Endpoints {
	return adapters.Endpoints{
		Sandbox:     d.Sandbox.BaseURL,
		FileProcess: d.FileProcess.BaseURL,
		CyberAgent:  d.CyberAgent.BaseURL,
		MageAgent:   d.MageAgent.BaseURL,
		GraphRAG:    d.GraphRAG.BaseURL,
	}
}
