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

// Package planner turns a natural-language request into a validated
// workflow.Plan by delegating parsing to an external LLM constrained to
// emit JSON (spec.md §4.4).
package planner

import "github.com/nexusforge/substrate/internal/workflow"

// OperationRegistry is the closed set of (service, operation) pairs a
// planner will accept; any step naming an operation outside this set is
// rejected as an invalid plan.
type OperationRegistry map[workflow.Service]map[string]bool

// DefaultOperationRegistry lists the operations the downstream adapters in
// internal/adapters actually expose.
func DefaultOperationRegistry() OperationRegistry {
	return OperationRegistry{
		workflow.ServiceSandbox:     {"execute": true},
		workflow.ServiceFileProcess: {"process": true},
		workflow.ServiceCyberAgent:  {"scan": true},
		workflow.ServiceGraphRAG:    {"query": true, "persist_batch": true},
		workflow.ServiceMageAgent:   {"complete": true},
	}
}

// Known reports whether (service, operation) is recognized.
func (r OperationRegistry) Known(service workflow.Service, operation string) bool {
	ops, ok := r[service]
	if !ok {
		return false
	}
	return ops[operation]
}
