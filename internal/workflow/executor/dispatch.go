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

package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nexusforge/substrate/internal/adapters"
	"github.com/nexusforge/substrate/internal/corerr"
	"github.com/nexusforge/substrate/internal/workflow"
)

// dispatch routes a resolved step to the bundle member named by its Service,
// marshaling Input into that adapter's request type and its response back
// into a plain map for StepResult.Data (spec.md §4.5).
func dispatch(ctx context.Context, bundle *adapters.Bundle, step *workflow.WorkflowStep, input map[string]interface{}) (map[string]interface{}, error) {
	switch step.Service {
	case workflow.ServiceSandbox:
		var req adapters.SandboxRequest
		if err := remarshal(input, &req); err != nil {
			return nil, corerr.New(corerr.KindValidation, "executor.dispatch", err)
		}
		resp, err := bundle.Sandbox.Execute(ctx, req)
		return toMap(resp), err

	case workflow.ServiceFileProcess:
		var req adapters.FileProcessRequest
		if err := remarshal(input, &req); err != nil {
			return nil, corerr.New(corerr.KindValidation, "executor.dispatch", err)
		}
		resp, err := bundle.FileProcessor.Process(ctx, req)
		return toMap(resp), err

	case workflow.ServiceCyberAgent:
		var req adapters.CyberScanRequest
		if err := remarshal(input, &req); err != nil {
			return nil, corerr.New(corerr.KindValidation, "executor.dispatch", err)
		}
		resp, err := bundle.CyberScanner.Scan(ctx, req)
		return toMap(resp), err

	case workflow.ServiceMageAgent:
		var req adapters.CompletionRequest
		if err := remarshal(input, &req); err != nil {
			return nil, corerr.New(corerr.KindValidation, "executor.dispatch", err)
		}
		resp, err := bundle.LLMCompletion.Complete(ctx, req)
		return toMap(resp), err

	case workflow.ServiceGraphRAG:
		switch step.Operation {
		case "query":
			var req adapters.QueryRequest
			if err := remarshal(input, &req); err != nil {
				return nil, corerr.New(corerr.KindValidation, "executor.dispatch", err)
			}
			resp, err := bundle.KnowledgeStore.Query(ctx, req)
			return toMap(resp), err
		case "persist_batch":
			var req adapters.PersistBatchRequest
			if err := remarshal(input, &req); err != nil {
				return nil, corerr.New(corerr.KindValidation, "executor.dispatch", err)
			}
			resp, err := bundle.KnowledgeStore.PersistBatch(ctx, req)
			return toMap(resp), err
		}
	}
	return nil, corerr.New(corerr.KindValidation, "executor.dispatch", fmt.Errorf("no dispatch target for %s.%s", step.Service, step.Operation))
}

// remarshal round-trips a loosely-typed map into a concrete request struct.
func remarshal(input map[string]interface{}, out interface{}) error {
	buf, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}

// toMap round-trips a concrete response struct into a loosely-typed map, the
// shape StepResult.Data and ${ref:...} resolution expect. A nil resp yields
// a nil map.
func toMap(resp interface{}) map[string]interface{} {
	if resp == nil {
		return nil
	}
	buf, err := json.Marshal(resp)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil
	}
	return out
}
