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

package executor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nexusforge/substrate/internal/adapters"
	"github.com/nexusforge/substrate/internal/metrics"
	"github.com/nexusforge/substrate/internal/rpcclient"
	"github.com/nexusforge/substrate/internal/workflow"
	"github.com/nexusforge/substrate/internal/workflow/executor"
)

func TestExecutor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Workflow Executor Suite")
}

func buildBundle(handlers map[string]http.HandlerFunc) *adapters.Bundle {
	mux := http.NewServeMux()
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := httptest.NewServer(mux)
	DeferCleanup(srv.Close)

	reg := metrics.New(prometheus.NewRegistry())
	ep := adapters.Endpoints{
		Sandbox:     srv.URL,
		FileProcess: srv.URL,
		CyberAgent:  srv.URL,
		MageAgent:   srv.URL,
		GraphRAG:    srv.URL,
	}
	return adapters.NewBundle(ep, rpcclient.DefaultClientConfig(), adapters.BreakerConfigs{}, reg, nil)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func sandboxStep(id string, deps ...string) *workflow.WorkflowStep {
	return &workflow.WorkflowStep{
		ID: id, Name: id, Service: workflow.ServiceSandbox, Operation: "execute",
		DependsOn: deps,
		Input: map[string]interface{}{
			"code": "print(1)", "language": "python", "timeout": 1000,
			"resourceLimits": map[string]interface{}{"memory": "64Mi"},
		},
	}
}

var _ = Describe("Workflow Executor", func() {
	// scenario: two-step chain, later step references an earlier one's result.
	It("resolves ${ref:...} references from an upstream step into a downstream step's input", func() {
		gotTenant := make(chan string, 1)
		bundle := buildBundle(map[string]http.HandlerFunc{
			"/scan": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, adapters.CyberScanResponse{Success: true, ThreatLevel: "low"})
			},
			"/chunks/batch": func(w http.ResponseWriter, r *http.Request) {
				var req adapters.PersistBatchRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if len(req.Chunks) > 0 {
					gotTenant <- req.Chunks[0].TenantID
				}
				writeJSON(w, adapters.PersistBatchResponse{Success: true, PersistedIDs: []string{"c1"}})
			},
		})

		scan := &workflow.WorkflowStep{
			ID: "scan", Name: "scan", Service: workflow.ServiceCyberAgent, Operation: "scan",
			Input: map[string]interface{}{"targetId": "t1", "content": []byte("hi"), "scanType": "static"},
		}
		persist := &workflow.WorkflowStep{
			ID: "persist", Name: "persist", Service: workflow.ServiceGraphRAG, Operation: "persist_batch",
			DependsOn: []string{"scan"},
			Input: map[string]interface{}{
				"streamId": "s1",
				"chunks": []interface{}{
					map[string]interface{}{
						"chunkId": "c1", "sequence": 0, "content": []byte("x"), "tokens": 1,
						"streamId": "s1", "domain": "security", "tenantId": "${ref:scan.threatLevel}", "isFinal": true,
					},
				},
			},
		}
		plan := &workflow.Plan{
			ID: "p1", Steps: []*workflow.WorkflowStep{scan, persist},
			ParallelGroups: [][]string{{"scan"}, {"persist"}},
			Mode:           workflow.ModeBestEffort,
		}

		report, err := executor.New(bundle, 2, nil).Run(context.Background(), plan)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Outcome).To(Equal(executor.OutcomeCompleted))
		Expect(scan.Status).To(Equal(workflow.StepCompleted))
		Expect(persist.Status).To(Equal(workflow.StepCompleted))
		Expect(gotTenant).To(Receive(Equal("low")))
	})

	It("skips every downstream of a failed step in strict mode", func() {
		bundle := buildBundle(map[string]http.HandlerFunc{
			"/execute": func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				writeJSON(w, map[string]string{"error": "boom"})
			},
		})

		a := sandboxStep("a")
		b := sandboxStep("b", "a")
		plan := &workflow.Plan{
			ID: "p2", Steps: []*workflow.WorkflowStep{a, b},
			ParallelGroups: [][]string{{"a"}, {"b"}},
			Mode:           workflow.ModeStrict,
		}

		report, err := executor.New(bundle, 2, nil).Run(context.Background(), plan)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Outcome).To(Equal(executor.OutcomeFailed))
		Expect(a.Status).To(Equal(workflow.StepFailed))
		Expect(b.Status).To(Equal(workflow.StepSkipped))
	})

	It("still dispatches downstream steps in best-effort mode, reporting degraded", func() {
		calls := 0
		bundle := buildBundle(map[string]http.HandlerFunc{
			"/execute": func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(http.StatusInternalServerError)
				writeJSON(w, map[string]string{"error": "boom"})
			},
		})

		a := sandboxStep("a")
		b := sandboxStep("b", "a")
		plan := &workflow.Plan{
			ID: "p3", Steps: []*workflow.WorkflowStep{a, b},
			ParallelGroups: [][]string{{"a"}, {"b"}},
			Mode:           workflow.ModeBestEffort,
		}

		report, err := executor.New(bundle, 2, nil).Run(context.Background(), plan)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Outcome).To(Equal(executor.OutcomeDegraded))
		// Each step's 500 is retried by the RPC client: 1 attempt plus
		// DefaultClientConfig().MaxRetries (3) retries, for both a and b.
		Expect(calls).To(Equal(8))
	})

	It("fails a step with ErrTimeout once its own timeout elapses", func() {
		bundle := buildBundle(map[string]http.HandlerFunc{
			"/execute": func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(100 * time.Millisecond)
				writeJSON(w, adapters.SandboxResponse{Success: true})
			},
		})

		a := sandboxStep("a")
		a.Timeout = 5 * time.Millisecond
		plan := &workflow.Plan{
			ID: "p4", Steps: []*workflow.WorkflowStep{a},
			ParallelGroups: [][]string{{"a"}},
			Mode:           workflow.ModeBestEffort,
		}

		_, err := executor.New(bundle, 1, nil).Run(context.Background(), plan)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Status).To(Equal(workflow.StepFailed))
		Expect(a.Error.Code).To(Equal(workflow.ErrTimeout))
	})
})
