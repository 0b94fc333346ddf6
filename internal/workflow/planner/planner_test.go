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

package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	content string
	err     error
}

func (f *fakeModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content}}}, nil
}

func TestPlanner_BuildsPlanFromValidJSON(t *testing.T) {
	raw := `{
		"steps": [
			{"name": "scan", "service": "cyberagent", "operation": "scan", "input": {}, "depends_on": []},
			{"name": "persist", "service": "graphrag", "operation": "persist_batch", "input": {}, "depends_on": ["scan"]}
		],
		"confidence": 0.9,
		"clarifications": []
	}`
	p := New(&fakeModel{content: raw}, nil, nil)

	plan, err := p.Plan(context.Background(), "scan this file and remember the result", Options{})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	require.Len(t, plan.ParallelGroups, 2, "persist must depend on scan")
	require.InDelta(t, 0.9, plan.Confidence, 0.0001)
}

func TestPlanner_StripsMarkdownFence(t *testing.T) {
	raw := "```json\n{\"steps\":[{\"name\":\"run\",\"service\":\"sandbox\",\"operation\":\"execute\",\"input\":{},\"depends_on\":[]}],\"confidence\":0.8,\"clarifications\":[]}\n```"
	p := New(&fakeModel{content: raw}, nil, nil)

	plan, err := p.Plan(context.Background(), "run this snippet", Options{})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
}

func TestPlanner_RejectsUnknownOperation(t *testing.T) {
	raw := `{"steps":[{"name":"x","service":"sandbox","operation":"launch_missiles","input":{},"depends_on":[]}],"confidence":0.9,"clarifications":[]}`
	p := New(&fakeModel{content: raw}, nil, nil)

	_, err := p.Plan(context.Background(), "do something bad", Options{})
	require.Error(t, err)
}

func TestPlanner_RejectsUnknownDependencyName(t *testing.T) {
	raw := `{"steps":[{"name":"x","service":"sandbox","operation":"execute","input":{},"depends_on":["ghost"]}],"confidence":0.9,"clarifications":[]}`
	p := New(&fakeModel{content: raw}, nil, nil)

	_, err := p.Plan(context.Background(), "do something", Options{})
	require.Error(t, err)
}

func TestPlanner_ConfidenceBlendsWithRegistryRecognitionRate(t *testing.T) {
	// Only a subset of steps are in the registry, so the planner should clamp
	// down to the actual recognized proportion -- but since an unrecognized
	// operation is a hard validation error, emulate a lower self-reported
	// confidence dominating the (fully recognized) registry rate instead.
	raw := `{"steps":[{"name":"x","service":"sandbox","operation":"execute","input":{},"depends_on":[]}],"confidence":0.4,"clarifications":["which file?"]}`
	p := New(&fakeModel{content: raw}, nil, nil)

	plan, err := p.Plan(context.Background(), "run something, unclear which file", Options{})
	require.NoError(t, err)
	require.InDelta(t, 0.4, plan.Confidence, 0.0001)
	require.Equal(t, []string{"which file?"}, plan.Clarifications)
}

func TestPlanner_PropagatesModelError(t *testing.T) {
	p := New(&fakeModel{err: context.DeadlineExceeded}, nil, nil)

	_, err := p.Plan(context.Background(), "anything", Options{})
	require.Error(t, err)
}
