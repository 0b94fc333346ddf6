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

package workflow

import "testing"

func step(id string, deps ...string) *WorkflowStep {
	return &WorkflowStep{ID: id, DependsOn: deps}
}

func TestComputeParallelGroups_Diamond(t *testing.T) {
	steps := []*WorkflowStep{
		step("a"),
		step("b", "a"),
		step("c", "a"),
		step("d", "b", "c"),
	}
	groups, err := ComputeParallelGroups(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 levels, got %d: %v", len(groups), groups)
	}
	if len(groups[0]) != 1 || groups[0][0] != "a" {
		t.Errorf("level 0 = %v, want [a]", groups[0])
	}
	if len(groups[1]) != 2 {
		t.Errorf("level 1 = %v, want 2 parallel steps", groups[1])
	}
	if len(groups[2]) != 1 || groups[2][0] != "d" {
		t.Errorf("level 2 = %v, want [d]", groups[2])
	}
}

func TestComputeParallelGroups_RejectsCycle(t *testing.T) {
	steps := []*WorkflowStep{
		step("a", "b"),
		step("b", "a"),
	}
	_, err := ComputeParallelGroups(steps)
	if err == nil {
		t.Fatal("expected a cycle error")
	}
}

func TestComputeParallelGroups_RejectsUnknownDependency(t *testing.T) {
	steps := []*WorkflowStep{step("a", "ghost")}
	_, err := ComputeParallelGroups(steps)
	if err == nil {
		t.Fatal("expected an unknown-dependency error")
	}
}
