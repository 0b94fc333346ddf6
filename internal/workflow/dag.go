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

import "fmt"

// ComputeParallelGroups implements spec.md §4.4's dependency layering:
// level(s) = 0 if depends_on(s) is empty, else 1 + max(level(d)) over its
// dependencies. Steps are grouped by level into ParallelGroups. An error is
// returned for a dependency cycle or a reference to an unknown step ID.
func ComputeParallelGroups(steps []*WorkflowStep) ([][]string, error) {
	byID := make(map[string]*WorkflowStep, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("step %s depends on unknown step %s", s.ID, dep)
			}
		}
	}

	levels := make(map[string]int, len(steps))
	state := make(map[string]int, len(steps)) // 0=unvisited, 1=in-progress, 2=done

	var visit func(id string) (int, error)
	visit = func(id string) (int, error) {
		switch state[id] {
		case 1:
			return 0, fmt.Errorf("dependency cycle detected at step %s", id)
		case 2:
			return levels[id], nil
		}
		state[id] = 1
		step := byID[id]
		level := 0
		for _, dep := range step.DependsOn {
			depLevel, err := visit(dep)
			if err != nil {
				return 0, err
			}
			if depLevel+1 > level {
				level = depLevel + 1
			}
		}
		state[id] = 2
		levels[id] = level
		return level, nil
	}

	maxLevel := 0
	for _, s := range steps {
		lvl, err := visit(s.ID)
		if err != nil {
			return nil, err
		}
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}

	groups := make([][]string, maxLevel+1)
	for _, s := range steps {
		lvl := levels[s.ID]
		groups[lvl] = append(groups[lvl], s.ID)
	}
	return groups, nil
}
