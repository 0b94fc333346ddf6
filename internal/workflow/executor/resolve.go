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
	"strings"

	"github.com/nexusforge/substrate/internal/workflow"
)

const refPrefix = "${ref:"

// resolveInput walks a step's input recursively, replacing any string of the
// form "${ref:stepId.field}" or "${ref:stepId.nested.field}" with the value
// found at that dotted path inside the named step's result data. A
// reference to a step that never ran, or a path that doesn't resolve, is
// left as the literal string (spec.md §4.5).
func resolveInput(input map[string]interface{}, results map[string]*workflow.StepResult) map[string]interface{} {
	if input == nil {
		return nil
	}
	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		out[k] = resolveValue(v, results)
	}
	return out
}

func resolveValue(v interface{}, results map[string]*workflow.StepResult) interface{} {
	switch val := v.(type) {
	case string:
		return resolveString(val, results)
	case map[string]interface{}:
		return resolveInput(val, results)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = resolveValue(item, results)
		}
		return out
	default:
		return v
	}
}

func resolveString(s string, results map[string]*workflow.StepResult) interface{} {
	if !strings.HasPrefix(s, refPrefix) || !strings.HasSuffix(s, "}") {
		return s
	}
	ref := strings.TrimSuffix(strings.TrimPrefix(s, refPrefix), "}")
	parts := strings.SplitN(ref, ".", 2)
	if len(parts) != 2 {
		return s
	}
	stepRef, path := parts[0], parts[1]

	result, ok := results[stepRef]
	if !ok || result.Data == nil {
		return s
	}

	var cur interface{} = result.Data
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return s
		}
		cur, ok = m[key]
		if !ok {
			return s
		}
	}
	return cur
}
