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

package rpcclient

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var memoryPattern = regexp.MustCompile(`^(\d+)(Mi|Gi)$`)

// newValidator builds the struct-tag validator shared by every downstream
// adapter's request DTO, with the domain-specific checks spec.md §4.1 and
// §6 name registered as custom tags.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("memlimit", validateMemoryLimit)
	return v
}

// validateMemoryLimit enforces the "^(\d+)(Mi|Gi)$" shape from spec.md §6
// and the 2048 MiB ceiling from spec.md §4.1.
func validateMemoryLimit(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	m := memoryPattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return false
	}
	mib := n
	if strings.EqualFold(m[2], "Gi") {
		mib = n * 1024
	}
	return mib <= 2048
}
