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

// Package corerr provides the error-wrapping vocabulary shared by every
// subsystem of the orchestration substrate: generic operation-wrapping
// helpers plus the closed Kind taxonomy each layer tags its errors with.
package corerr

import (
	"fmt"
	"strings"
)

// OperationError describes a failed operation with optional component and
// resource context, the shape every lower-level error gets wrapped into
// before a Kind is attached at a subsystem boundary.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to %s", e.Operation)
	if e.Component != "" {
		fmt.Fprintf(&b, ", component: %s", e.Component)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, ", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ", cause: %s", e.Cause.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error { return e.Cause }

// FailedTo builds a minimal error, "failed to <action>[: cause]", wrapping
// cause when one is given.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return &OperationError{Operation: action}
	}
	return fmt.Errorf("failed to %s: %w", action, cause)
}

// FailedToWithDetails attaches component/resource context to the operation.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{Operation: action, Component: component, Resource: resource, Cause: cause}
}

// Wrapf prefixes err with a formatted message, or returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// DatabaseError wraps a datastore failure.
func DatabaseError(action string, cause error) error {
	return FailedToWithDetails(action, "database", "", cause)
}

// NetworkError wraps a transport failure against a named endpoint.
func NetworkError(action, endpoint string, cause error) error {
	return FailedToWithDetails(action, "network", endpoint, cause)
}

// ValidationError reports that a field failed a contract check.
func ValidationError(field, reason string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, reason)
}

// ConfigurationError reports a bad process-start setting.
func ConfigurationError(setting, reason string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, reason)
}

// TimeoutError reports a deadline crossed while waiting on something.
func TimeoutError(waitingFor, after string) error {
	return fmt.Errorf("timeout while waiting for %s after %s", waitingFor, after)
}

// ParseError reports a deserialization failure of a named format.
func ParseError(subject, format string, cause error) error {
	return FailedToWithDetails(fmt.Sprintf("parse %s as %s", subject, format), "parser", "", cause)
}

// Chain concatenates non-nil errors into one, or returns nil if none.
func Chain(errs ...error) error {
	var msgs []string
	for _, err := range errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	switch len(msgs) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s", msgs[0])
	default:
		return fmt.Errorf("multiple errors: %s", strings.Join(msgs, "; "))
	}
}

// IsRetryable is a best-effort classification of bare errors (those not
// already tagged with a Kind) used at ingestion boundaries before a typed
// Error can be constructed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "connection refused", "connection reset", "unavailable", "temporary failure", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
