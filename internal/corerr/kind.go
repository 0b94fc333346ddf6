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

package corerr

import "errors"

// Kind is the closed error taxonomy every layer of the substrate tags its
// errors with, so callers can switch on kind instead of parsing messages.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindUnavailable   Kind = "unavailable"
	KindTransient     Kind = "transient"
	KindPermanent     Kind = "permanent"
	KindDataIntegrity Kind = "data_integrity"
	KindCancelled     Kind = "cancelled"
)

// Error is a Kind-tagged error. Validation and Unavailable never mutate a
// circuit breaker; Transient and Permanent count as breaker failures;
// DataIntegrity is surfaced non-recoverable for the offending item only;
// Cancelled carries no retry semantics at all.
type Error struct {
	Kind      Kind
	Operation string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind) + ": " + e.Operation
	}
	return string(e.Kind) + ": " + e.Operation + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// Recoverable reports whether the caller may reasonably retry the operation
// (possibly against a different instance, or later).
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindUnavailable, KindTransient:
		return true
	default:
		return false
	}
}

func New(kind Kind, operation string, cause error) *Error {
	return &Error{Kind: kind, Operation: operation, Cause: cause}
}

func Validation(operation string, cause error) *Error { return New(KindValidation, operation, cause) }
func Unavailable(operation string) *Error              { return New(KindUnavailable, operation, nil) }
func Transient(operation string, cause error) *Error   { return New(KindTransient, operation, cause) }
func Permanent(operation string, cause error) *Error   { return New(KindPermanent, operation, cause) }
func DataIntegrity(operation string, cause error) *Error {
	return New(KindDataIntegrity, operation, cause)
}
func Cancelled(operation string) *Error { return New(KindCancelled, operation, nil) }

// KindOf extracts the Kind of err, defaulting to KindPermanent for errors
// that never went through this package (fail closed, not open).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPermanent
}

// IsRecoverable reports the recoverable flag for any error, typed or bare.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable()
	}
	return false
}
