// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable machine-readable error classification surfaced by
// kernel operations.
type ErrorCode string

const (
	// CodeInvalidArgument covers unknown IDs, malformed enums and
	// out-of-range parameters. Reported, not retried.
	CodeInvalidArgument ErrorCode = "invalid_argument"

	// CodeNotFound covers lookups of entities that do not exist
	// (organization, communication, topic).
	CodeNotFound ErrorCode = "not_found"

	// CodeConflict covers start-while-running and stop-while-stopped.
	CodeConflict ErrorCode = "conflict"

	// CodeOverloaded is returned when the delivery queue stays saturated
	// for the whole request deadline. Callers may retry.
	CodeOverloaded ErrorCode = "overloaded"

	// CodeBackendUnavailable indicates generator-backend failure. It is
	// recovered internally by falling back to the rule-based path and is
	// never raised to callers; it appears only in events.
	CodeBackendUnavailable ErrorCode = "backend_unavailable"

	// CodeInternal indicates an invariant violation. The kernel logs an
	// event, isolates the offending task, and continues.
	CodeInternal ErrorCode = "internal"
)

// Error is the typed error value returned by kernel operations.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

// Errorf builds a typed error with a formatted message.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps a cause with a typed code and message.
func WrapError(code ErrorCode, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on error code so sentinel comparisons like
// errors.Is(err, &Error{Code: CodeOverloaded}) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the error code from err, unwrapping as needed.
// Returns CodeInternal for untyped errors and "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
