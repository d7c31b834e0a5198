// Package compilerr holds the one error type shared across planner, emit,
// and compiler for conditions that should never arise from well-formed,
// already-validated input: a programming invariant violation rather than a
// user-facing diagnostic (spec.md §7).
package compilerr

import "fmt"

// InternalError reports a broken invariant: something the validator or
// planner should have already ruled out. Never constructed in response to
// user input; a caller seeing one has found a bug in this repo.
type InternalError struct {
	Where   string
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %s", e.Where, e.Message)
}

// Newf constructs an InternalError with a formatted message.
func Newf(where, format string, args ...any) error {
	return &InternalError{Where: where, Message: fmt.Sprintf(format, args...)}
}
