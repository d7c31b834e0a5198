package fhirpath

import "fmt"

// SyntaxError reports a lexing or parsing failure. The parser never attempts
// recovery: the first diagnostic aborts the parse.
type SyntaxError struct {
	Expression string
	Pos        int
	Message    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("fhirpath syntax error at %d in %q: %s", e.Pos, e.Expression, e.Message)
}

func newSyntaxError(expr string, pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Expression: expr, Pos: pos, Message: fmt.Sprintf(format, args...)}
}
