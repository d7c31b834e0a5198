package viewdef

import "fmt"

// ValidationError reports a structural or semantic problem with a
// ViewDefinition document, independent of any single FHIRPath expression.
type ValidationError struct {
	Path    string // dotted location within the ViewDefinition, e.g. "select[0].column[1].name"
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func newValidationError(path, format string, args ...any) *ValidationError {
	return &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)}
}
