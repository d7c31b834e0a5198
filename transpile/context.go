// Package transpile lowers a parsed FHIRPath tree (fhirpath.Node) to a T-SQL
// fragment (sqlfrag.Fragment), contextualised by a TranspilerContext value.
package transpile

import "github.com/aehrc/sof-mssql/fhirschema"

// Context is the small immutable value threaded through lowering. Every
// "derive a new context" operation (entering an iteration, entering a
// repeat) returns a fresh Context rather than mutating the caller's; see
// spec.md §9 "Design Notes" (context propagation).
type Context struct {
	// ResourceAlias is the outer row alias, conventionally "r".
	ResourceAlias string
	// Constants maps a constant name to its pre-rendered SQL literal text.
	Constants map[string]string
	// IterationContext is a SQL JSON expression standing for "the current
	// item"; empty at top level.
	IterationContext string
	// CurrentForEachAlias, ForEachSource, ForEachPath describe the
	// innermost enclosing forEach/forEachOrNull, when any.
	CurrentForEachAlias string
	ForEachSource       string
	ForEachPath         string
	// TestID, when non-empty, is bound into WHERE clauses for tenant/test
	// isolation (see spec.md §6 base table contract).
	TestID string
	// IsArrayField overrides the default known-array-field predicate.
	IsArrayField fhirschema.IsArrayField
}

// arrayFields returns the effective known-array-field predicate.
func (c Context) arrayFields() fhirschema.IsArrayField {
	if c.IsArrayField != nil {
		return c.IsArrayField
	}
	return fhirschema.Default()
}

// WithIteration returns a derived Context whose IterationContext is iterExpr.
func (c Context) WithIteration(iterExpr string) Context {
	derived := c
	derived.IterationContext = iterExpr
	return derived
}

// WithForEach returns a derived Context entering a new forEach/forEachOrNull
// scope, with IterationContext pointed at alias.value.
func (c Context) WithForEach(alias, source, path string) Context {
	derived := c
	derived.CurrentForEachAlias = alias
	derived.ForEachSource = source
	derived.ForEachPath = path
	derived.IterationContext = alias + ".value"
	return derived
}

// ResourceSource is the JSON source expression for the resource row.
func (c Context) ResourceSource() string {
	return c.ResourceAlias + ".json"
}

// ResolveConstant looks up a `%name` constant reference.
func (c Context) ResolveConstant(name string) (string, bool) {
	v, ok := c.Constants[name]
	return v, ok
}
