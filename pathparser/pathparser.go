// Package pathparser decodes a forEach/forEachOrNull/repeat path string into
// an ordered list of Steps describing the nested CROSS/OUTER APPLY chain the
// planner must build. A path is itself a FHIRPath expression, so this
// package reuses fhirpath.Parse instead of re-lexing path text, per spec.md
// §9's note that regex-based "stringy AST" rewriting should be replaced with
// structural decomposition.
package pathparser

import (
	"strings"

	"github.com/aehrc/sof-mssql/fhirpath"
	"github.com/aehrc/sof-mssql/fhirschema"
)

// Step is one level of array iteration: a field to open with OPENJSON,
// optionally narrowed by an explicit index or filtered by a where()
// predicate, plus any trailing non-array member access folded into the same
// JSON path (PathSuffix).
type Step struct {
	// Field is the array-valued field this step opens, relative to the
	// previous step's item (or the resource root, for the first step).
	Field string
	// PathSuffix is additional dotted path text joined onto Field to form
	// this step's full OPENJSON path argument: any run of member names
	// following Field that does not itself name a known array field folds
	// in here rather than starting a new step (spec.md §4.4 rule 3 only
	// splits on *consecutive* known array segments).
	PathSuffix string
	// Index, if non-empty, narrows this step to a single literal element
	// instead of iterating every element.
	Index string
	// Where, if non-nil, is a predicate every iterated element of this step
	// must satisfy.
	Where fhirpath.Node
	// AlwaysFalse is set when Where is the literal `false`, the documented
	// short-circuit idiom for "this branch never matches any row".
	AlwaysFalse bool
}

// Decode parses path and returns its step sequence.
func Decode(path string, arrayFields fhirschema.IsArrayField) ([]Step, error) {
	if arrayFields == nil {
		arrayFields = fhirschema.Default()
	}
	node, err := fhirpath.Parse(path)
	if err != nil {
		return nil, &PathError{Path: path, Cause: err}
	}

	ops := flattenChain(node)
	if len(ops) == 0 {
		return nil, &PathError{Path: path, Cause: errString("empty path")}
	}

	var steps []Step
	for i, op := range ops {
		switch v := op.(type) {
		case identOp:
			if len(steps) == 0 || arrayFields(v.name) {
				steps = append(steps, Step{Field: v.name})
				continue
			}
			last := &steps[len(steps)-1]
			last.PathSuffix = joinSuffix(last.PathSuffix, v.name)
		case indexOp:
			if len(steps) == 0 {
				return nil, &PathError{Path: path, Cause: errString("index with no preceding field")}
			}
			if i == len(ops)-1 && len(steps) > 1 {
				// A trailing index on a multi-step path applies to every
				// known-array step: contact.telecom[0] filters like
				// contact[0].telecom[0].
				for j := range steps {
					if arrayFields(steps[j].Field) {
						steps[j].Index = v.text
					}
				}
				continue
			}
			steps[len(steps)-1].Index = v.text
		case whereOp:
			if len(steps) == 0 {
				return nil, &PathError{Path: path, Cause: errString("where() with no preceding field")}
			}
			last := &steps[len(steps)-1]
			last.Where = v.cond
			if b, ok := v.cond.(fhirpath.BoolLiteral); ok && !b.Value {
				last.AlwaysFalse = true
			}
		case funcOp:
			return nil, &UnsupportedPathFunction{Name: v.name, Path: path}
		}
	}
	return steps, nil
}

func joinSuffix(existing, segment string) string {
	if existing == "" {
		return segment
	}
	return existing + "." + segment
}

type identOp struct{ name string }
type indexOp struct{ text string }
type whereOp struct{ cond fhirpath.Node }
type funcOp struct{ name string }

// flattenChain linearises the left-leaning Invocation/IndexerExpr tree
// fhirpath.Parse produces for a dotted path into an ordered op list.
func flattenChain(n fhirpath.Node) []any {
	switch v := n.(type) {
	case fhirpath.Invocation:
		ops := flattenChain(v.Base)
		return append(ops, memberOp(v.Member)...)
	case fhirpath.IndexerExpr:
		ops := flattenChain(v.Base)
		if lit, ok := indexLiteral(v.Index); ok {
			ops = append(ops, indexOp{text: lit})
		}
		return ops
	case fhirpath.Identifier:
		return []any{identOp{name: v.Name}}
	case fhirpath.FunctionInvocation:
		return memberOp(v)
	default:
		return nil
	}
}

func memberOp(n fhirpath.Node) []any {
	switch v := n.(type) {
	case fhirpath.Identifier:
		return []any{identOp{name: v.Name}}
	case fhirpath.FunctionInvocation:
		if v.Name == "where" && len(v.Args) == 1 {
			return []any{whereOp{cond: v.Args[0]}}
		}
		return []any{funcOp{name: v.Name}}
	default:
		return nil
	}
}

func indexLiteral(n fhirpath.Node) (string, bool) {
	switch v := n.(type) {
	case fhirpath.NumberLiteral:
		return v.Text, true
	case fhirpath.LongNumberLiteral:
		return strings.TrimSuffix(v.Text, "L"), true
	default:
		return "", false
	}
}

type errString string

func (e errString) Error() string { return string(e) }
