package transpile

import (
	"fmt"
	"strings"

	"github.com/aehrc/sof-mssql/fhirpath"
	"github.com/aehrc/sof-mssql/sqlfrag"
)

// Lower converts a parsed FHIRPath node into a T-SQL fragment under ctx. It
// implements the lowering rules in spec.md §4.2; every case below corresponds
// to one rule there.
func Lower(node fhirpath.Node, ctx Context) (sqlfrag.Fragment, error) {
	switch n := node.(type) {

	case fhirpath.Identifier:
		return lowerIdentifier(n, ctx)

	case fhirpath.ThisInvocation:
		return sqlfrag.Raw{Text: thisSource(ctx)}, nil

	case fhirpath.IndexInvocation:
		if ctx.CurrentForEachAlias == "" {
			return nil, wrapf("$index", "%s", "$index used outside forEach/forEachOrNull")
		}
		return sqlfrag.Raw{Text: fmt.Sprintf("CAST(%s.[key] AS INT)", ctx.CurrentForEachAlias)}, nil

	case fhirpath.TotalInvocation:
		return nil, wrapf("$total", "%s", "$total is only valid inside aggregate(), which is unsupported")

	case fhirpath.EnvVariable:
		v, ok := ctx.ResolveConstant(n.Name)
		if !ok {
			return nil, wrapf("%"+n.Name, "undefined constant %q", n.Name)
		}
		return sqlfrag.Raw{Text: v}, nil

	case fhirpath.BoolLiteral:
		if n.Value {
			return sqlfrag.Raw{Text: "1"}, nil
		}
		return sqlfrag.Raw{Text: "0"}, nil

	case fhirpath.NullLiteral:
		return sqlfrag.Raw{Text: "NULL"}, nil

	case fhirpath.StringLiteral:
		return sqlfrag.Raw{Text: sqlfrag.QuoteStringLiteral(n.Value)}, nil

	case fhirpath.NumberLiteral:
		return sqlfrag.Raw{Text: n.Text}, nil

	case fhirpath.LongNumberLiteral:
		return sqlfrag.Raw{Text: strings.TrimSuffix(n.Text, "L")}, nil

	case fhirpath.DateLiteral:
		return sqlfrag.Raw{Text: sqlfrag.QuoteStringLiteral(strings.TrimPrefix(n.Text, "@"))}, nil

	case fhirpath.DateTimeLiteral:
		return sqlfrag.Raw{Text: sqlfrag.QuoteStringLiteral(strings.TrimPrefix(n.Text, "@"))}, nil

	case fhirpath.TimeLiteral:
		return sqlfrag.Raw{Text: sqlfrag.QuoteStringLiteral(strings.TrimPrefix(n.Text, "@T"))}, nil

	case fhirpath.UnaryExpr:
		return lowerUnary(n, ctx)

	case fhirpath.BinaryExpr:
		return lowerBinary(n, ctx)

	case fhirpath.TypeExpr:
		return lowerTypeExpr(n, ctx)

	case fhirpath.Invocation:
		return lowerInvocation(n, ctx)

	case fhirpath.IndexerExpr:
		return lowerIndexer(n, ctx)

	case fhirpath.FunctionInvocation:
		// A function call with no explicit base applies to the implicit $this.
		base := sqlfrag.Raw{Text: thisSource(ctx)}
		return lowerFunctionCall(base, n.Name, n.Args, ctx)

	default:
		return nil, wrapf("", "unhandled FHIRPath node type %T", node)
	}
}

// thisSource is the JSON expression $this currently stands for.
func thisSource(ctx Context) string {
	if ctx.IterationContext != "" {
		return ctx.IterationContext
	}
	return ctx.ResourceSource()
}

// lowerIdentifier implements plain member access, equivalent to an implicit
// Invocation{Base: ThisInvocation, Member: n}, with the "id" special case.
func lowerIdentifier(n fhirpath.Identifier, ctx Context) (sqlfrag.Fragment, error) {
	if n.Name == "id" && ctx.IterationContext == "" {
		return sqlfrag.Raw{Text: ctx.ResourceAlias + ".id"}, nil
	}
	return sqlfrag.JSONValue{Src: thisSource(ctx), Path: "$." + n.Name}, nil
}

// lowerInvocation handles Base.Member for every Member shape.
func lowerInvocation(n fhirpath.Invocation, ctx Context) (sqlfrag.Fragment, error) {
	base, err := Lower(n.Base, ctx)
	if err != nil {
		return nil, err
	}

	switch m := n.Member.(type) {
	case fhirpath.Identifier:
		return extendMember(base, m.Name, ctx)
	case fhirpath.FunctionInvocation:
		return lowerFunctionCall(base, m.Name, m.Args, ctx)
	case fhirpath.ThisInvocation:
		return base, nil
	default:
		return nil, wrapf("", "unsupported member %T after invocation", n.Member)
	}
}

// extendMember appends a `.name` segment to base, applying the implicit
// first-element injection rule: the first time a path grows from one segment
// to two, if that first segment names a known FHIR array field and no index
// has been applied yet, a `[0]` is inserted after it. This implements reading
// an array-typed FHIRPath member outside any iteration as "the first item".
func extendMember(base sqlfrag.Fragment, name string, ctx Context) (sqlfrag.Fragment, error) {
	if path, ok := sqlfrag.Path(base); ok {
		if needsFirstElementIndex(path, ctx) {
			if indexed, ok := sqlfrag.ExtendIndex(base, "0"); ok {
				base = indexed
			}
		}
		extended, _ := sqlfrag.Extend(base, name)
		return extended, nil
	}
	if raw, ok := base.(sqlfrag.Raw); ok {
		// Fresh source (e.g. $this, or a function result that opened a new
		// document): the first segment of a brand new path.
		return sqlfrag.JSONValue{Src: raw.Text, Path: "$." + name}, nil
	}
	return nil, wrapf(name, "cannot access member %q of a predicate-shaped expression", name)
}

// needsFirstElementIndex reports whether path is exactly one segment deep
// (e.g. "$.name") and names a known FHIR array field, meaning the next
// member appended to it should land inside its first element rather than on
// the array itself.
func needsFirstElementIndex(path string, ctx Context) bool {
	if strings.Count(path, ".") != 1 || strings.Contains(path, "[") {
		return false
	}
	first := strings.TrimPrefix(path, "$.")
	return ctx.arrayFields()(first)
}

// lowerIndexer handles Base[Index].
func lowerIndexer(n fhirpath.IndexerExpr, ctx Context) (sqlfrag.Fragment, error) {
	base, err := Lower(n.Base, ctx)
	if err != nil {
		return nil, err
	}
	indexText, err := lowerIndexLiteral(n.Index, ctx)
	if err != nil {
		return nil, err
	}
	if raw, ok := base.(sqlfrag.Raw); ok {
		return sqlfrag.JSONValue{Src: raw.Text, Path: "$[" + indexText + "]"}, nil
	}
	indexed, ok := sqlfrag.ExtendIndex(base, indexText)
	if !ok {
		return nil, wrapf("", "cannot index a predicate-shaped expression")
	}
	return indexed, nil
}

// lowerIndexLiteral renders an indexer's index expression as bare SQL text
// suitable for splicing into a JSON path (`$.foo[<here>]`). Only integer
// literals are supported; anything else is rejected as unsupported, since a
// dynamic index cannot be expressed as static JSON path text.
func lowerIndexLiteral(n fhirpath.Node, ctx Context) (string, error) {
	switch v := n.(type) {
	case fhirpath.NumberLiteral:
		return v.Text, nil
	case fhirpath.LongNumberLiteral:
		return strings.TrimSuffix(v.Text, "L"), nil
	default:
		return "", wrapf("", "only integer literal indices are supported")
	}
}

func lowerUnary(n fhirpath.UnaryExpr, ctx Context) (sqlfrag.Fragment, error) {
	operand, err := Lower(n.Operand, ctx)
	if err != nil {
		return nil, err
	}
	if n.Op == "+" {
		return operand, nil
	}
	return sqlfrag.Raw{Text: "(-" + operand.SQL() + ")"}, nil
}

func lowerTypeExpr(n fhirpath.TypeExpr, ctx Context) (sqlfrag.Fragment, error) {
	expr, err := Lower(n.Expr, ctx)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "is":
		return sqlfrag.Predicate{Text: "(" + expr.SQL() + " IS NOT NULL)"}, nil
	case "as":
		// No runtime type system: "as" is a compile-time assertion only.
		return expr, nil
	default:
		return nil, wrapf("", "unknown type operator %q", n.Op)
	}
}
