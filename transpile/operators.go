package transpile

import (
	"fmt"

	"github.com/aehrc/sof-mssql/fhirpath"
	"github.com/aehrc/sof-mssql/fhirschema"
	"github.com/aehrc/sof-mssql/sqlfrag"
)

// lowerBinary dispatches a BinaryExpr to the operator table in spec.md §4.2.
func lowerBinary(n fhirpath.BinaryExpr, ctx Context) (sqlfrag.Fragment, error) {
	switch n.Op {
	case "+", "-", "*", "/":
		return lowerArithmetic(n, ctx, n.Op)
	case "div":
		return lowerArithmetic(n, ctx, "/")
	case "mod":
		return lowerArithmetic(n, ctx, "%")
	case "&":
		left, right, err := lowerPair(n, ctx)
		if err != nil {
			return nil, err
		}
		return sqlfrag.Raw{Text: fmt.Sprintf("CONCAT(%s, %s)", left.SQL(), right.SQL())}, nil
	case "<", "<=", ">", ">=":
		left, right, err := lowerPair(n, ctx)
		if err != nil {
			return nil, err
		}
		return sqlfrag.Predicate{Text: fmt.Sprintf("(%s %s %s)", left.SQL(), n.Op, right.SQL())}, nil
	case "=", "!=", "~", "!~":
		return lowerEquality(n, ctx)
	case "and":
		return lowerBooleanJoin(n, ctx, "AND")
	case "or", "xor":
		return lowerOrXor(n, ctx)
	case "implies":
		left, right, err := lowerPair(n, ctx)
		if err != nil {
			return nil, err
		}
		return sqlfrag.Predicate{Text: fmt.Sprintf("((NOT %s) OR %s)", asBooleanPredicate(left), asBooleanPredicate(right))}, nil
	case "in":
		return lowerMembership(n.Left, n.Right, ctx)
	case "contains":
		return lowerMembership(n.Right, n.Left, ctx)
	case "|":
		left, right, err := lowerPair(n, ctx)
		if err != nil {
			return nil, err
		}
		return sqlfrag.Raw{Text: fmt.Sprintf("COALESCE(%s, %s)", left.SQL(), right.SQL())}, nil
	default:
		return nil, wrapf("", "unsupported operator %q", n.Op)
	}
}

func lowerPair(n fhirpath.BinaryExpr, ctx Context) (sqlfrag.Fragment, sqlfrag.Fragment, error) {
	left, err := Lower(n.Left, ctx)
	if err != nil {
		return nil, nil, err
	}
	right, err := Lower(n.Right, ctx)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func lowerArithmetic(n fhirpath.BinaryExpr, ctx Context, sqlOp string) (sqlfrag.Fragment, error) {
	left, right, err := lowerPair(n, ctx)
	if err != nil {
		return nil, err
	}
	return sqlfrag.Raw{Text: fmt.Sprintf("(%s %s %s)", left.SQL(), sqlOp, right.SQL())}, nil
}

// lowerEquality implements "=", "!=", and their equivalence spellings "~"/
// "!~" (treated identically; this repo does not distinguish FHIRPath value
// equivalence from equality). When either operand is a literal boolean, the
// other side is CAST to BIT so a JSON string 'true'/'false' compares
// correctly against the literal 1/0 — unless that other side is one of the
// known scalar boolean fields (active, deceased, multipleBirth), in which
// case spec.md §4.8/§8 S5 calls for a CASE-WHEN comparison instead of a CAST.
func lowerEquality(n fhirpath.BinaryExpr, ctx Context) (sqlfrag.Fragment, error) {
	left, right, err := lowerPair(n, ctx)
	if err != nil {
		return nil, err
	}
	sqlOp := "="
	if n.Op == "!=" || n.Op == "!~" {
		sqlOp = "!="
	}
	if text, ok := booleanFieldCaseWhen(n, left, right, sqlOp); ok {
		return sqlfrag.Predicate{Text: text}, nil
	}
	leftSQL, rightSQL := left.SQL(), right.SQL()
	if isBoolLiteral(n.Right) {
		leftSQL = fmt.Sprintf("CAST(%s AS BIT)", leftSQL)
	} else if isBoolLiteral(n.Left) {
		rightSQL = fmt.Sprintf("CAST(%s AS BIT)", rightSQL)
	}
	return sqlfrag.Predicate{Text: fmt.Sprintf("(%s %s %s)", leftSQL, sqlOp, rightSQL)}, nil
}

// booleanFieldCaseWhen implements the S5 seed scenario: `active = true`
// lowers to `(CASE WHEN JSON_VALUE(r.json,'$.active')='true' THEN 1 ELSE 0
// END = 1)` rather than a CAST ... AS BIT comparison, for the three fields
// narrow enough in type to carry this rendering.
func booleanFieldCaseWhen(n fhirpath.BinaryExpr, left, right sqlfrag.Fragment, sqlOp string) (string, bool) {
	var field sqlfrag.JSONValue
	var literalTrue bool
	switch {
	case isBoolLiteral(n.Right):
		v, ok := left.(sqlfrag.JSONValue)
		if !ok || !fhirschema.IsBooleanScalarField(v.Path) {
			return "", false
		}
		field, literalTrue = v, n.Right.(fhirpath.BoolLiteral).Value
	case isBoolLiteral(n.Left):
		v, ok := right.(sqlfrag.JSONValue)
		if !ok || !fhirschema.IsBooleanScalarField(v.Path) {
			return "", false
		}
		field, literalTrue = v, n.Left.(fhirpath.BoolLiteral).Value
	default:
		return "", false
	}
	literalAsInt := 0
	if literalTrue {
		literalAsInt = 1
	}
	return fmt.Sprintf("(CASE WHEN JSON_VALUE(%s,'%s')='true' THEN 1 ELSE 0 END %s %d)",
		field.Src, field.Path, sqlOp, literalAsInt), true
}

func isBoolLiteral(n fhirpath.Node) bool {
	_, ok := n.(fhirpath.BoolLiteral)
	return ok
}

func lowerBooleanJoin(n fhirpath.BinaryExpr, ctx Context, sqlOp string) (sqlfrag.Fragment, error) {
	left, right, err := lowerPair(n, ctx)
	if err != nil {
		return nil, err
	}
	return sqlfrag.Predicate{Text: fmt.Sprintf("(%s %s %s)", asBooleanPredicate(left), sqlOp, asBooleanPredicate(right))}, nil
}

func lowerOrXor(n fhirpath.BinaryExpr, ctx Context) (sqlfrag.Fragment, error) {
	left, right, err := lowerPair(n, ctx)
	if err != nil {
		return nil, err
	}
	l, r := asBooleanPredicate(left), asBooleanPredicate(right)
	if n.Op == "or" {
		return sqlfrag.Predicate{Text: fmt.Sprintf("(%s OR %s)", l, r)}, nil
	}
	return sqlfrag.Predicate{Text: fmt.Sprintf("((%s AND NOT %s) OR (NOT %s AND %s))", l, r, l, r)}, nil
}

// lowerMembership implements `needle in haystack` (and `haystack contains
// needle`, which is the same check with operands swapped at the call site).
func lowerMembership(needle, haystack fhirpath.Node, ctx Context) (sqlfrag.Fragment, error) {
	needleFrag, err := Lower(needle, ctx)
	if err != nil {
		return nil, err
	}
	haystackFrag, err := Lower(haystack, ctx)
	if err != nil {
		return nil, err
	}
	src, path, hasPath, ok := openJSONSource(haystackFrag)
	if !ok {
		return nil, wrapf("", "right-hand side of 'in'/'contains' must be a collection-shaped path")
	}
	openJSON := "OPENJSON(" + src + ")"
	if hasPath {
		openJSON = fmt.Sprintf("OPENJSON(%s, '%s')", src, path)
	}
	return sqlfrag.Predicate{Text: fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE value = %s)", openJSON, needleFrag.SQL())}, nil
}

// asBooleanPredicate coerces any fragment into boolean-predicate SQL text,
// treating JSON string 'true'/'false' scalars as booleans.
func asBooleanPredicate(f sqlfrag.Fragment) string {
	return AsBooleanPredicate(f)
}

// AsBooleanPredicate coerces any fragment into boolean-predicate SQL text,
// treating JSON string 'true'/'false' scalars as booleans. Exported for the
// emit package's WHERE clause and boolean-column rendering, which need the
// exact same coercion transpile.Lower applies internally to and/or/not.
func AsBooleanPredicate(f sqlfrag.Fragment) string {
	if p, ok := f.(sqlfrag.Predicate); ok {
		return p.Text
	}
	sql := f.SQL()
	return fmt.Sprintf("(%s = 'true')", sql)
}

// openJSONSource extracts the (src, path) pair needed to build an
// OPENJSON(src[, 'path']) call from a fragment that denotes a collection.
func openJSONSource(f sqlfrag.Fragment) (src, path string, hasPath, ok bool) {
	switch v := f.(type) {
	case sqlfrag.JSONValue:
		return v.Src, v.Path, true, true
	case sqlfrag.JSONQuery:
		return v.Src, v.Path, true, true
	case sqlfrag.Raw:
		return v.Text, "", false, true
	default:
		return "", "", false, false
	}
}
