package transpile

import (
	"fmt"
	"strings"

	"github.com/aehrc/sof-mssql/fhirpath"
	"github.com/aehrc/sof-mssql/sqlfrag"
)

// supportedFunctions is the documented function table (spec.md §4.2). Any
// call outside this set is an UnsupportedFunction error, never a silent
// pass-through.
var supportedFunctions = map[string]bool{
	"exists": true, "empty": true, "first": true, "last": true, "count": true,
	"join": true, "where": true, "select": true, "not": true, "ofType": true,
	"extension": true, "getResourceKey": true, "getReferenceKey": true,
	"lowBoundary": true, "highBoundary": true,
}

func lowerFunctionCall(base sqlfrag.Fragment, name string, args []fhirpath.Node, ctx Context) (sqlfrag.Fragment, error) {
	if !supportedFunctions[name] {
		return nil, &UnsupportedFunction{Name: name, Path: name + "()"}
	}

	switch name {
	case "exists":
		return lowerExists(base, args, ctx, false)
	case "empty":
		return lowerExists(base, args, ctx, true)
	case "first":
		return lowerFirst(base)
	case "last":
		return lowerLast(base)
	case "count":
		return lowerCount(base)
	case "join":
		return lowerJoin(base, args, ctx)
	case "where":
		return lowerWhere(base, args, ctx)
	case "select":
		return lowerSelect(base, args, ctx)
	case "not":
		return sqlfrag.Predicate{Text: fmt.Sprintf("NOT (%s)", asBooleanPredicate(base))}, nil
	case "ofType":
		return base, nil
	case "extension":
		return extendMember(base, "extension", ctx)
	case "getResourceKey":
		return sqlfrag.Raw{Text: ctx.ResourceAlias + ".id"}, nil
	case "getReferenceKey":
		return lowerGetReferenceKey(base, ctx)
	case "lowBoundary", "highBoundary":
		return base, nil
	default:
		return nil, &UnsupportedFunction{Name: name, Path: name + "()"}
	}
}

func lowerExists(base sqlfrag.Fragment, args []fhirpath.Node, ctx Context, negate bool) (sqlfrag.Fragment, error) {
	var inner string
	switch {
	case len(args) == 1:
		src, path, hasPath, ok := openJSONSource(base)
		if !ok {
			return nil, wrapf("", "exists()/empty() with a predicate requires a collection-shaped base")
		}
		openJSON := openJSONCall(src, path, hasPath)
		predFrag, err := Lower(args[0], ctx.WithIteration("item.value"))
		if err != nil {
			return nil, err
		}
		inner = fmt.Sprintf("EXISTS (SELECT 1 FROM %s AS item WHERE %s)", openJSON, asBooleanPredicate(predFrag))
	case len(args) > 1:
		return nil, wrapf("", "exists()/empty() takes at most one argument")
	default:
		src, path, hasPath, ok := openJSONSource(base)
		if !ok {
			return nil, wrapf("", "exists()/empty() requires a path-shaped base")
		}
		if v, isValue := base.(sqlfrag.JSONValue); isValue && !isArrayPath(v.Path, ctx) {
			inner = fmt.Sprintf("(%s IS NOT NULL)", v.SQL())
		} else {
			inner = fmt.Sprintf("EXISTS (SELECT 1 FROM %s)", openJSONCall(src, path, hasPath))
		}
	}
	if negate {
		return sqlfrag.Predicate{Text: "(NOT " + inner + ")"}, nil
	}
	return sqlfrag.Predicate{Text: inner}, nil
}

func lowerFirst(base sqlfrag.Fragment) (sqlfrag.Fragment, error) {
	if raw, ok := base.(sqlfrag.Raw); ok {
		return sqlfrag.JSONValue{Src: raw.Text, Path: "$[0]"}, nil
	}
	indexed, ok := sqlfrag.ExtendIndex(base, "0")
	if !ok {
		return nil, wrapf("", "first() requires a path-shaped base")
	}
	return indexed, nil
}

func lowerLast(base sqlfrag.Fragment) (sqlfrag.Fragment, error) {
	src, path, hasPath, ok := openJSONSource(base)
	if !ok {
		return nil, wrapf("", "last() requires a path-shaped base")
	}
	openJSON := openJSONCall(src, path, hasPath)
	return sqlfrag.Raw{Text: fmt.Sprintf(
		"(SELECT TOP 1 value FROM %s ORDER BY CAST([key] AS INT) DESC)", openJSON)}, nil
}

func lowerCount(base sqlfrag.Fragment) (sqlfrag.Fragment, error) {
	src, path, hasPath, ok := openJSONSource(base)
	if !ok {
		return nil, wrapf("", "count() requires a path-shaped base")
	}
	return sqlfrag.Raw{Text: fmt.Sprintf("(SELECT COUNT(*) FROM %s)", openJSONCall(src, path, hasPath))}, nil
}

func lowerJoin(base sqlfrag.Fragment, args []fhirpath.Node, ctx Context) (sqlfrag.Fragment, error) {
	src, path, hasPath, ok := openJSONSource(base)
	if !ok {
		return nil, wrapf("", "join() requires a path-shaped base")
	}
	sep := "''"
	if len(args) == 1 {
		sepFrag, err := Lower(args[0], ctx)
		if err != nil {
			return nil, err
		}
		sep = sepFrag.SQL()
	} else if len(args) > 1 {
		return nil, wrapf("", "join() takes at most one argument")
	}
	openJSON := openJSONCall(src, path, hasPath)
	return sqlfrag.Raw{Text: fmt.Sprintf(
		"(SELECT STRING_AGG(value, %s) WITHIN GROUP (ORDER BY CAST([key] AS INT)) FROM %s)", sep, openJSON)}, nil
}

// lowerWhere filters a collection down to its first matching element,
// yielding a fresh JSON source further member access can chain onto. This is
// the "where inside chained invocation" rule of spec.md §4.2: a correlated
// TOP-1 subquery, rather than a real per-element map, since the column
// emitter only ever needs one value per resource row at this position in the
// expression (array iteration belongs to forEach/repeat, not mid-expression
// where()).
func lowerWhere(base sqlfrag.Fragment, args []fhirpath.Node, ctx Context) (sqlfrag.Fragment, error) {
	if len(args) != 1 {
		return nil, wrapf("", "where() takes exactly one argument")
	}
	src, path, hasPath, ok := openJSONSource(base)
	if !ok {
		return nil, wrapf("", "where() requires a collection-shaped base")
	}
	openJSON := openJSONCall(src, path, hasPath)
	predFrag, err := Lower(args[0], ctx.WithIteration("item.value"))
	if err != nil {
		return nil, err
	}
	subquery := fmt.Sprintf("(SELECT TOP 1 value FROM %s AS item WHERE %s)", openJSON, asBooleanPredicate(predFrag))
	return sqlfrag.Raw{Text: subquery}, nil
}

// lowerSelect is an identity map: it lowers its argument under an iteration
// context derived from base, rather than building a real per-row projection
// (spec.md §4.2 documents select() as "identity on argument").
func lowerSelect(base sqlfrag.Fragment, args []fhirpath.Node, ctx Context) (sqlfrag.Fragment, error) {
	if len(args) != 1 {
		return nil, wrapf("", "select() takes exactly one argument")
	}
	src, path, hasPath, ok := openJSONSource(base)
	if !ok {
		return nil, wrapf("", "select() requires a collection-shaped base")
	}
	openJSON := openJSONCall(src, path, hasPath)
	derived := fmt.Sprintf("(SELECT TOP 1 value FROM %s)", openJSON)
	return Lower(args[0], ctx.WithIteration(derived))
}

func lowerGetReferenceKey(base sqlfrag.Fragment, ctx Context) (sqlfrag.Fragment, error) {
	refField, err := extendMember(base, "reference", ctx)
	if err != nil {
		return nil, err
	}
	refSQL := refField.SQL()
	return sqlfrag.Raw{Text: fmt.Sprintf(
		"RIGHT(%s, CHARINDEX('/', REVERSE(%s)) - 1)", refSQL, refSQL)}, nil
}

// isArrayPath reports whether a JSON path's final segment names a known
// array field with no explicit index narrowing it already, i.e. whether the
// path still denotes a collection rather than a single resolved element.
func isArrayPath(path string, ctx Context) bool {
	segs := strings.Split(strings.TrimPrefix(path, "$."), ".")
	last := segs[len(segs)-1]
	if strings.Contains(last, "[") {
		return false
	}
	return ctx.arrayFields()(last)
}

func openJSONCall(src, path string, hasPath bool) string {
	if hasPath {
		return fmt.Sprintf("OPENJSON(%s, '%s')", src, path)
	}
	return fmt.Sprintf("OPENJSON(%s)", src)
}
