package emit

import (
	"strings"

	"github.com/aehrc/sof-mssql/fhirpath"
	"github.com/aehrc/sof-mssql/sqlfrag"
	"github.com/aehrc/sof-mssql/transpile"
	"github.com/aehrc/sof-mssql/viewdef"
)

// WhereClause builds the SQL text following WHERE for a query: the mandatory
// resource_type filter, the ViewDefinition's top-level `where` predicates,
// any row-scoped `where` predicates attached to the plan node chain (via
// nodeWheres), and an optional test_id equality filter. When parameterized is
// true, resource_type and test_id are bound as `@resourceType`/`@testId`
// instead of inlined as literals (spec.md §4.8 offers both surface forms).
func WhereClause(resourceType string, vdWhere []viewdef.Where, nodeWheres [][]viewdef.Where, ctx transpile.Context, testID string, parameterized bool) (string, error) {
	clauses := []string{"r.resource_type = " + resourceTypeLiteral(resourceType, parameterized)}

	for _, w := range vdWhere {
		clause, err := lowerWherePredicate(w.Path, ctx)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	for _, wheres := range nodeWheres {
		for _, w := range wheres {
			clause, err := lowerWherePredicate(w.Path, ctx)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, clause)
		}
	}
	if testID != "" {
		clauses = append(clauses, "r.test_id = "+testIDLiteral(testID, parameterized))
	}
	return strings.Join(clauses, "\n  AND "), nil
}

func resourceTypeLiteral(resourceType string, parameterized bool) string {
	if parameterized {
		return "@resourceType"
	}
	return sqlfrag.QuoteStringLiteral(resourceType)
}

func testIDLiteral(testID string, parameterized bool) string {
	if parameterized {
		return "@testId"
	}
	return sqlfrag.QuoteStringLiteral(testID)
}

func lowerWherePredicate(path string, ctx transpile.Context) (string, error) {
	node, err := fhirpath.Parse(path)
	if err != nil {
		return "", &transpile.TranspileError{Path: path, Cause: err}
	}
	frag, err := transpile.Lower(node, ctx)
	if err != nil {
		return "", err
	}
	return transpile.AsBooleanPredicate(frag), nil
}
