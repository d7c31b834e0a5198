package emit

import (
	"fmt"

	"github.com/aehrc/sof-mssql/fhirpath"
	"github.com/aehrc/sof-mssql/sqlfrag"
	"github.com/aehrc/sof-mssql/transpile"
	"github.com/aehrc/sof-mssql/viewdef"
)

// ColumnSQL compiles one ViewDefinition column to a `<expr> AS [name]` SELECT
// item under ctx.
func ColumnSQL(c viewdef.Column, ctx transpile.Context) (string, error) {
	if c.CollectionMode() == viewdef.CollectionTrue {
		if valueSQL, ok := stringAggFamilyOrGiven(c.Path, ctx); ok {
			return fmt.Sprintf("%s AS %s", valueSQL, QuoteIdent(c.Name)), nil
		}
	}

	node, err := fhirpath.Parse(c.Path)
	if err != nil {
		return "", &transpile.TranspileError{Path: c.Path, Cause: err}
	}
	frag, err := transpile.Lower(node, ctx)
	if err != nil {
		return "", err
	}

	var valueSQL string
	if c.CollectionMode() == viewdef.CollectionTrue {
		valueSQL = collectionSQL(frag)
	} else if raw, ok := frag.(sqlfrag.Raw); ok && raw.Text == ctx.ResourceAlias+".id" {
		// The resource's own id is a table column, not JSON text, and is
		// emitted as-is whatever the declared type.
		valueSQL = raw.Text
	} else {
		valueSQL = scalarSQL(frag, SQLType(c))
	}
	return fmt.Sprintf("%s AS %s", valueSQL, QuoteIdent(c.Name)), nil
}

// stringAggFamilyOrGiven implements spec.md §4.8's special case for the two
// collection paths common enough in HumanName to warrant a flattened,
// comma-joined scalar instead of the generic JSON_QUERY array fallback:
// name.family and name.given. Any other collection path falls through to
// collectionSQL.
func stringAggFamilyOrGiven(path string, ctx transpile.Context) (string, bool) {
	src := ctx.IterationContext
	if src == "" {
		src = ctx.ResourceSource()
	}
	switch path {
	case "name.family":
		return fmt.Sprintf(
			"(SELECT STRING_AGG(JSON_VALUE(sa_name.value, '$.family'), ',') WITHIN GROUP (ORDER BY sa_name.[key]) FROM OPENJSON(%s, '$.name') AS sa_name)",
			src), true
	case "name.given":
		return fmt.Sprintf(
			"(SELECT STRING_AGG(sa_given.value, ',') WITHIN GROUP (ORDER BY sa_name.[key], sa_given.[key]) FROM OPENJSON(%s, '$.name') AS sa_name CROSS APPLY OPENJSON(sa_name.value, '$.given') AS sa_given)",
			src), true
	default:
		return "", false
	}
}

// scalarSQL renders a fragment as a single scalar value, CAST to sqlType.
// Predicate fragments (the result of a boolean-shaped path such as
// `active.exists()`) become a CASE expression instead of a bare CAST, since
// there is no scalar text to cast.
func scalarSQL(frag sqlfrag.Fragment, sqlType string) string {
	if p, ok := frag.(sqlfrag.Predicate); ok {
		if sqlType == "BIT" {
			return fmt.Sprintf("(CASE WHEN %s THEN 1 ELSE 0 END)", p.Text)
		}
		return fmt.Sprintf("(CASE WHEN %s THEN 'true' ELSE 'false' END)", p.Text)
	}
	sql := frag.SQL()
	if sql == "NULL" || sqlType == "" || sqlType == "NVARCHAR(MAX)" {
		return sql
	}
	return fmt.Sprintf("CAST(%s AS %s)", sql, sqlType)
}

// collectionSQL renders a fragment as the raw JSON text of its collection,
// for a column declared `"collection": true`.
func collectionSQL(frag sqlfrag.Fragment) string {
	if query, ok := sqlfrag.AsQuery(frag); ok {
		return query.SQL()
	}
	if raw, ok := frag.(sqlfrag.Raw); ok {
		return fmt.Sprintf("JSON_QUERY(%s)", raw.Text)
	}
	return frag.SQL()
}

// QuoteIdent brackets a SQL Server identifier.
func QuoteIdent(name string) string {
	return "[" + name + "]"
}
