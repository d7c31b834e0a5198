package transpile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aehrc/sof-mssql/fhirpath"
)

func lowerExpr(t *testing.T, expr string, ctx Context) string {
	t.Helper()
	node, err := fhirpath.Parse(expr)
	require.NoError(t, err)
	frag, err := Lower(node, ctx)
	require.NoError(t, err)
	return frag.SQL()
}

func baseContext() Context {
	return Context{ResourceAlias: "r"}
}

func TestLowerPlainMember(t *testing.T) {
	sql := lowerExpr(t, "gender", baseContext())
	require.Equal(t, `JSON_VALUE(r.json, '$.gender')`, sql)
}

func TestLowerIDSpecialCase(t *testing.T) {
	sql := lowerExpr(t, "id", baseContext())
	require.Equal(t, "r.id", sql)
}

func TestLowerImplicitFirstElement(t *testing.T) {
	sql := lowerExpr(t, "name.family", baseContext())
	require.Equal(t, `JSON_VALUE(r.json, '$.name[0].family')`, sql)
}

func TestLowerImplicitFirstElementDoesNotReapplyDeeper(t *testing.T) {
	sql := lowerExpr(t, "name.family.value", baseContext())
	require.Equal(t, `JSON_VALUE(r.json, '$.name[0].family.value')`, sql)
}

func TestLowerExplicitIndex(t *testing.T) {
	sql := lowerExpr(t, "name[1].family", baseContext())
	require.Equal(t, `JSON_VALUE(r.json, '$.name[1].family')`, sql)
}

func TestLowerEqualityAgainstKnownBooleanFieldUsesCaseWhen(t *testing.T) {
	sql := lowerExpr(t, "active = true", baseContext())
	require.Equal(t, `(CASE WHEN JSON_VALUE(r.json,'$.active')='true' THEN 1 ELSE 0 END = 1)`, sql)
}

func TestLowerEqualityWithBooleanLiteralCastsToBit(t *testing.T) {
	sql := lowerExpr(t, "confirmed = true", baseContext())
	require.Equal(t, `(CAST(JSON_VALUE(r.json, '$.confirmed') AS BIT) = 1)`, sql)
}

func TestLowerStringEquality(t *testing.T) {
	sql := lowerExpr(t, "gender = 'male'", baseContext())
	require.Equal(t, `(JSON_VALUE(r.json, '$.gender') = 'male')`, sql)
}

func TestLowerAndOr(t *testing.T) {
	sql := lowerExpr(t, "name.exists() and gender = 'male'", baseContext())
	require.Contains(t, sql, "AND")
	require.Contains(t, sql, "EXISTS")
}

func TestLowerExistsOnScalarMember(t *testing.T) {
	sql := lowerExpr(t, "gender.exists()", baseContext())
	require.Equal(t, `(JSON_VALUE(r.json, '$.gender') IS NOT NULL)`, sql)
}

func TestLowerExistsOnCollection(t *testing.T) {
	sql := lowerExpr(t, "name.exists()", baseContext())
	require.Contains(t, sql, "EXISTS (SELECT 1 FROM OPENJSON(r.json, '$.name')")
}

func TestLowerCount(t *testing.T) {
	sql := lowerExpr(t, "name.count()", baseContext())
	require.Equal(t, `(SELECT COUNT(*) FROM OPENJSON(r.json, '$.name'))`, sql)
}

func TestLowerWhereThenMember(t *testing.T) {
	sql := lowerExpr(t, "name.where(use = 'official').family", baseContext())
	require.Contains(t, sql, "SELECT TOP 1 value FROM OPENJSON(r.json, '$.name') AS item")
	require.Contains(t, sql, "JSON_VALUE(item.value, '$.use')")
	require.Contains(t, sql, "$.family")
}

func TestLowerInsideForEach(t *testing.T) {
	ctx := baseContext().WithForEach("forEach_0", "r.json", "$.name")
	sql := lowerExpr(t, "family", ctx)
	require.Equal(t, `JSON_VALUE(forEach_0.value, '$.family')`, sql)
}

func TestLowerConstantReference(t *testing.T) {
	ctx := baseContext()
	ctx.Constants = map[string]string{"targetGender": "'male'"}
	sql := lowerExpr(t, "gender = %targetGender", ctx)
	require.Equal(t, `(JSON_VALUE(r.json, '$.gender') = 'male')`, sql)
}

func TestLowerUndefinedConstantErrors(t *testing.T) {
	node, err := fhirpath.Parse("%missing")
	require.NoError(t, err)
	_, err = Lower(node, baseContext())
	require.Error(t, err)
}

func TestLowerUnsupportedFunctionErrors(t *testing.T) {
	node, err := fhirpath.Parse("name.aggregate($this)")
	require.NoError(t, err)
	_, err = Lower(node, baseContext())
	require.Error(t, err)
	var uf *UnsupportedFunction
	require.ErrorAs(t, err, &uf)
	require.Equal(t, "aggregate", uf.Name)
}

func TestLowerGetReferenceKey(t *testing.T) {
	sql := lowerExpr(t, "subject.getReferenceKey()", baseContext())
	require.Contains(t, sql, "REVERSE(JSON_VALUE(r.json, '$.subject.reference'))")
}

func TestLowerJoin(t *testing.T) {
	sql := lowerExpr(t, "name.given.join(', ')", baseContext())
	require.Contains(t, sql, "STRING_AGG(value, ', ')")
	require.Contains(t, sql, "OPENJSON(r.json, '$.name[0].given')")
}
