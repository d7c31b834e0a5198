package emit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aehrc/sof-mssql/planner"
	"github.com/aehrc/sof-mssql/viewdef"
)

func col(name, path string) viewdef.Column {
	return viewdef.Column{Name: name, Path: path}
}

func buildSQL(t *testing.T, vd *viewdef.ViewDefinition, opts Options) string {
	t.Helper()
	variants, err := planner.Expand(vd)
	require.NoError(t, err)
	sql, err := BuildQuery(vd, variants, opts)
	require.NoError(t, err)
	return sql
}

func TestBuildQuerySimpleColumns(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Select: []viewdef.Select{{
			Column: []viewdef.Column{col("id", "id"), col("gender", "gender")},
		}},
	}
	sql := buildSQL(t, vd, Options{})
	require.Contains(t, sql, "FROM fhir.Patient AS r")
	require.Contains(t, sql, "r.id AS [id]")
	require.Contains(t, sql, "AS [gender]")
	require.Contains(t, sql, "WHERE r.resource_type = 'Patient'")
	require.NotContains(t, sql, "UNION ALL")
}

func TestBuildQueryForEachProducesCrossApply(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Select: []viewdef.Select{{
			ForEach: "name",
			Column:  []viewdef.Column{col("family", "family")},
		}},
	}
	sql := buildSQL(t, vd, Options{})
	require.Contains(t, sql, "CROSS APPLY OPENJSON(r.json, '$.name') AS forEach_0")
	require.Contains(t, sql, "JSON_VALUE(forEach_0.value, '$.family') AS [family]")
}

func TestBuildQueryForEachNonArraySuffixJoinsIntoOnePath(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Select: []viewdef.Select{{
			ForEach: "name.given",
			Column:  []viewdef.Column{{Name: "given", Path: "$this", Type: "string"}},
		}},
	}
	sql := buildSQL(t, vd, Options{})
	require.Contains(t, sql, "CROSS APPLY OPENJSON(r.json, '$.name.given') AS forEach_0")
	require.Contains(t, sql, "forEach_0.value AS [given]")
}

func TestBuildQueryForEachOrNullUsesOuterApply(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Select: []viewdef.Select{{
			ForEachOrNull: "contact",
			Column:        []viewdef.Column{col("relationship", "relationship")},
		}},
	}
	sql := buildSQL(t, vd, Options{})
	require.Contains(t, sql, "OUTER APPLY OPENJSON(r.json, '$.contact') AS forEach_0")
}

func TestBuildQueryUnionAllBranchesCombineWithUnionAll(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Select: []viewdef.Select{{
			UnionAll: []viewdef.Select{
				{Column: []viewdef.Column{col("v", "gender")}},
				{Column: []viewdef.Column{col("v", "birthDate")}},
			},
		}},
	}
	sql := buildSQL(t, vd, Options{})
	require.Equal(t, 1, strings.Count(sql, "\nUNION ALL\n"))
}

func TestBuildQueryWhereClauseAppended(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Where:    []viewdef.Where{{Path: "active"}},
		Select: []viewdef.Select{{
			Column: []viewdef.Column{col("id", "id")},
		}},
	}
	sql := buildSQL(t, vd, Options{})
	require.Contains(t, sql, "WHERE")
	require.Contains(t, sql, "(JSON_VALUE(r.json, '$.active') = 'true')")
}

func TestBuildQueryTestIDScopesRows(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Select: []viewdef.Select{{
			Column: []viewdef.Column{col("id", "id")},
		}},
	}
	sql := buildSQL(t, vd, Options{TestID: "case-1"})
	require.Contains(t, sql, "r.test_id = 'case-1'")
}

func TestBuildQueryRepeatBuildsRecursiveCTE(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Questionnaire",
		Select: []viewdef.Select{{
			Repeat: []string{"item", "item.item"},
			Column: []viewdef.Column{col("linkId", "linkId")},
		}},
	}
	sql := buildSQL(t, vd, Options{})
	require.True(t, strings.HasPrefix(sql, "WITH repeat_0"))
	require.Contains(t, sql, "OPENJSON(r.json, '$.item') AS anchor")
	require.Contains(t, sql, "CROSS APPLY OPENJSON(repeat_0.item_json, '$.item') AS child_0\n  CROSS APPLY OPENJSON(child_0.value, '$.item') AS child")
	require.Contains(t, sql, "INNER JOIN repeat_0 ON repeat_0.resource_id = r.id")
}

func TestBuildQueryNestedSelectInheritsParentScan(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Select: []viewdef.Select{{
			ForEach: "name",
			Select: []viewdef.Select{{
				Column: []viewdef.Column{col("use", "use")},
			}},
		}},
	}
	sql := buildSQL(t, vd, Options{})
	require.Contains(t, sql, "JSON_VALUE(forEach_0.value, '$.use') AS [use]")
	require.Equal(t, 1, strings.Count(sql, "CROSS APPLY"))
}

func TestBuildQueryForEachIndexFiltersToSingleElement(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Select: []viewdef.Select{{
			ForEach: "name[0]",
			Column:  []viewdef.Column{col("family", "family")},
		}},
	}
	sql := buildSQL(t, vd, Options{})
	require.Contains(t, sql, "CROSS APPLY OPENJSON(r.json, '$.name') AS forEach_0")
	require.Contains(t, sql, "forEach_0.[key] = '0'")
}

func TestBuildQueryForEachWhereFiltersElements(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Select: []viewdef.Select{{
			ForEach: "name.where(use='official')",
			Column:  []viewdef.Column{col("family", "family")},
		}},
	}
	sql := buildSQL(t, vd, Options{})
	require.Contains(t, sql, "CROSS APPLY OPENJSON(r.json, '$.name') AS forEach_0")
	require.Contains(t, sql, "JSON_VALUE(forEach_0.value, '$.use')")
}

func TestBuildQueryNameFamilyCollectionUsesStringAgg(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Select: []viewdef.Select{{
			Column: []viewdef.Column{{Name: "families", Path: "name.family", Collection: boolPtr(true)}},
		}},
	}
	sql := buildSQL(t, vd, Options{})
	require.Contains(t, sql, "STRING_AGG(JSON_VALUE(sa_name.value, '$.family'), ',')")
	require.Contains(t, sql, "FROM OPENJSON(r.json, '$.name') AS sa_name")
}

func TestBuildQueryNameGivenCollectionUsesNestedStringAgg(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Select: []viewdef.Select{{
			Column: []viewdef.Column{{Name: "givens", Path: "name.given", Collection: boolPtr(true)}},
		}},
	}
	sql := buildSQL(t, vd, Options{})
	require.Contains(t, sql, "STRING_AGG(sa_given.value, ',')")
	require.Contains(t, sql, "CROSS APPLY OPENJSON(sa_name.value, '$.given') AS sa_given")
}

func boolPtr(b bool) *bool { return &b }

func TestBuildQueryCustomTable(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Resource: "Patient",
		Select: []viewdef.Select{{
			Column: []viewdef.Column{col("id", "id")},
		}},
	}
	sql := buildSQL(t, vd, Options{TableSchema: "stage", TableName: "patients"})
	require.Contains(t, sql, "FROM stage.patients AS r")
}
