package main

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aehrc/sof-mssql/compiler"
	"github.com/aehrc/sof-mssql/storedb"
	"github.com/aehrc/sof-mssql/viewdef"
)

func mustParseView(t *testing.T, json string) *viewdef.ViewDefinition {
	t.Helper()
	vd, err := viewdef.Parse([]byte(json))
	require.NoError(t, err)
	return vd
}

const samplePatientView = `{
	"resourceType": "ViewDefinition",
	"resource": "Patient",
	"select": [{"column": [{"name": "id", "path": "id", "type": "id"}]}]
}`

func TestCompileViewDefaultsToGenerateQuery(t *testing.T) {
	vd := mustParseView(t, samplePatientView)
	result, err := compileView(vd, cliOptions{}, compiler.Options{})
	require.NoError(t, err)
	require.NotContains(t, result.SQL, "CREATE VIEW")
	require.NotContains(t, result.SQL, "SELECT * INTO")
}

func TestCompileViewAsView(t *testing.T) {
	vd := mustParseView(t, samplePatientView)
	result, err := compileView(vd, cliOptions{AsView: "patient_view"}, compiler.Options{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(result.SQL, "CREATE VIEW [patient_view] AS"))
}

func TestCompileViewAsTable(t *testing.T) {
	vd := mustParseView(t, samplePatientView)
	result, err := compileView(vd, cliOptions{AsTable: "patient_table"}, compiler.Options{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(result.SQL, "SELECT * INTO [patient_table] FROM ("))
}

func TestReadViewDefinitionFromFile(t *testing.T) {
	path := t.TempDir() + "/view.json"
	require.NoError(t, os.WriteFile(path, []byte(samplePatientView), 0o644))
	buf, err := readViewDefinition(path)
	require.NoError(t, err)
	require.Contains(t, string(buf), `"resource": "Patient"`)
}

func TestRenderResultFormats(t *testing.T) {
	result := &storedb.Result{Columns: []string{"id"}, Rows: [][]any{{"p1"}}}
	for _, format := range []string{"table", "csv", "ndjson", "unknown"} {
		_, err := renderResult(result, format)
		require.NoError(t, err)
	}
}
