package storedb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	return &Result{
		Columns: []string{"id", "gender"},
		Rows: [][]any{
			{"p1", "female"},
			{"p2", nil},
		},
	}
}

func TestRenderCSV(t *testing.T) {
	out, err := RenderCSV(sampleResult())
	require.NoError(t, err)
	require.Contains(t, out, "id,gender")
	require.Contains(t, out, "p1,female")
	require.Contains(t, out, "p2,")
}

func TestRenderNDJSON(t *testing.T) {
	out, err := RenderNDJSON(sampleResult())
	require.NoError(t, err)
	require.Contains(t, out, `"id":"p1"`)
	require.Contains(t, out, `"gender":"female"`)
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(sampleResult())
	require.Contains(t, out, "id")
	require.Contains(t, out, "p1")
	require.Contains(t, out, "female")
}

func TestBuildDSNIncludesDatabase(t *testing.T) {
	dsn := buildDSN(Config{Host: "127.0.0.1", Port: 1433, User: "sa", Password: "pw", Database: "fhirstore"})
	require.Contains(t, dsn, "127.0.0.1:1433")
	require.Contains(t, dsn, "database=fhirstore")
}
