package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aehrc/sof-mssql/viewdef"
)

func col(name, path string) viewdef.Column {
	return viewdef.Column{Name: name, Path: path}
}

func TestExpandNoUnionAllYieldsOneVariant(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Select: []viewdef.Select{{Column: []viewdef.Column{col("id", "id")}}},
	}
	variants, err := Expand(vd)
	require.NoError(t, err)
	require.Len(t, variants, 1)
}

func TestExpandSingleUnionAllYieldsOnePerBranch(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Select: []viewdef.Select{{
			UnionAll: []viewdef.Select{
				{Column: []viewdef.Column{col("v", "a")}},
				{Column: []viewdef.Column{col("v", "b")}},
				{Column: []viewdef.Column{col("v", "c")}},
			},
		}},
	}
	variants, err := Expand(vd)
	require.NoError(t, err)
	require.Len(t, variants, 3)
	require.Equal(t, []int{0}, variants[0].Choices)
	require.Equal(t, []int{2}, variants[2].Choices)
}

func TestExpandUnionAllPreservesParentForEach(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Select: []viewdef.Select{{
			ForEach: "name",
			UnionAll: []viewdef.Select{
				{Column: []viewdef.Column{col("v", "family")}},
				{Column: []viewdef.Column{col("v", "given")}},
			},
		}},
	}
	variants, err := Expand(vd)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	for _, v := range variants {
		require.Equal(t, "name", v.Select.ForEach)
		require.Empty(t, v.Select.UnionAll)
		require.Len(t, v.Select.Select, 1)
	}
	require.Equal(t, "family", variants[0].Select.Select[0].Column[0].Path)
	require.Equal(t, "given", variants[1].Select.Select[0].Column[0].Path)

	for _, v := range variants {
		node, err := Build(v, nil)
		require.NoError(t, err)
		require.Len(t, node.Scans, 1)
		require.Equal(t, ScanForEach, node.Scans[0].Kind)
		require.Empty(t, node.Columns)
		require.Len(t, node.Children, 1)
		require.Len(t, node.Children[0].Columns, 1)
	}
}

func TestExpandNestedUnionAllMultiplies(t *testing.T) {
	vd := &viewdef.ViewDefinition{
		Select: []viewdef.Select{{
			Select: []viewdef.Select{
				{UnionAll: []viewdef.Select{
					{Column: []viewdef.Column{col("a", "a")}},
					{Column: []viewdef.Column{col("a", "a2")}},
				}},
				{UnionAll: []viewdef.Select{
					{Column: []viewdef.Column{col("b", "b")}},
					{Column: []viewdef.Column{col("b", "b2")}},
				}},
			},
		}},
	}
	variants, err := Expand(vd)
	require.NoError(t, err)
	require.Len(t, variants, 4)
}
