package pathparser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aehrc/sof-mssql/fhirpath"
	"github.com/aehrc/sof-mssql/fhirschema"
)

func TestDecodeSingleField(t *testing.T) {
	steps, err := Decode("name", fhirschema.Default())
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Equal(t, "name", steps[0].Field)
}

func TestDecodeFlattensNestedArrayFields(t *testing.T) {
	steps, err := Decode("contact.name", fhirschema.Default())
	require.NoError(t, err)
	require.Len(t, steps, 2)
	require.Equal(t, "contact", steps[0].Field)
	require.Equal(t, "name", steps[1].Field)
}

func TestDecodeFoldsNonArraySuffixIntoStep(t *testing.T) {
	steps, err := Decode("identifier.type.text", fhirschema.Default())
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Equal(t, "identifier", steps[0].Field)
	require.Equal(t, "type.text", steps[0].PathSuffix)
}

func TestDecodeWhereAttachesPredicate(t *testing.T) {
	steps, err := Decode("name.where(use = 'official')", fhirschema.Default())
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.NotNil(t, steps[0].Where)
	require.False(t, steps[0].AlwaysFalse)
}

func TestDecodeWhereFalseShortCircuits(t *testing.T) {
	steps, err := Decode("name.where(false)", fhirschema.Default())
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.True(t, steps[0].AlwaysFalse)
	require.Equal(t, fhirpath.BoolLiteral{Value: false}, steps[0].Where)
}

func TestDecodeExplicitIndex(t *testing.T) {
	steps, err := Decode("telecom[0]", fhirschema.Default())
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Equal(t, "0", steps[0].Index)
}

func TestDecodeUnsupportedFunctionErrors(t *testing.T) {
	_, err := Decode("name.first()", fhirschema.Default())
	require.Error(t, err)
	var uf *UnsupportedPathFunction
	require.ErrorAs(t, err, &uf)
	require.Equal(t, "first", uf.Name)
}

func TestDecodeEmptyPathErrors(t *testing.T) {
	_, err := Decode("", fhirschema.Default())
	require.Error(t, err)
}
