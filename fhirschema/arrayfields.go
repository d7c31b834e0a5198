// Package fhirschema holds the small amount of FHIR shape knowledge the
// compiler needs outside of full resource validation: which top-level
// fields are arrays on common resources. spec.md §9 flags the original
// hard-coded field lists as something that should be a configurable
// predicate rather than inline literals scattered through the lowering and
// path-parsing code; this package is that predicate's single home.
package fhirschema

import "strings"

// DefaultArrayFields is the default set of FHIR fields treated as arrays by
// the lowering visitor (implicit first-element injection) and the forEach
// path parser (array-flattening detection). It is the union of the two
// field lists named in spec.md §4.2 and §4.4.
var DefaultArrayFields = map[string]bool{
	"name":          true,
	"telecom":       true,
	"address":       true,
	"identifier":    true,
	"extension":     true,
	"contact":       true,
	"communication": true,
	"link":          true,
}

// IsArrayField is a predicate over a field name, the shape every consumer in
// this repo takes so a caller can plug in deeper FHIR StructureDefinition
// knowledge instead of the default hard-coded set.
type IsArrayField func(field string) bool

// Default returns the IsArrayField predicate backed by DefaultArrayFields.
func Default() IsArrayField {
	return func(field string) bool { return DefaultArrayFields[field] }
}

// BooleanScalarFields is the set of top-level FHIR fields narrow enough in
// type (a bare boolean, never a CodeableConcept or other complex shape) to
// get the CASE-WHEN boolean rendering in spec.md §4.8/§8 S5, rather than the
// generic CAST(... AS BIT) equality comparison.
var BooleanScalarFields = map[string]bool{
	"active":        true,
	"deceased":      true,
	"multipleBirth": true,
}

// IsBooleanScalarField reports whether path's final segment names a field in
// BooleanScalarFields.
func IsBooleanScalarField(path string) bool {
	segs := strings.Split(path, ".")
	return BooleanScalarFields[segs[len(segs)-1]]
}
