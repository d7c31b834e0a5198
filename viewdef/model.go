// Package viewdef is the typed representation and validator for SQL-on-FHIR
// v2 ViewDefinition documents, immutable once decoded.
package viewdef

import "encoding/json"

// ViewDefinition is a declarative tabular projection over a FHIR resource
// type. See spec.md §3 and §6 for the full field contract.
type ViewDefinition struct {
	ResourceType string     `json:"resourceType,omitempty"`
	ID           string     `json:"id,omitempty"`
	URL          string     `json:"url,omitempty"`
	Name         string     `json:"name,omitempty"`
	Description  string     `json:"description,omitempty"`
	Version      string     `json:"version,omitempty"`
	Status       string     `json:"status,omitempty"`
	Resource     string     `json:"resource"`
	Constant     []Constant `json:"constant,omitempty"`
	Select       []Select   `json:"select"`
	Where        []Where    `json:"where,omitempty"`
}

// Constant is a scalar name-value binding usable from `%name` inside
// FHIRPath expressions. Exactly one `value[x]` field may be set.
type Constant struct {
	Name          string `json:"name"`
	ValueBoolean  *bool   `json:"valueBoolean,omitempty"`
	ValueString   *string `json:"valueString,omitempty"`
	ValueInteger  *int64  `json:"valueInteger,omitempty"`
	ValueDecimal  *string `json:"valueDecimal,omitempty"`
	ValueDate     *string `json:"valueDate,omitempty"`
	ValueDateTime *string `json:"valueDateTime,omitempty"`
	ValueCode     *string `json:"valueCode,omitempty"`
}

// valueFields returns the set of value[x] fields on this constant. Used by
// the validator to enforce "exactly one value[x]".
func (c Constant) valueFields() []string {
	var set []string
	if c.ValueBoolean != nil {
		set = append(set, "valueBoolean")
	}
	if c.ValueString != nil {
		set = append(set, "valueString")
	}
	if c.ValueInteger != nil {
		set = append(set, "valueInteger")
	}
	if c.ValueDecimal != nil {
		set = append(set, "valueDecimal")
	}
	if c.ValueDate != nil {
		set = append(set, "valueDate")
	}
	if c.ValueDateTime != nil {
		set = append(set, "valueDateTime")
	}
	if c.ValueCode != nil {
		set = append(set, "valueCode")
	}
	return set
}

// SQLLiteral renders the constant's single value as a FHIRPath/SQL literal
// source fragment, used by transpile.Context to bind `%name` references.
func (c Constant) SQLLiteral() (string, bool) {
	switch {
	case c.ValueBoolean != nil:
		if *c.ValueBoolean {
			return "true", true
		}
		return "false", true
	case c.ValueString != nil:
		return "'" + escapeQuotes(*c.ValueString) + "'", true
	case c.ValueCode != nil:
		return "'" + escapeQuotes(*c.ValueCode) + "'", true
	case c.ValueInteger != nil:
		return jsonNumber(*c.ValueInteger), true
	case c.ValueDecimal != nil:
		return *c.ValueDecimal, true
	case c.ValueDate != nil:
		return "'" + escapeQuotes(*c.ValueDate) + "'", true
	case c.ValueDateTime != nil:
		return "'" + escapeQuotes(*c.ValueDateTime) + "'", true
	default:
		return "", false
	}
}

func escapeQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// Select is a node in the ViewDefinition's projection tree. At least one of
// Column, Select, or UnionAll must be populated.
type Select struct {
	Column         []Column `json:"column,omitempty"`
	Select         []Select `json:"select,omitempty"`
	UnionAll       []Select `json:"unionAll,omitempty"`
	ForEach        string   `json:"forEach,omitempty"`
	ForEachOrNull  string   `json:"forEachOrNull,omitempty"`
	Repeat         []string `json:"repeat,omitempty"`
	Where          []Where  `json:"where,omitempty"`
}

// IsIterating reports whether this Select opens a new iteration context.
func (s Select) IsIterating() bool {
	return s.ForEach != "" || s.ForEachOrNull != ""
}

// IterationPath returns the forEach/forEachOrNull path and whether the
// iteration is nullable (forEachOrNull).
func (s Select) IterationPath() (path string, orNull bool) {
	if s.ForEach != "" {
		return s.ForEach, false
	}
	return s.ForEachOrNull, true
}

// IsRepeat reports whether this Select denotes a recursive `repeat` traversal.
func (s Select) IsRepeat() bool { return len(s.Repeat) > 0 }

// Column describes a single output column.
type Column struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Collection  *bool  `json:"collection,omitempty"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Tag         []Tag  `json:"tag,omitempty"`
}

// CollectionMode reports how multiplicity should be handled for this column.
type CollectionMode int

const (
	CollectionUnspecified CollectionMode = iota
	CollectionTrue
	CollectionFalse
)

func (c Column) CollectionMode() CollectionMode {
	if c.Collection == nil {
		return CollectionUnspecified
	}
	if *c.Collection {
		return CollectionTrue
	}
	return CollectionFalse
}

// Tag attaches a namespaced directive to a Column; the one tag this repo
// interprets is "mssql/type", an explicit SQL type override.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MSSQLTypeOverride returns the value of the "mssql/type" tag, if present.
func (c Column) MSSQLTypeOverride() (string, bool) {
	for _, t := range c.Tag {
		if t.Name == "mssql/type" {
			return t.Value, true
		}
	}
	return "", false
}

// Where is a row filter expressed as a FHIRPath boolean predicate.
type Where struct {
	Path string `json:"path"`
}

// Parse decodes a ViewDefinition from JSON. Structural validation is
// performed separately by Validate.
func Parse(data []byte) (*ViewDefinition, error) {
	var vd ViewDefinition
	if err := json.Unmarshal(data, &vd); err != nil {
		return nil, err
	}
	if vd.Status == "" {
		vd.Status = "active"
	}
	return &vd, nil
}
