// Package sqlfrag is the internal JSON-path/SQL intermediate representation
// that the FHIRPath lowering visitor composes structurally instead of
// stringily concatenating and re-parsing SQL text with regular expressions.
// A Fragment is rendered to T-SQL text exactly once, at emission time.
package sqlfrag

import (
	"fmt"
	"strings"
)

// Fragment is a composable piece of lowered T-SQL. Every lowering rule in
// transpile.Lower returns one of the four concrete kinds below instead of a
// bare string, so later stages (chaining member access, wrapping in CAST,
// building a predicate) can inspect and extend the JSON path structurally.
type Fragment interface {
	// SQL renders the fragment to T-SQL text.
	SQL() string
	fragment()
}

// JSONValue is a scalar JSON extraction: JSON_VALUE(Src, 'Path').
type JSONValue struct {
	Src  string
	Path string
}

// JSONQuery is a sub-document JSON extraction: JSON_QUERY(Src, 'Path').
type JSONQuery struct {
	Src  string
	Path string
}

// Raw is a pre-rendered SQL scalar expression (literals, CONCAT(...), CASE
// expressions, arithmetic, and anything else that does not carry a JSON
// path of its own).
type Raw struct {
	Text string
}

// Predicate is a pre-rendered boolean SQL expression (comparisons, EXISTS
// subqueries, AND/OR compositions). Kept distinct from Raw so callers can
// tell, without inspecting text, whether a fragment is already predicate
// shaped (relevant to the BIT/boolean lowering rules in transpile).
type Predicate struct {
	Text string
}

func (JSONValue) fragment() {}
func (JSONQuery) fragment() {}
func (Raw) fragment()       {}
func (Predicate) fragment() {}

func (f JSONValue) SQL() string { return fmt.Sprintf("JSON_VALUE(%s, '%s')", f.Src, f.Path) }
func (f JSONQuery) SQL() string { return fmt.Sprintf("JSON_QUERY(%s, '%s')", f.Src, f.Path) }
func (f Raw) SQL() string       { return f.Text }
func (f Predicate) SQL() string { return f.Text }

// Extend appends a `.segment` to a JSON-path-carrying fragment, returning a
// new fragment of the same kind rooted at the same source. Non-JSON
// fragments (Raw, Predicate) cannot be extended this way; Extend on them
// returns false so callers can fall back to wrapping instead.
func Extend(f Fragment, segment string) (Fragment, bool) {
	switch v := f.(type) {
	case JSONValue:
		return JSONValue{Src: v.Src, Path: joinPath(v.Path, segment)}, true
	case JSONQuery:
		return JSONQuery{Src: v.Src, Path: joinPath(v.Path, segment)}, true
	default:
		return nil, false
	}
}

// ExtendIndex appends a `[n]` array index to a JSON-path-carrying fragment.
func ExtendIndex(f Fragment, index string) (Fragment, bool) {
	switch v := f.(type) {
	case JSONValue:
		return JSONValue{Src: v.Src, Path: v.Path + "[" + index + "]"}, true
	case JSONQuery:
		return JSONQuery{Src: v.Src, Path: v.Path + "[" + index + "]"}, true
	default:
		return nil, false
	}
}

// AsQuery reinterprets a JSONValue fragment as a JSONQuery over the same
// source/path (used when a sub-document, not a scalar, is needed — e.g. the
// base of a `where`/`select` iteration).
func AsQuery(f Fragment) (JSONQuery, bool) {
	switch v := f.(type) {
	case JSONValue:
		return JSONQuery{Src: v.Src, Path: v.Path}, true
	case JSONQuery:
		return v, true
	default:
		return JSONQuery{}, false
	}
}

func joinPath(base, segment string) string {
	if base == "$" {
		return base + "." + segment
	}
	return strings.TrimSuffix(base, "") + "." + segment
}

// Path returns the JSON path carried by a fragment, if any.
func Path(f Fragment) (string, bool) {
	switch v := f.(type) {
	case JSONValue:
		return v.Path, true
	case JSONQuery:
		return v.Path, true
	default:
		return "", false
	}
}

// QuoteStringLiteral single-quotes a literal SQL string value, doubling any
// embedded single quotes.
func QuoteStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
