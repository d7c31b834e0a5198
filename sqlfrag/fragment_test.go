package sqlfrag

import "testing"

func TestJSONValueSQL(t *testing.T) {
	f := JSONValue{Src: "r.json", Path: "$.active"}
	if got, want := f.SQL(), "JSON_VALUE(r.json, '$.active')"; got != want {
		t.Errorf("SQL() = %q, want %q", got, want)
	}
}

func TestJSONQuerySQL(t *testing.T) {
	f := JSONQuery{Src: "r.json", Path: "$.name"}
	if got, want := f.SQL(), "JSON_QUERY(r.json, '$.name')"; got != want {
		t.Errorf("SQL() = %q, want %q", got, want)
	}
}

func TestRawAndPredicateSQL(t *testing.T) {
	if got, want := (Raw{Text: "1"}).SQL(), "1"; got != want {
		t.Errorf("Raw.SQL() = %q, want %q", got, want)
	}
	if got, want := (Predicate{Text: "(1 = 1)"}).SQL(), "(1 = 1)"; got != want {
		t.Errorf("Predicate.SQL() = %q, want %q", got, want)
	}
}

func TestExtendAppendsSegmentToJSONKinds(t *testing.T) {
	value, ok := Extend(JSONValue{Src: "r.json", Path: "$.name"}, "family")
	if !ok {
		t.Fatal("Extend on JSONValue returned ok=false")
	}
	if got, want := value.SQL(), "JSON_VALUE(r.json, '$.name.family')"; got != want {
		t.Errorf("Extend(JSONValue) = %q, want %q", got, want)
	}

	query, ok := Extend(JSONQuery{Src: "r.json", Path: "$.name"}, "family")
	if !ok {
		t.Fatal("Extend on JSONQuery returned ok=false")
	}
	if got, want := query.SQL(), "JSON_QUERY(r.json, '$.name.family')"; got != want {
		t.Errorf("Extend(JSONQuery) = %q, want %q", got, want)
	}
}

func TestExtendRejectsNonPathKinds(t *testing.T) {
	if _, ok := Extend(Raw{Text: "r.json"}, "family"); ok {
		t.Error("Extend(Raw) should return ok=false")
	}
	if _, ok := Extend(Predicate{Text: "(1 = 1)"}, "family"); ok {
		t.Error("Extend(Predicate) should return ok=false")
	}
}

func TestExtendIndexAppendsBracket(t *testing.T) {
	value, ok := ExtendIndex(JSONValue{Src: "r.json", Path: "$.name"}, "0")
	if !ok {
		t.Fatal("ExtendIndex on JSONValue returned ok=false")
	}
	if got, want := value.SQL(), "JSON_VALUE(r.json, '$.name[0]')"; got != want {
		t.Errorf("ExtendIndex(JSONValue) = %q, want %q", got, want)
	}

	if _, ok := ExtendIndex(Raw{Text: "r.json"}, "0"); ok {
		t.Error("ExtendIndex(Raw) should return ok=false")
	}
}

func TestAsQueryConvertsJSONValue(t *testing.T) {
	query, ok := AsQuery(JSONValue{Src: "r.json", Path: "$.name"})
	if !ok {
		t.Fatal("AsQuery(JSONValue) returned ok=false")
	}
	if got, want := query.SQL(), "JSON_QUERY(r.json, '$.name')"; got != want {
		t.Errorf("AsQuery(JSONValue).SQL() = %q, want %q", got, want)
	}

	same, ok := AsQuery(JSONQuery{Src: "r.json", Path: "$.name"})
	if !ok || same.SQL() != "JSON_QUERY(r.json, '$.name')" {
		t.Errorf("AsQuery(JSONQuery) should pass through unchanged, got %+v ok=%v", same, ok)
	}

	if _, ok := AsQuery(Raw{Text: "r.json"}); ok {
		t.Error("AsQuery(Raw) should return ok=false")
	}
}

func TestPathExtractsFromJSONKinds(t *testing.T) {
	if path, ok := Path(JSONValue{Src: "r.json", Path: "$.active"}); !ok || path != "$.active" {
		t.Errorf("Path(JSONValue) = (%q, %v), want ($.active, true)", path, ok)
	}
	if path, ok := Path(JSONQuery{Src: "r.json", Path: "$.name"}); !ok || path != "$.name" {
		t.Errorf("Path(JSONQuery) = (%q, %v), want ($.name, true)", path, ok)
	}
	if _, ok := Path(Raw{Text: "r.json"}); ok {
		t.Error("Path(Raw) should return ok=false")
	}
}

func TestQuoteStringLiteralDoublesEmbeddedQuotes(t *testing.T) {
	if got, want := QuoteStringLiteral("O'Brien"), "'O''Brien'"; got != want {
		t.Errorf("QuoteStringLiteral = %q, want %q", got, want)
	}
}
