// Package compiler is the driver that ties the ViewDefinition validator, the
// planner's combination/forEach/repeat expansion, and the emit package's SQL
// assembly into the three entry points a caller needs: generateQuery,
// generateCreateView, and generateCreateTable (spec.md §2, §8 property 7).
//
// The package is pure: no I/O, no logging, safely callable concurrently from
// multiple goroutines as long as each call owns its own *viewdef.ViewDefinition
// and Options values (spec.md §5).
package compiler

import (
	"fmt"

	"github.com/aehrc/sof-mssql/emit"
	"github.com/aehrc/sof-mssql/internal/compilerr"
	"github.com/aehrc/sof-mssql/planner"
	"github.com/aehrc/sof-mssql/viewdef"
)

// ParamStyle selects how the WHERE clause's resource_type/test_id bindings
// are rendered: as literal SQL text or as named parameters a caller supplies
// separately. spec.md §4.8 leaves this choice to implementers; this repo
// defaults to Literal (see DESIGN.md Open Question resolution) and offers
// Parameterized for callers who want to reuse a single compiled plan string
// across test_id values without recompiling.
type ParamStyle int

const (
	ParamStyleLiteral ParamStyle = iota
	ParamStyleParameterized
)

// Options configures a single Compile call.
type Options struct {
	TableSchema  string
	TableName    string
	TestID       string
	ArrayFields  func(string) bool
	MaxRecursion int
	ParamStyle   ParamStyle
}

func (o Options) emitOptions() emit.Options {
	return emit.Options{
		TableSchema:   o.TableSchema,
		TableName:     o.TableName,
		TestID:        o.TestID,
		ArrayFields:   o.ArrayFields,
		MaxRecursion:  o.MaxRecursion,
		Parameterized: o.ParamStyle == ParamStyleParameterized,
	}
}

// ColumnInfo describes one output column of a compiled view, in SELECT order.
type ColumnInfo struct {
	Name        string
	Type        string
	Nullable    bool
	Description string
}

// Result is the output of a successful compile: the SQL text, its column
// shape, and the bound parameter names (spec.md §6 Output).
type Result struct {
	SQL        string
	Columns    []ColumnInfo
	Parameters map[string]string
}

// Compile validates vd and lowers it to a single SELECT (UNION ALL across
// unionAll variants when more than one). This is generateQuery from spec.md
// §2/§8.
func Compile(vd *viewdef.ViewDefinition, opts Options) (*Result, error) {
	validator := &viewdef.Validator{}
	if err := validator.Validate(vd); err != nil {
		return nil, fmt.Errorf("validating view %q: %w", vd.Name, err)
	}

	variants, err := planner.Expand(vd)
	if err != nil {
		return nil, fmt.Errorf("expanding unionAll combinations for view %q: %w", vd.Name, err)
	}
	if len(variants) == 0 {
		return nil, compilerr.Newf("compiler.Compile", "validated view %q produced zero plan variants", vd.Name)
	}

	sql, err := emit.BuildQuery(vd, variants, opts.emitOptions())
	if err != nil {
		return nil, fmt.Errorf("emitting SQL for view %q: %w", vd.Name, err)
	}

	first, err := planner.Build(variants[0], opts.ArrayFields)
	if err != nil {
		return nil, fmt.Errorf("resolving column shape for view %q: %w", vd.Name, err)
	}
	columns := collectColumnInfo(first)

	params := map[string]string{"resourceType": vd.Resource}
	if opts.TestID != "" {
		params["testId"] = opts.TestID
	}

	return &Result{SQL: sql, Columns: columns, Parameters: params}, nil
}

// GenerateCreateView wraps Compile's SQL in a CREATE VIEW statement, differing
// from generateQuery only by a fixed prefix (spec.md §8 property 7).
func GenerateCreateView(vd *viewdef.ViewDefinition, viewName string, opts Options) (*Result, error) {
	result, err := Compile(vd, opts)
	if err != nil {
		return nil, err
	}
	result.SQL = fmt.Sprintf("CREATE VIEW %s AS\n%s", emit.QuoteIdent(viewName), result.SQL)
	return result, nil
}

// GenerateCreateTable wraps Compile's SQL in a SELECT ... INTO statement,
// differing from generateQuery only by a fixed prefix and suffix (spec.md §8
// property 7): MS SQL Server has no bare CREATE TABLE AS SELECT, so SELECT
// INTO is the idiomatic equivalent that still leaves the inner query text
// untouched.
func GenerateCreateTable(vd *viewdef.ViewDefinition, tableName string, opts Options) (*Result, error) {
	result, err := Compile(vd, opts)
	if err != nil {
		return nil, err
	}
	result.SQL = fmt.Sprintf("SELECT * INTO %s FROM (\n%s\n) AS view_source", emit.QuoteIdent(tableName), result.SQL)
	return result, nil
}

func collectColumnInfo(node *planner.PlanNode) []ColumnInfo {
	var out []ColumnInfo
	nullable := len(node.Scans) > 0
	for _, c := range node.Columns {
		out = append(out, ColumnInfo{
			Name:        c.Name,
			Type:        emit.SQLType(c),
			Nullable:    nullable,
			Description: c.Description,
		})
	}
	for _, child := range node.Children {
		out = append(out, collectColumnInfo(child)...)
	}
	return out
}
