package emit

import (
	"fmt"
	"strings"

	"github.com/aehrc/sof-mssql/fhirschema"
	"github.com/aehrc/sof-mssql/internal/compilerr"
	"github.com/aehrc/sof-mssql/planner"
	"github.com/aehrc/sof-mssql/transpile"
	"github.com/aehrc/sof-mssql/viewdef"
)

// Options configures a full ViewDefinition compilation.
type Options struct {
	// TableSchema and TableName locate the base table holding one row per
	// resource instance, with at least `id` and `json` columns (and
	// `test_id` when TestID is set). Defaults to "fhir" and the
	// ViewDefinition's resource type.
	TableSchema string
	TableName   string
	// TestID, when non-empty, scopes every generated query to rows whose
	// test_id column equals this value.
	TestID string
	// ArrayFields overrides the default known-array-field predicate.
	ArrayFields fhirschema.IsArrayField
	// MaxRecursion bounds `repeat` traversal depth (default 100).
	MaxRecursion int
	// Parameterized renders the resource_type/test_id WHERE bindings as
	// @resourceType/@testId instead of inline literals.
	Parameterized bool
}

func (o Options) resolve(vd *viewdef.ViewDefinition) Options {
	if o.TableSchema == "" {
		o.TableSchema = "fhir"
	}
	if o.TableName == "" {
		o.TableName = vd.Resource
	}
	if o.MaxRecursion <= 0 {
		o.MaxRecursion = 100
	}
	return o
}

// BuildQuery compiles vd into a single SELECT statement (its variants
// combined with UNION ALL).
func BuildQuery(vd *viewdef.ViewDefinition, variants []planner.Variant, opts Options) (string, error) {
	opts = opts.resolve(vd)
	constants, err := constantLiterals(vd)
	if err != nil {
		return "", err
	}
	baseCtx := transpile.Context{
		ResourceAlias: "r",
		Constants:     constants,
		IsArrayField:  opts.ArrayFields,
		TestID:        opts.TestID,
	}

	var arms []string
	for _, v := range variants {
		node, err := planner.Build(v, opts.ArrayFields)
		if err != nil {
			return "", err
		}
		arm, err := buildVariantSQL(node, vd, baseCtx, opts)
		if err != nil {
			return "", err
		}
		arms = append(arms, arm)
	}
	if len(arms) == 0 {
		return "", compilerr.Newf("emit.BuildQuery", "no plan variants produced for a validated ViewDefinition")
	}
	return strings.Join(arms, "\nUNION ALL\n"), nil
}

func constantLiterals(vd *viewdef.ViewDefinition) (map[string]string, error) {
	out := make(map[string]string, len(vd.Constant))
	for _, c := range vd.Constant {
		lit, ok := c.SQLLiteral()
		if !ok {
			return nil, compilerr.Newf("emit.constantLiterals", "constant %q has no renderable value (should have failed validation)", c.Name)
		}
		out[c.Name] = lit
	}
	return out, nil
}

func buildVariantSQL(root *planner.PlanNode, vd *viewdef.ViewDefinition, base transpile.Context, opts Options) (string, error) {
	scans := uniqueScans(root)

	columns, err := collectColumns(root, base)
	if err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", compilerr.Newf("emit.buildVariantSQL", "plan variant produced no columns")
	}

	nodeWheres, err := collectWheres(root, base)
	if err != nil {
		return "", err
	}
	for _, scan := range scans {
		if scan.Step.AlwaysFalse {
			nodeWheres = append(nodeWheres, "1 = 0")
		}
		if scan.Step.Index != "" {
			nodeWheres = append(nodeWheres, fmt.Sprintf("%s.[key] = '%s'", scan.Alias, scan.Step.Index))
		}
		if scan.Step.Where != nil && !scan.Step.AlwaysFalse {
			clause, err := lowerStepWhere(scan, base)
			if err != nil {
				return "", err
			}
			nodeWheres = append(nodeWheres, clause)
		}
	}
	whereSQL, err := WhereClause(vd.Resource, vd.Where, nil, base, opts.TestID, opts.Parameterized)
	if err != nil {
		return "", err
	}
	wheres := append([]string{whereSQL}, nodeWheres...)

	var b strings.Builder

	ctes := repeatCTEs(scans, opts)
	if len(ctes) > 0 {
		b.WriteString("WITH ")
		b.WriteString(strings.Join(ctes, ",\n"))
		b.WriteString("\n")
	}

	b.WriteString("SELECT\n  ")
	b.WriteString(strings.Join(columns, ",\n  "))
	b.WriteString(fmt.Sprintf("\nFROM %s.%s AS r", opts.TableSchema, opts.TableName))

	for _, scan := range scans {
		b.WriteString("\n")
		b.WriteString(scanJoinSQL(scan))
	}

	if len(wheres) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(wheres, "\n  AND "))
	}

	return b.String(), nil
}

// lowerStepWhere lowers a forEach/forEachOrNull step's where() predicate
// (pathparser.Step.Where) in the context of the element that step's OPENJSON
// call just opened.
func lowerStepWhere(scan planner.ScanLevel, base transpile.Context) (string, error) {
	ctx := base.WithForEach(scan.Alias, scan.ParentSource, "$."+planner.OpenJSONPath(scan))
	frag, err := transpile.Lower(scan.Step.Where, ctx)
	if err != nil {
		return "", err
	}
	return transpile.AsBooleanPredicate(frag), nil
}

func scanJoinSQL(scan planner.ScanLevel) string {
	switch scan.Kind {
	case planner.ScanForEach:
		return fmt.Sprintf("CROSS APPLY OPENJSON(%s, '$.%s') AS %s", scan.ParentSource, planner.OpenJSONPath(scan), scan.Alias)
	case planner.ScanForEachOrNull:
		return fmt.Sprintf("OUTER APPLY OPENJSON(%s, '$.%s') AS %s", scan.ParentSource, planner.OpenJSONPath(scan), scan.Alias)
	case planner.ScanRepeat:
		return fmt.Sprintf("INNER JOIN %s ON %s.resource_id = r.id", scan.Alias, scan.Alias)
	default:
		return ""
	}
}

// repeatCTEs renders one recursive CTE definition per ScanRepeat level.
func repeatCTEs(scans []planner.ScanLevel, opts Options) []string {
	var out []string
	for _, scan := range scans {
		if scan.Kind != planner.ScanRepeat {
			continue
		}
		var recursiveArms []string
		for _, path := range scan.RepeatPaths {
			// A multi-segment path descends one CROSS APPLY per segment; only
			// the last segment's rows become the next level's items.
			segs := strings.Split(path, ".")
			src := scan.Alias + ".item_json"
			var applies []string
			for i, seg := range segs[:len(segs)-1] {
				alias := fmt.Sprintf("child_%d", i)
				applies = append(applies, fmt.Sprintf("CROSS APPLY OPENJSON(%s, '$.%s') AS %s", src, seg, alias))
				src = alias + ".value"
			}
			applies = append(applies, fmt.Sprintf("CROSS APPLY OPENJSON(%s, '$.%s') AS child", src, segs[len(segs)-1]))
			recursiveArms = append(recursiveArms, fmt.Sprintf(
				"SELECT %s.resource_id, child.value, %s.depth + 1\n  FROM %s\n  %s\n  WHERE %s.depth < %d",
				scan.Alias, scan.Alias, scan.Alias, strings.Join(applies, "\n  "), scan.Alias, opts.MaxRecursion))
		}
		cte := fmt.Sprintf(
			"%s (resource_id, item_json, depth) AS (\n  SELECT r.id, anchor.value, 0\n  FROM OPENJSON(%s, '$.%s') AS anchor\n  UNION ALL\n  %s\n)",
			scan.Alias, scan.ParentSource, scan.RepeatAnchor, strings.Join(recursiveArms, "\n  UNION ALL\n  "))
		out = append(out, cte)
	}
	return out
}

// uniqueScans collects every ScanLevel across the plan tree exactly once, in
// the order aliases were allocated (parents always precede their children,
// since Build assigns aliases top-down before recursing).
func uniqueScans(node *planner.PlanNode) []planner.ScanLevel {
	seen := map[string]bool{}
	var out []planner.ScanLevel
	var walk func(n *planner.PlanNode)
	walk = func(n *planner.PlanNode) {
		for _, lvl := range n.Scans {
			if !seen[lvl.Alias] {
				seen[lvl.Alias] = true
				out = append(out, lvl)
			}
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(node)
	return out
}

func applyScans(base transpile.Context, scans []planner.ScanLevel) transpile.Context {
	ctx := base
	for _, lvl := range scans {
		switch lvl.Kind {
		case planner.ScanForEach, planner.ScanForEachOrNull:
			ctx = ctx.WithForEach(lvl.Alias, lvl.ParentSource, "$."+planner.OpenJSONPath(lvl))
		case planner.ScanRepeat:
			ctx = ctx.WithIteration(planner.ItemExpr(lvl))
			ctx.CurrentForEachAlias = lvl.Alias
		}
	}
	return ctx
}

func collectColumns(node *planner.PlanNode, base transpile.Context) ([]string, error) {
	ctx := applyScans(base, node.Scans)
	var out []string
	for _, c := range node.Columns {
		sql, err := ColumnSQL(c, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, sql)
	}
	for _, child := range node.Children {
		childCols, err := collectColumns(child, base)
		if err != nil {
			return nil, err
		}
		out = append(out, childCols...)
	}
	return out, nil
}

func collectWheres(node *planner.PlanNode, base transpile.Context) ([]string, error) {
	ctx := applyScans(base, node.Scans)
	var out []string
	for _, w := range node.Where {
		clause, err := lowerWherePredicate(w.Path, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, clause)
	}
	for _, child := range node.Children {
		childWheres, err := collectWheres(child, base)
		if err != nil {
			return nil, err
		}
		out = append(out, childWheres...)
	}
	return out, nil
}
