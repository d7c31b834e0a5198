// Package emit assembles the T-SQL text for a compiled plan: column
// expressions, WHERE predicates, the CROSS/OUTER APPLY and recursive-CTE
// chain a plan's scan levels require, and the final UNION ALL across plan
// variants (spec.md §6).
package emit

import "github.com/aehrc/sof-mssql/viewdef"

// fhirToSQLType is the canonical FHIR primitive type to MS SQL Server type
// mapping (spec.md §6, the "conservative" matrix chosen to resolve the design
// note's two-incompatible-matrices ambiguity — see DESIGN.md). A column's
// "mssql/type" tag always wins over this table; an unrecognised or absent
// FHIR type falls back to NVARCHAR(MAX).
var fhirToSQLType = map[string]string{
	"id":           "VARCHAR(64)",
	"boolean":      "BIT",
	"integer":      "INT",
	"positiveInt":  "INT",
	"unsignedInt":  "INT",
	"integer64":    "BIGINT",
	"uuid":         "VARCHAR(100)",
	"oid":          "VARCHAR(255)",
	"decimal":      "VARCHAR(MAX)",
	"date":         "VARCHAR(10)",
	"dateTime":     "VARCHAR(50)",
	"instant":      "VARCHAR(50)",
	"time":         "VARCHAR(20)",
	"string":       "NVARCHAR(MAX)",
	"markdown":     "NVARCHAR(MAX)",
	"code":         "NVARCHAR(MAX)",
	"uri":          "NVARCHAR(MAX)",
	"url":          "NVARCHAR(MAX)",
	"canonical":    "NVARCHAR(MAX)",
	"base64Binary": "VARBINARY(MAX)",
}

// SQLType resolves a column's target SQL type: an explicit "mssql/type" tag
// overrides the FHIR-type table, which itself falls back to NVARCHAR(MAX).
func SQLType(c viewdef.Column) string {
	if override, ok := c.MSSQLTypeOverride(); ok {
		return override
	}
	if t, ok := fhirToSQLType[c.Type]; ok {
		return t
	}
	return "NVARCHAR(MAX)"
}
