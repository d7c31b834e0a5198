package fhirpath

import (
	"fmt"
	"strings"
)

// Render renders a parsed tree back to a canonical FHIRPath expression. It is
// used by tests to assert round-trip parse stability (spec property #2: any
// expression that lowers successfully reparses to an equivalent tree) and by
// callers that want to echo a normalized form of a FHIRPath expression.
func Render(n Node) string {
	switch v := n.(type) {
	case Identifier:
		if v.Delimited {
			return "`" + v.Name + "`"
		}
		return v.Name
	case ThisInvocation:
		return "$this"
	case IndexInvocation:
		return "$index"
	case TotalInvocation:
		return "$total"
	case EnvVariable:
		return "%" + v.Name
	case BoolLiteral:
		if v.Value {
			return "true"
		}
		return "false"
	case NullLiteral:
		return "null"
	case StringLiteral:
		return "'" + strings.ReplaceAll(v.Value, "'", "''") + "'"
	case NumberLiteral:
		return v.Text
	case LongNumberLiteral:
		return v.Text + "L"
	case DateLiteral:
		return v.Text
	case DateTimeLiteral:
		return v.Text
	case TimeLiteral:
		return v.Text
	case FunctionInvocation:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = Render(a)
		}
		return fmt.Sprintf("%s(%s)", v.Name, strings.Join(args, ", "))
	case Invocation:
		return Render(v.Base) + "." + Render(v.Member)
	case IndexerExpr:
		return fmt.Sprintf("%s[%s]", Render(v.Base), Render(v.Index))
	case UnaryExpr:
		return v.Op + Render(v.Operand)
	case BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", Render(v.Left), v.Op, Render(v.Right))
	case TypeExpr:
		return fmt.Sprintf("(%s %s %s)", Render(v.Expr), v.Op, v.TypeName)
	default:
		return fmt.Sprintf("<%T>", n)
	}
}
