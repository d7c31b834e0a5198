package fhirpath

// Node is any node in a parsed FHIRPath expression tree.
type Node interface {
	fhirpathNode()
}

// Identifier is a plain or delimited member name, e.g. `name` or `` `class` ``.
type Identifier struct {
	Name      string
	Delimited bool
}

// ThisInvocation is the `$this` special identifier.
type ThisInvocation struct{}

// IndexInvocation is the `$index` special identifier, valid inside `where`/`select`.
type IndexInvocation struct{}

// TotalInvocation is the `$total` special identifier, valid inside `aggregate`.
type TotalInvocation struct{}

// EnvVariable is a `%name` reference to a ViewDefinition constant (or one of
// the FHIRPath environment variables); this repo only resolves ViewDefinition
// constants.
type EnvVariable struct{ Name string }

// BoolLiteral is `true` or `false`.
type BoolLiteral struct{ Value bool }

// NullLiteral is the empty collection literal `{}`-equivalent `null`.
type NullLiteral struct{}

// StringLiteral is a single-quoted string with escapes already decoded.
type StringLiteral struct{ Value string }

// NumberLiteral is a decimal literal, kept as source text to avoid float
// rounding before lowering.
type NumberLiteral struct{ Text string }

// LongNumberLiteral is an integer literal with a trailing `L` suffix.
type LongNumberLiteral struct{ Text string }

// DateLiteral, DateTimeLiteral, TimeLiteral hold the `@`-prefixed source text
// verbatim (including the `@`/`@T` marker); lowering strips the marker.
type DateLiteral struct{ Text string }
type DateTimeLiteral struct{ Text string }
type TimeLiteral struct{ Text string }

// FunctionInvocation is a call such as `where(active = true)` or `exists()`.
type FunctionInvocation struct {
	Name string
	Args []Node
}

// Invocation is member access: Base.Member, where Member is an Identifier,
// FunctionInvocation, ThisInvocation, IndexInvocation, or TotalInvocation.
type Invocation struct {
	Base   Node
	Member Node
}

// IndexerExpr is `Base[Index]`.
type IndexerExpr struct {
	Base  Node
	Index Node
}

// UnaryExpr is polarity: `+x` or `-x`.
type UnaryExpr struct {
	Op      string
	Operand Node
}

// BinaryExpr covers multiplicative, additive, union, inequality, equality,
// membership, and, or/xor, and implies operators. Op is the literal FHIRPath
// operator spelling (e.g. "+", "div", "~", "in", "implies").
type BinaryExpr struct {
	Op          string
	Left, Right Node
}

// TypeExpr is `Expr is Type` or `Expr as Type`.
type TypeExpr struct {
	Op       string // "is" or "as"
	Expr     Node
	TypeName string
}

func (Identifier) fhirpathNode()          {}
func (ThisInvocation) fhirpathNode()      {}
func (IndexInvocation) fhirpathNode()     {}
func (TotalInvocation) fhirpathNode()     {}
func (EnvVariable) fhirpathNode()         {}
func (BoolLiteral) fhirpathNode()         {}
func (NullLiteral) fhirpathNode()         {}
func (StringLiteral) fhirpathNode()       {}
func (NumberLiteral) fhirpathNode()       {}
func (LongNumberLiteral) fhirpathNode()   {}
func (DateLiteral) fhirpathNode()         {}
func (DateTimeLiteral) fhirpathNode()     {}
func (TimeLiteral) fhirpathNode()         {}
func (FunctionInvocation) fhirpathNode()  {}
func (Invocation) fhirpathNode()          {}
func (IndexerExpr) fhirpathNode()         {}
func (UnaryExpr) fhirpathNode()           {}
func (BinaryExpr) fhirpathNode()          {}
func (TypeExpr) fhirpathNode()            {}
