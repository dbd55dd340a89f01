// Package ast holds the expression tree types produced by
// internal/logic/parse and consumed by internal/logic/typecheck and
// internal/logic/eval.
package ast

import "github.com/nerrad567/drmemd/internal/value"

// Expr is any node in a logic expression tree.
type Expr interface {
	exprNode()
}

// Lit is a literal value: true/false, an integer, a finite float, a
// double-quoted string, or a color (#rrggbb/#rrggbbaa/named).
type Lit struct {
	Value value.Value
}

// Ref is a `{ident}` reference to a local name bound in a logic
// block's inputs, outputs, or defs map.
type Ref struct {
	Name string
}

// Builtin is a `{zone:field}` reference to a clock or solar
// pseudo-device field, e.g. `{utc:hour}` or `{solar:altitude}`.
type Builtin struct {
	Zone  string
	Field string
}

// UnaryOp enumerates the single supported prefix operator.
type UnaryOp int

const (
	OpNot UnaryOp = iota
)

// Unary is a prefix-operator expression.
type Unary struct {
	Op UnaryOp
	X  Expr
}

// BinaryOp enumerates the binary operators, spanning boolean,
// comparison, and arithmetic families.
type BinaryOp int

const (
	OpAnd BinaryOp = iota
	OpOr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
)

// Binary is a two-operand expression.
type Binary struct {
	Op   BinaryOp
	L, R Expr
}

// If is `if Cond then Then [else Else] end`. Else is nil for the
// else-less form, which yields no output update when Cond is false.
type If struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (Lit) exprNode()    {}
func (Ref) exprNode()    {}
func (Builtin) exprNode() {}
func (Unary) exprNode()  {}
func (Binary) exprNode() {}
func (If) exprNode()     {}

// Stmt is one `expr -> {output}` declaration: Output names a local
// name that must appear in the block's outputs map.
type Stmt struct {
	Output string
	Expr   Expr
}
