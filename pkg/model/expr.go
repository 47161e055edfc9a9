package model

import "math/big"

// BinOp enumerates the binary operators the front-end can produce.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr  // logical
	OpAShr // arithmetic
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpCaseEq // ===
	OpCaseNe // !==
	OpLogAnd
	OpLogOr
)

// IsComparison reports whether op is a width-1-yielding comparison.
func (op BinOp) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpCaseEq, OpCaseNe, OpLogAnd, OpLogOr:
		return true
	default:
		return false
	}
}

// IsShift reports whether op is a shift operator (self-determined RHS,
// LHS-width result per spec.md 4.1).
func (op BinOp) IsShift() bool {
	return op == OpShl || op == OpShr || op == OpAShr
}

func (op BinOp) String() string {
	names := map[BinOp]string{
		OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%", OpPow: "**",
		OpAnd: "&", OpOr: "|", OpXor: "^", OpShl: "<<", OpShr: ">>", OpAShr: ">>>",
		OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
		OpCaseEq: "===", OpCaseNe: "!==", OpLogAnd: "&&", OpLogOr: "||",
	}
	if s, ok := names[op]; ok {
		return s
	}
	return "?"
}

// UnOp enumerates the unary operators the front-end can produce.
type UnOp int

const (
	OpMinus UnOp = iota
	OpPlus
	OpBitNot
	OpLogNot
	OpRedAnd
	OpRedOr
	OpRedXor
	OpRedNand
	OpRedNor
	OpRedXnor
)

// IsReduction reports whether op is one of the width-1-yielding reduction
// operators.
func (op UnOp) IsReduction() bool {
	switch op {
	case OpRedAnd, OpRedOr, OpRedXor, OpRedNand, OpRedNor, OpRedXnor:
		return true
	default:
		return false
	}
}

func (op UnOp) String() string {
	names := map[UnOp]string{
		OpMinus: "-", OpPlus: "+", OpBitNot: "~", OpLogNot: "!",
		OpRedAnd: "&", OpRedOr: "|", OpRedXor: "^",
		OpRedNand: "~&", OpRedNor: "~|", OpRedXnor: "~^",
	}
	if s, ok := names[op]; ok {
		return s
	}
	return "?"
}

// Type is a front-end-resolved type: a bit width plus signedness and
// four-state-ness. Constant-folding in the front-end has already reduced
// everything to this shape by the time the core sees it (spec.md 6).
type Type struct {
	Width     int
	Signed    bool
	FourState bool
}

// Expr is the sealed interface for front-end expression nodes, the input
// to the SLT builder (pkg/slt). Mirrors the ast.Expression marker-method
// pattern used by the teacher's front-end AST.
type Expr interface {
	exprNode()
}

// IndexExpr is one dynamic-index term: index * stride, added to a
// variable's static base offset.
type IndexExpr struct {
	Index  Expr
	Stride int
}

// VarRefExpr reads (a range of) a variable, optionally with dynamic
// indices added to the static lsb.
type VarRefExpr struct {
	Name    string
	Access  BitAccess // static bit range; for a plain reference this is [0,width)
	Indices []IndexExpr
}

func (VarRefExpr) exprNode() {}

// ConstExpr is a literal. HasWidth distinguishes "unsized" literals
// (default width 32 per spec.md 4.1) from explicitly-sized ones.
type ConstExpr struct {
	Value    *big.Int
	Width    int
	HasWidth bool
	Signed   bool
}

func (*ConstExpr) exprNode() {}

// BinaryExpr is a binary operator applied to two sub-expressions.
type BinaryExpr struct {
	Op       BinOp
	Lhs, Rhs Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr is a unary operator applied to one sub-expression.
type UnaryExpr struct {
	Op      UnOp
	Operand Expr
}

func (*UnaryExpr) exprNode() {}

// SliceExpr statically slices a sub-expression's result.
type SliceExpr struct {
	Inner  Expr
	Access BitAccess
}

func (*SliceExpr) exprNode() {}

// ConcatPart is one self-determined-width part of a ConcatExpr; parts are
// ordered most-significant first, matching HDL concatenation syntax.
type ConcatPart struct {
	Value Expr
	Width int
}

// ConcatExpr concatenates self-determined-width parts, MSB first.
type ConcatExpr struct {
	Parts []ConcatPart
}

func (*ConcatExpr) exprNode() {}

// CondExpr is a ternary/mux source expression.
type CondExpr struct {
	Cond, Then, Else Expr
}

func (*CondExpr) exprNode() {}

// CastExpr casts Inner to Target, dropping parent context width (spec.md
// 4.1: "cast as T drops parent context and takes the target type's width").
type CastExpr struct {
	Target Type
	Inner  Expr
}

func (*CastExpr) exprNode() {}
