// Package slt builds the Simulation Logic Tree: a per-module, hash-consed
// expression graph lowered from the front-end's model.Expr/model.Stmt IR,
// with context-width inference and a symbolic bit-store already applied
// (spec.md 4.1). It is the direct analog of the teacher's AST-to-IR
// expression lowering in pkg/semantic/analyzer.go, generalized from a
// tree-walking interpreter's needs to a hash-consed DAG's.
package slt

import (
	"fmt"
	"math/big"

	"github.com/hdlsim/celoxgo/pkg/model"
)

// NodeId indexes a node within one module's Arena.
type NodeId int

// Node is the sealed interface for SLT expression nodes. Each variant
// carries its own final (context-extended) Width, computed once during
// construction, per spec.md 4.1's "the SLT encodes the final
// context-extended widths."
type Node interface {
	sltNode()
	Width() int
}

// DynIndex is one dynamic-index term of an InputNode: index * stride,
// added to the variable's static base offset.
type DynIndex struct {
	Index  NodeId
	Stride int
}

// InputNode reads a (possibly dynamically indexed) range of a variable.
type InputNode struct {
	Variable string
	Access   model.BitAccess
	Indices  []DynIndex
}

func (*InputNode) sltNode()     {}
func (n *InputNode) Width() int { return n.Access.Width() }

// ConstantNode is a literal value with a final width and signedness.
type ConstantNode struct {
	Value  *big.Int
	Wid    int
	Signed bool
}

func (*ConstantNode) sltNode()     {}
func (n *ConstantNode) Width() int { return n.Wid }

// BinaryNode applies op to two already-width-resolved operands.
type BinaryNode struct {
	Op       model.BinOp
	Lhs, Rhs NodeId
	Wid      int
	Signed   bool
}

func (*BinaryNode) sltNode()     {}
func (n *BinaryNode) Width() int { return n.Wid }

// UnaryNode applies op to one already-width-resolved operand.
type UnaryNode struct {
	Op      model.UnOp
	Operand NodeId
	Wid     int
	Signed  bool
}

func (*UnaryNode) sltNode()     {}
func (n *UnaryNode) Width() int { return n.Wid }

// SliceNode extracts Access (relative to Expr's own bit-0-based output)
// from Expr's result.
type SliceNode struct {
	Expr   NodeId
	Access model.BitAccess
}

func (*SliceNode) sltNode()     {}
func (n *SliceNode) Width() int { return n.Access.Width() }

// ConcatPart is one self-determined-width part of a ConcatNode.
type ConcatPart struct {
	Node  NodeId
	Width int
}

// ConcatNode concatenates parts MSB-first (Parts[0] is most significant).
type ConcatNode struct {
	Parts []ConcatPart
}

func (*ConcatNode) sltNode() {}
func (n *ConcatNode) Width() int {
	w := 0
	for _, p := range n.Parts {
		w += p.Width
	}
	return w
}

// MuxNode selects Then when Cond is true, Else otherwise. Lowering of this
// node (branch-based in two-state mode, select-pattern in four-state mode)
// happens in pkg/sir per spec.md 4.1/4.4's Mux semantics.
type MuxNode struct {
	Cond, Then, Else NodeId
	Wid              int
}

func (*MuxNode) sltNode()     {}
func (n *MuxNode) Width() int { return n.Wid }

func keyOf(n Node) string {
	switch v := n.(type) {
	case *InputNode:
		return fmt.Sprintf("in:%s:%d:%d:%v", v.Variable, v.Access.Lsb, v.Access.Msb, v.Indices)
	case *ConstantNode:
		return fmt.Sprintf("c:%s:%d:%v", v.Value.String(), v.Wid, v.Signed)
	case *BinaryNode:
		return fmt.Sprintf("b:%d:%d:%d:%d:%v", v.Op, v.Lhs, v.Rhs, v.Wid, v.Signed)
	case *UnaryNode:
		return fmt.Sprintf("u:%d:%d:%d:%v", v.Op, v.Operand, v.Wid, v.Signed)
	case *SliceNode:
		return fmt.Sprintf("sl:%d:%d:%d", v.Expr, v.Access.Lsb, v.Access.Msb)
	case *ConcatNode:
		return fmt.Sprintf("cc:%v", v.Parts)
	case *MuxNode:
		return fmt.Sprintf("mx:%d:%d:%d:%d", v.Cond, v.Then, v.Else, v.Wid)
	default:
		panic(fmt.Sprintf("slt: unknown node type %T", n))
	}
}
