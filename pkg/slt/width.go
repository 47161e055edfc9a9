package slt

import "github.com/hdlsim/celoxgo/pkg/model"

// localWidth computes an expression's self-determined width: its own
// intrinsic width, ignoring any enclosing context. Used both as the
// "local operand width" input to the context rule (spec.md 4.1's
// max(parent_width, local_max_operand_width)) and directly for
// self-determined positions (concatenation items, shift amounts).
func localWidth(e model.Expr) int {
	switch v := e.(type) {
	case model.VarRefExpr:
		return v.Access.Width()
	case *model.ConstExpr:
		if v.HasWidth {
			return v.Width
		}
		return 32
	case *model.BinaryExpr:
		if v.Op.IsComparison() {
			return 1
		}
		if v.Op.IsShift() {
			return localWidth(v.Lhs)
		}
		return maxInt(localWidth(v.Lhs), localWidth(v.Rhs))
	case *model.UnaryExpr:
		if v.Op.IsReduction() {
			return 1
		}
		return localWidth(v.Operand)
	case *model.SliceExpr:
		return v.Access.Width()
	case *model.ConcatExpr:
		w := 0
		for _, p := range v.Parts {
			w += p.Width
		}
		return w
	case *model.CondExpr:
		return maxInt(localWidth(v.Then), localWidth(v.Else))
	case *model.CastExpr:
		return v.Target.Width
	default:
		panic("slt: unknown expr type in localWidth")
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// build lowers e to an SLT node under the given context width ctxWidth,
// applying the rules in spec.md 4.1 and returning the interned NodeId.
// This must run before any LogicPath is scheduled or lowered to SIR — the
// SLT always encodes final, context-extended widths.
func (b *Builder) build(e model.Expr, ctxWidth int) NodeId {
	switch v := e.(type) {
	case model.VarRefExpr:
		idx := make([]DynIndex, len(v.Indices))
		for i, ix := range v.Indices {
			idx[i] = DynIndex{Index: b.build(ix.Index, localWidth(ix.Index)), Stride: ix.Stride}
		}
		return b.arena.Intern(&InputNode{Variable: v.Name, Access: v.Access, Indices: idx})

	case *model.ConstExpr:
		w := ctxWidth
		if v.HasWidth {
			w = v.Width
		} else {
			w = 32
		}
		return b.arena.Intern(&ConstantNode{Value: v.Value, Wid: w, Signed: v.Signed})

	case *model.BinaryExpr:
		return b.buildBinary(v, ctxWidth)

	case *model.UnaryExpr:
		return b.buildUnary(v, ctxWidth)

	case *model.SliceExpr:
		inner := b.build(v.Inner, localWidth(v.Inner))
		return b.arena.Intern(&SliceNode{Expr: inner, Access: v.Access})

	case *model.ConcatExpr:
		parts := make([]ConcatPart, len(v.Parts))
		for i, p := range v.Parts {
			parts[i] = ConcatPart{Node: b.build(p.Value, p.Width), Width: p.Width}
		}
		return b.arena.Intern(&ConcatNode{Parts: parts})

	case *model.CondExpr:
		resultWidth := maxInt(ctxWidth, maxInt(localWidth(v.Then), localWidth(v.Else)))
		cond := b.build(v.Cond, 1)
		then := b.build(v.Then, resultWidth)
		els := b.build(v.Else, resultWidth)
		return b.arena.Intern(&MuxNode{Cond: cond, Then: then, Else: els, Wid: resultWidth})

	case *model.CastExpr:
		inner := b.build(v.Inner, v.Target.Width)
		// A cast that doesn't change the bit pattern (same width) collapses
		// to its inner node; otherwise it is a truncating/extending slice.
		if localWidth(v.Inner) == v.Target.Width {
			return inner
		}
		if v.Target.Width < localWidth(v.Inner) {
			return b.arena.Intern(&SliceNode{Expr: inner, Access: model.BitAccess{Lsb: 0, Msb: v.Target.Width}})
		}
		return b.signOrZeroExtend(inner, localWidth(v.Inner), v.Target.Width, v.Target.Signed)

	default:
		panic("slt: unknown expr type in build")
	}
}

func (b *Builder) buildBinary(v *model.BinaryExpr, ctxWidth int) NodeId {
	switch {
	case v.Op.IsComparison():
		opWidth := maxInt(localWidth(v.Lhs), localWidth(v.Rhs))
		lhs := b.build(v.Lhs, opWidth)
		rhs := b.build(v.Rhs, opWidth)
		return b.arena.Intern(&BinaryNode{Op: v.Op, Lhs: lhs, Rhs: rhs, Wid: 1})

	case v.Op.IsShift():
		lhsWidth := localWidth(v.Lhs)
		lhs := b.build(v.Lhs, lhsWidth)
		rhs := b.build(v.Rhs, localWidth(v.Rhs)) // shift amount is self-determined
		return b.arena.Intern(&BinaryNode{Op: v.Op, Lhs: lhs, Rhs: rhs, Wid: lhsWidth})

	default:
		resultWidth := maxInt(ctxWidth, maxInt(localWidth(v.Lhs), localWidth(v.Rhs)))
		lhs := b.build(v.Lhs, resultWidth)
		rhs := b.build(v.Rhs, resultWidth)
		return b.arena.Intern(&BinaryNode{Op: v.Op, Lhs: lhs, Rhs: rhs, Wid: resultWidth})
	}
}

func (b *Builder) buildUnary(v *model.UnaryExpr, ctxWidth int) NodeId {
	if v.Op.IsReduction() {
		operand := b.build(v.Operand, localWidth(v.Operand))
		return b.arena.Intern(&UnaryNode{Op: v.Op, Operand: operand, Wid: 1})
	}
	resultWidth := maxInt(ctxWidth, localWidth(v.Operand))
	operand := b.build(v.Operand, resultWidth)
	return b.arena.Intern(&UnaryNode{Op: v.Op, Operand: operand, Wid: resultWidth})
}

// signOrZeroExtend widens a from-width value to a wider to-width value by
// concatenating replicated sign bits (signed) or zero bits (unsigned).
func (b *Builder) signOrZeroExtend(inner NodeId, fromWidth, toWidth int, signed bool) NodeId {
	padWidth := toWidth - fromWidth
	var pad NodeId
	if signed {
		signBit := b.arena.Intern(&SliceNode{Expr: inner, Access: model.BitAccess{Lsb: fromWidth - 1, Msb: fromWidth}})
		// Replicate the sign bit padWidth times via a reduction-free trick:
		// negating the 1-bit sign at padWidth width gives all zeros or all ones.
		neg := b.arena.Intern(&UnaryNode{Op: model.OpMinus, Operand: signBit, Wid: padWidth})
		pad = neg
	} else {
		pad = b.arena.Intern(&ConstantNode{Value: bigZero, Wid: padWidth})
	}
	return b.arena.Intern(&ConcatNode{Parts: []ConcatPart{
		{Node: pad, Width: padWidth},
		{Node: inner, Width: fromWidth},
	}})
}
