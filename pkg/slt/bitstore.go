package slt

import "github.com/hdlsim/celoxgo/pkg/model"

// bitRange is one entry of a VarBitStore: a sub-range of the variable and
// the node currently producing its value, with the node's own bit 0
// aligned to the range's Lsb (i.e. the node's output *is* exactly that
// sub-range, not the whole variable).
type bitRange struct {
	access model.BitAccess
	expr   NodeId
}

// VarBitStore is the per-variable interval map described in spec.md 4.1's
// "Symbolic bit-store": it tracks, for every bit of the variable, which
// SLT node currently produces it, splitting at new assignment boundaries
// and synthesizing Mux nodes for conditional assignments.
type VarBitStore struct {
	width  int
	ranges []bitRange // sorted by access.Lsb, covering [0,width) with no gaps
}

// newVarBitStore creates a store for a width-bit variable, initially all
// driven by undriven (the builder passes a zero constant of the variable's
// width as the value of an as-yet-unassigned bit).
func newVarBitStore(width int, undriven NodeId) *VarBitStore {
	return &VarBitStore{
		width:  width,
		ranges: []bitRange{{access: model.BitAccess{Lsb: 0, Msb: width}, expr: undriven}},
	}
}

// splitAt ensures a range boundary exists exactly at bit position x
// (0 < x < width), slicing whichever range currently straddles it.
func (s *VarBitStore) splitAt(arena *Arena, x int) {
	if x <= 0 || x >= s.width {
		return
	}
	for i, r := range s.ranges {
		if r.access.Lsb < x && x < r.access.Msb {
			lowerLocal := model.BitAccess{Lsb: 0, Msb: x - r.access.Lsb}
			upperLocal := model.BitAccess{Lsb: x - r.access.Lsb, Msb: r.access.Msb - r.access.Lsb}
			lowerExpr := arena.Intern(&SliceNode{Expr: r.expr, Access: lowerLocal})
			upperExpr := arena.Intern(&SliceNode{Expr: r.expr, Access: upperLocal})
			newRanges := make([]bitRange, 0, len(s.ranges)+1)
			newRanges = append(newRanges, s.ranges[:i]...)
			newRanges = append(newRanges,
				bitRange{access: model.BitAccess{Lsb: r.access.Lsb, Msb: x}, expr: lowerExpr},
				bitRange{access: model.BitAccess{Lsb: x, Msb: r.access.Msb}, expr: upperExpr},
			)
			newRanges = append(newRanges, s.ranges[i+1:]...)
			s.ranges = newRanges
			return
		}
	}
}

// Assign records that expr (whose own bit 0 is access.Lsb) drives access,
// gated by cond (nil means unconditional — the common always_comb case).
// When cond is non-nil, every covered sub-range's new value is
// Mux(cond, <new slice>, <previous value for that sub-range>), which is
// exactly how an if/case branch leaves the variable's value unchanged on
// the branch not taken.
func (s *VarBitStore) Assign(arena *Arena, access model.BitAccess, expr NodeId, cond *NodeId) {
	s.splitAt(arena, access.Lsb)
	s.splitAt(arena, access.Msb)

	for i, r := range s.ranges {
		if r.access.Lsb < access.Lsb || r.access.Msb > access.Msb {
			continue
		}
		var sub NodeId
		if r.access.Lsb == access.Lsb && r.access.Msb == access.Msb {
			sub = expr
		} else {
			sub = arena.Intern(&SliceNode{Expr: expr, Access: model.BitAccess{
				Lsb: r.access.Lsb - access.Lsb,
				Msb: r.access.Msb - access.Lsb,
			}})
		}
		if cond != nil {
			sub = arena.Intern(&MuxNode{Cond: *cond, Then: sub, Else: r.expr, Wid: r.access.Width()})
		}
		s.ranges[i].expr = sub
	}
}

// Snapshot returns the current (access, expr) pairs in Lsb order — the
// basis for the block's final LogicPath set at block end (spec.md 4.1).
func (s *VarBitStore) Snapshot() []bitRange {
	out := make([]bitRange, len(s.ranges))
	copy(out, s.ranges)
	return out
}
