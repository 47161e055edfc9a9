package slt

import "github.com/hdlsim/celoxgo/pkg/model"

// VarAtom names a bit-range of a variable, used pre-flattening (before
// module instances exist) as the node identity in LogicPath.
type VarAtom struct {
	Var    string
	Access model.BitAccess
}

// LogicPath is the canonical atomic combinational assignment: spec.md 3's
// "(target: VarAtom, sources: set of VarAtom, expr: NodeId)".
type LogicPath struct {
	Target  VarAtom
	Sources []VarAtom
	Expr    NodeId
}

// SeqAssign is one atomic assignment inside a sequential (always_ff) block.
type SeqAssign struct {
	Target  VarAtom
	Sources []VarAtom
	Expr    NodeId
}

// SeqLogic is one clocked (and optionally reset) sequential block's
// lowered assignments.
type SeqLogic struct {
	Clock   model.ClockSpec
	Reset   *model.ResetSpec
	Assigns []SeqAssign
}

// GlueBlock represents one child instance's port connections, lowered the
// same way a combinational assignment is (inputs are expressions over the
// parent's variables; outputs are plain aliases into the child's ports).
type GlueBlock struct {
	ChildName string
	Paths     []LogicPath
}

// SimModule is the per-module output of the SLT builder (spec.md 3).
type SimModule struct {
	Name        string
	Arena       *Arena
	CombBlocks  []LogicPath
	SeqBlocks   []SeqLogic
	GlueBlocks  []GlueBlock
	// Boundaries is the per-variable set of bit positions at which some
	// assignment or port connection creates a split, seeded with {0,width}
	// and grown by the flattener (spec.md 4.2 step 2).
	Boundaries map[string]map[int]bool
}

// sourcesOf walks expr and collects every InputNode's (variable, access)
// pair reached from it, deduplicated — the sources(p) set in spec.md 3
// and Testable Property 4.
func sourcesOf(arena *Arena, expr NodeId) []VarAtom {
	seen := make(map[VarAtom]bool)
	var out []VarAtom
	var walk func(id NodeId)
	walk = func(id NodeId) {
		switch n := arena.Get(id).(type) {
		case *InputNode:
			a := VarAtom{Var: n.Variable, Access: n.Access}
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
			for _, ix := range n.Indices {
				walk(ix.Index)
			}
		case *ConstantNode:
		case *BinaryNode:
			walk(n.Lhs)
			walk(n.Rhs)
		case *UnaryNode:
			walk(n.Operand)
		case *SliceNode:
			walk(n.Expr)
		case *ConcatNode:
			for _, p := range n.Parts {
				walk(p.Node)
			}
		case *MuxNode:
			walk(n.Cond)
			walk(n.Then)
			walk(n.Else)
		}
	}
	walk(expr)
	return out
}
