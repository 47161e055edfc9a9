package flatten

import (
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/slt"
)

// atomizeCombPath splits lp's target at every boundary recorded for that
// variable (spec.md 4.2 step 4) and resolves both the target and every
// source VarAtom to an AbsoluteAddr via resolve. A target range that spans
// more than one atomic sub-range is sliced with a SliceNode exactly the
// way pkg/slt.VarBitStore.splitAt already slices combinational values,
// since the same "sub-range of a wider expression" representation applies.
func atomizeCombPath(sim *slt.SimModule, instance model.InstanceId, lp slt.LogicPath, resolve func(string) model.AbsoluteAddr) []AtomicPath {
	bounds := boundariesWithin(sim, lp.Target.Var, lp.Target.Access)
	target := resolve(lp.Target.Var)
	var sources []model.AbsoluteAddr
	for _, s := range lp.Sources {
		sources = append(sources, resolve(s.Var))
	}

	var out []AtomicPath
	for i := 0; i+1 < len(bounds); i++ {
		lsb, msb := bounds[i], bounds[i+1]
		access := model.BitAccess{Lsb: lsb, Msb: msb}
		expr := lp.Expr
		if lsb != lp.Target.Access.Lsb || msb != lp.Target.Access.Msb {
			expr = sim.Arena.Intern(&slt.SliceNode{Expr: lp.Expr, Access: model.BitAccess{
				Lsb: lsb - lp.Target.Access.Lsb,
				Msb: msb - lp.Target.Access.Lsb,
			}})
		}
		out = append(out, AtomicPath{
			Target:   target,
			Access:   access,
			Sources:  sources,
			Arena:    sim.Arena,
			Expr:     expr,
			Instance: instance,
		})
	}
	return out
}

// atomizeSeqLogic atomizes every assignment of a sequential block the same
// way atomizeCombPath does for combinational paths.
func atomizeSeqLogic(sim *slt.SimModule, id model.InstanceId, seq slt.SeqLogic, resolve func(string) model.AbsoluteAddr) AtomicSeqLogic {
	out := AtomicSeqLogic{Instance: id, Clock: seq.Clock, Reset: seq.Reset}
	for _, a := range seq.Assigns {
		bounds := boundariesWithin(sim, a.Target.Var, a.Target.Access)
		target := resolve(a.Target.Var)
		var sources []model.AbsoluteAddr
		for _, s := range a.Sources {
			sources = append(sources, resolve(s.Var))
		}
		for i := 0; i+1 < len(bounds); i++ {
			lsb, msb := bounds[i], bounds[i+1]
			access := model.BitAccess{Lsb: lsb, Msb: msb}
			expr := a.Expr
			if lsb != a.Target.Access.Lsb || msb != a.Target.Access.Msb {
				expr = sim.Arena.Intern(&slt.SliceNode{Expr: a.Expr, Access: model.BitAccess{
					Lsb: lsb - a.Target.Access.Lsb,
					Msb: msb - a.Target.Access.Lsb,
				}})
			}
			out.Assigns = append(out.Assigns, AtomicSeqAssign{
				Target:   target,
				Access:   access,
				Sources:  sources,
				Arena:    sim.Arena,
				Expr:     expr,
				Instance: id,
			})
		}
	}
	return out
}

// boundariesWithin returns the sorted boundary positions of varName that
// fall within access, always including access's own endpoints.
func boundariesWithin(sim *slt.SimModule, varName string, access model.BitAccess) []int {
	all := sim.Boundaries[varName]
	set := map[int]bool{access.Lsb: true, access.Msb: true}
	for k := range all {
		if k >= access.Lsb && k <= access.Msb {
			set[k] = true
		}
	}
	return sortedKeys(set)
}
