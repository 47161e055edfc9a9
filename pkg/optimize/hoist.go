package optimize

import "github.com/hdlsim/celoxgo/pkg/sir"

// HoistCommonBranchLoads implements spec.md 4.6 pass 1: when a Branch's
// two successor blocks both begin with an identical static Load, hoist a
// single copy into the predecessor and rewrite both successors' uses of
// their own load's destination register to the hoisted one.
type HoistCommonBranchLoads struct{}

func (*HoistCommonBranchLoads) Name() string { return "hoist_common_branch_loads" }

func (p *HoistCommonBranchLoads) Run(u *sir.ExecutionUnit) (bool, error) {
	changed := false
	for _, blk := range u.Blocks {
		if blk.Terminator.Kind != sir.TermBranch {
			continue
		}
		t, ok1 := u.Blocks[blk.Terminator.TrueBlock]
		f, ok2 := u.Blocks[blk.Terminator.FalseBlock]
		if !ok1 || !ok2 || len(t.Instructions) == 0 || len(f.Instructions) == 0 {
			continue
		}
		ti, fi := t.Instructions[0], f.Instructions[0]
		if !sameLoad(ti, fi) {
			continue
		}

		hoisted := u.NewReg(u.RegisterMap[ti.Dst])
		blk.Instructions = append(blk.Instructions, withDst(ti, hoisted))

		replaceReg(u, t, ti.Dst, hoisted)
		replaceReg(u, f, fi.Dst, hoisted)
		t.Instructions = t.Instructions[1:]
		f.Instructions = f.Instructions[1:]
		changed = true
	}
	return changed, nil
}

func sameLoad(a, b sir.Instruction) bool {
	return a.Op == sir.OpLoad && b.Op == sir.OpLoad &&
		a.Addr == b.Addr && a.Offset == b.Offset && a.Width == b.Width
}

// withDst returns a copy of ins with Dst set to dst (helper so the
// hoisted load lands in a fresh register rather than reusing either
// branch's original destination).
func withDst(ins sir.Instruction, dst sir.RegisterId) sir.Instruction {
	ins.Dst = dst
	return ins
}

// replaceReg rewrites every use of `from` within blk's remaining
// instructions and terminator to `to`.
func replaceReg(u *sir.ExecutionUnit, blk *sir.BasicBlock, from, to sir.RegisterId) {
	rewrite := func(r sir.RegisterId) sir.RegisterId {
		if r == from {
			return to
		}
		return r
	}
	for i := range blk.Instructions {
		ins := &blk.Instructions[i]
		ins.Lhs = rewrite(ins.Lhs)
		ins.Rhs = rewrite(ins.Rhs)
		ins.Src = rewrite(ins.Src)
		for j := range ins.Args {
			ins.Args[j] = rewrite(ins.Args[j])
		}
		if !ins.Offset.Static {
			ins.Offset.Dynamic = rewrite(ins.Offset.Dynamic)
		}
	}
	blk.Terminator.Cond = rewrite(blk.Terminator.Cond)
	for j := range blk.Terminator.Args {
		blk.Terminator.Args[j] = rewrite(blk.Terminator.Args[j])
	}
	for j := range blk.Terminator.TrueArgs {
		blk.Terminator.TrueArgs[j] = rewrite(blk.Terminator.TrueArgs[j])
	}
	for j := range blk.Terminator.FalseArgs {
		blk.Terminator.FalseArgs[j] = rewrite(blk.Terminator.FalseArgs[j])
	}
}
