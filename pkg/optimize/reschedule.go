package optimize

import "github.com/hdlsim/celoxgo/pkg/sir"

// Reschedule implements spec.md 4.6 pass 7: within each block, reorder
// instructions to increase load/arith overlap, capping the number of
// Loads allowed to be in flight (issued but not yet consumed) at
// MaxInFlightLoads. Grounded on the teacher's
// pkg/optimizer/instruction_scheduler.go list-scheduling shape, adapted
// from Z80 instruction latencies to a simple load-issue-window bound.
type Reschedule struct {
	MaxInFlightLoads int
}

func (*Reschedule) Name() string { return "reschedule" }

func (p *Reschedule) Run(u *sir.ExecutionUnit) (bool, error) {
	limit := p.MaxInFlightLoads
	if limit <= 0 {
		limit = 8
	}
	changed := false
	for _, blk := range u.Blocks {
		if rescheduleBlock(blk, limit) {
			changed = true
		}
	}
	return changed, nil
}

// rescheduleBlock repeatedly bubbles each Load one position earlier past
// an immediately preceding instruction, as long as: that instruction is
// not a Store/Commit (side effects keep program order), it does not
// produce a register the Load depends on, and fewer than limit Loads are
// already in flight ahead of the Load's new position. This increases
// load/arith overlap without needing full list-scheduling machinery.
func rescheduleBlock(blk *sir.BasicBlock, limit int) bool {
	ins := blk.Instructions
	n := len(ins)
	if n < 2 {
		return false
	}
	changed := false

	for i := 1; i < n; i++ {
		if ins[i].Op != sir.OpLoad {
			continue
		}
		pos := i
		for pos > 0 {
			prev := ins[pos-1]
			if prev.Op == sir.OpStore || prev.Op == sir.OpCommit {
				break
			}
			if usesReg(ins[pos], prev.Dst) {
				break
			}
			if loadsInFlightBefore(ins, pos-1) >= limit {
				break
			}
			ins[pos-1], ins[pos] = ins[pos], ins[pos-1]
			pos--
			changed = true
		}
	}

	blk.Instructions = ins
	return changed
}

// loadsInFlightBefore counts consecutive Loads immediately preceding
// position pos (a cheap proxy for "loads issued but not yet consumed").
func loadsInFlightBefore(ins []sir.Instruction, pos int) int {
	count := 0
	for i := pos - 1; i >= 0 && ins[i].Op == sir.OpLoad; i-- {
		count++
	}
	return count
}

func usesReg(ins sir.Instruction, r sir.RegisterId) bool {
	if ins.Lhs == r || ins.Rhs == r || ins.Src == r {
		return true
	}
	for _, a := range ins.Args {
		if a == r {
			return true
		}
	}
	if !ins.Offset.Static && ins.Offset.Dynamic == r {
		return true
	}
	return false
}
