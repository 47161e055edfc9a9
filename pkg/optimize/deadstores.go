package optimize

import (
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/sir"
)

// EliminateDeadWorkingStores implements spec.md 4.6 pass 6: a standard
// backward liveness pass over a block's instructions. A Store to a
// working-region range is live if any later (non-dynamic) read overlaps
// its bits; a Dynamic-offset read to the same address conservatively
// marks every working range to that address live, since its covered bits
// aren't known statically. Dead stores are removed.
type EliminateDeadWorkingStores struct{}

func (*EliminateDeadWorkingStores) Name() string { return "eliminate_dead_working_stores" }

func (p *EliminateDeadWorkingStores) Run(u *sir.ExecutionUnit) (bool, error) {
	changed := false
	for _, blk := range u.Blocks {
		if eliminateInBlock(blk) {
			changed = true
		}
	}
	return changed, nil
}

func eliminateInBlock(blk *sir.BasicBlock) bool {
	live := make(map[string]bool) // addrKey -> conservatively all-live (dynamic read seen)
	ranges := make(map[string][][2]int)

	overlaps := func(a, b [2]int) bool { return a[0] < b[1] && b[0] < a[1] }

	keep := make([]bool, len(blk.Instructions))
	for i := len(blk.Instructions) - 1; i >= 0; i-- {
		ins := blk.Instructions[i]
		if ins.Op != sir.OpStore && ins.Op != sir.OpLoad {
			keep[i] = true
			continue
		}
		if ins.Addr.Region == model.StableRegion {
			// Not a working-region access; this pass only removes dead
			// writes to working scratch, stable writes always matter.
			keep[i] = true
			continue
		}
		key := ins.Addr.String()

		if ins.Op == sir.OpLoad {
			keep[i] = true
			if !ins.Offset.Static {
				live[key] = true
			} else {
				ranges[key] = append(ranges[key], [2]int{ins.Offset.Offset, ins.Offset.Offset + ins.Width})
			}
			continue
		}

		// Store: live if a dynamic read of this address was seen downstream,
		// or any recorded read range overlaps this store's range.
		if live[key] {
			keep[i] = true
			continue
		}
		thisRange := [2]int{ins.Offset.Offset, ins.Offset.Offset + ins.Width}
		isLive := false
		for _, r := range ranges[key] {
			if overlaps(r, thisRange) {
				isLive = true
				break
			}
		}
		keep[i] = isLive
	}

	changed := false
	var out []sir.Instruction
	for i, ins := range blk.Instructions {
		if keep[i] {
			out = append(out, ins)
		} else {
			changed = true
		}
	}
	blk.Instructions = out
	return changed
}
