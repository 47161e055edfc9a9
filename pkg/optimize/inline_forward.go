package optimize

import (
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/sir"
)

// InlineCommitForwarding implements spec.md 4.6 pass 5: within a single
// block, if an earlier Store to a working address has exactly a following
// Commit's source offset and width, with no intervening dynamic read/write
// to that address, rewrite that Store's address to the Commit's destination
// and drop the Commit. A Commit whose range is covered only by several
// narrower Stores is left in place.
type InlineCommitForwarding struct{}

func (*InlineCommitForwarding) Name() string { return "inline_commit_forwarding" }

func (p *InlineCommitForwarding) Run(u *sir.ExecutionUnit) (bool, error) {
	changed := false
	for _, blk := range u.Blocks {
		var out []sir.Instruction
		for _, ins := range blk.Instructions {
			if ins.Op != sir.OpCommit {
				out = append(out, ins)
				continue
			}
			storeIdx, unsafe := findCoveringStore(out, ins.SrcAddr, ins.Offset, ins.Width)
			if storeIdx < 0 || unsafe {
				out = append(out, ins)
				continue
			}
			out[storeIdx].Addr = ins.Addr
			if len(ins.Triggers) > 0 {
				out[storeIdx].Triggers = append(append([]int{}, out[storeIdx].Triggers...), ins.Triggers...)
			}
			changed = true
			// Commit itself is dropped: nothing appended to out for it.
		}
		blk.Instructions = out
	}
	return changed, nil
}

// findCoveringStore scans already-emitted instructions for a Store
// exactly matching addr/offset/width, reporting the index of the most
// recent such store and whether any instruction after it performs a
// dynamic-offset load or store to the same address (which would make
// forwarding unsound, since the commit's source might have been
// overwritten by an intervening write this pass can't see statically).
func findCoveringStore(out []sir.Instruction, addr model.RegionedAbsoluteAddr, offset sir.SIROffset, width int) (int, bool) {
	found := -1
	for i, ins := range out {
		if ins.Op == sir.OpStore && ins.Addr == addr && ins.Offset == offset && ins.Width == width {
			found = i
		}
	}
	if found < 0 {
		return -1, false
	}
	for i := found + 1; i < len(out); i++ {
		ins := out[i]
		touchesSameAddr := (ins.Op == sir.OpLoad || ins.Op == sir.OpStore) && ins.Addr == addr
		if touchesSameAddr && !ins.Offset.Static {
			return found, true
		}
	}
	return found, false
}
