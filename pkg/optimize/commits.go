package optimize

import (
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/sir"
)

// SplitWideCommits implements spec.md 4.6 pass 3: if a merge block (every
// predecessor an unconditional Jump) opens with a Commit whose source
// address is covered, contiguously, by each predecessor's own Store
// instructions into that address, replace the single wide Commit with one
// Commit per covered sub-range — letting later passes forward each
// narrower Commit independently.
type SplitWideCommits struct{}

func (*SplitWideCommits) Name() string { return "split_wide_commits" }

func (p *SplitWideCommits) Run(u *sir.ExecutionUnit) (bool, error) {
	changed := false
	preds := predecessorsOf(u)

	for _, blk := range u.Blocks {
		if len(blk.Instructions) == 0 || blk.Instructions[0].Op != sir.OpCommit {
			continue
		}
		commit := blk.Instructions[0]
		ps := preds[blk.ID]
		if len(ps) == 0 || !allUnconditionalJumps(u, ps, blk.ID) {
			continue
		}

		ranges := commonCoveredRanges(u, ps, commit.SrcAddr)
		if len(ranges) <= 1 {
			continue
		}
		// The ranges must tile the Commit's [off, off+width) in order.
		lo := commit.Offset.Offset
		tiles := commit.Offset.Static
		for _, r := range ranges {
			if r.lo != lo {
				tiles = false
				break
			}
			lo = r.hi
		}
		if !tiles || lo != commit.Offset.Offset+commit.Width {
			continue
		}

		var split []sir.Instruction
		for _, r := range ranges {
			c := commit
			c.Offset = sir.SIROffset{Static: true, Offset: r.lo}
			c.Width = r.hi - r.lo
			split = append(split, c)
		}
		blk.Instructions = append(split, blk.Instructions[1:]...)
		changed = true
	}
	return changed, nil
}

type byteRange struct{ lo, hi int }

// predecessorsOf computes, for each block, the set of blocks whose
// terminator targets it.
func predecessorsOf(u *sir.ExecutionUnit) map[sir.BlockId][]sir.BlockId {
	out := make(map[sir.BlockId][]sir.BlockId)
	for id, blk := range u.Blocks {
		switch blk.Terminator.Kind {
		case sir.TermJump:
			out[blk.Terminator.Target] = append(out[blk.Terminator.Target], id)
		case sir.TermBranch:
			out[blk.Terminator.TrueBlock] = append(out[blk.Terminator.TrueBlock], id)
			out[blk.Terminator.FalseBlock] = append(out[blk.Terminator.FalseBlock], id)
		}
	}
	return out
}

func allUnconditionalJumps(u *sir.ExecutionUnit, preds []sir.BlockId, target sir.BlockId) bool {
	for _, id := range preds {
		blk := u.Blocks[id]
		if blk.Terminator.Kind != sir.TermJump || blk.Terminator.Target != target {
			return false
		}
	}
	return true
}

// commonCoveredRanges returns the static store ranges into addr that
// every predecessor in preds agrees on (same set of [off, off+width)
// ranges, in the same order), or nil if they disagree.
func commonCoveredRanges(u *sir.ExecutionUnit, preds []sir.BlockId, addr model.RegionedAbsoluteAddr) []byteRange {
	var reference []byteRange
	for i, id := range preds {
		blk := u.Blocks[id]
		var ranges []byteRange
		for _, ins := range blk.Instructions {
			if ins.Op == sir.OpStore && ins.Offset.Static && ins.Addr == addr {
				ranges = append(ranges, byteRange{lo: ins.Offset.Offset, hi: ins.Offset.Offset + ins.Width})
			}
		}
		if i == 0 {
			reference = ranges
			continue
		}
		if !sameRanges(reference, ranges) {
			return nil
		}
	}
	return reference
}

func sameRanges(a, b []byteRange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CommitSinking implements spec.md 4.6 pass 4: for a merge block's
// Commit, if every predecessor contains a Store to the working address
// with the Commit's exact offset and width (the last such Store supplies
// the value), push an equivalent Store directly to the
// Commit's destination into each predecessor and delete the Commit.
type CommitSinking struct{}

func (*CommitSinking) Name() string { return "commit_sinking" }

func (p *CommitSinking) Run(u *sir.ExecutionUnit) (bool, error) {
	changed := false
	preds := predecessorsOf(u)

	for _, blk := range u.Blocks {
		var kept []sir.Instruction
		for _, ins := range blk.Instructions {
			if ins.Op != sir.OpCommit {
				kept = append(kept, ins)
				continue
			}
			ps := preds[blk.ID]
			if len(ps) == 0 || !allUnconditionalJumps(u, ps, blk.ID) {
				kept = append(kept, ins)
				continue
			}
			ok := true
			var srcRegs []sir.RegisterId
			for _, id := range ps {
				src, found := lastStoreSource(u.Blocks[id], ins.SrcAddr, ins.Offset, ins.Width)
				if !found {
					ok = false
					break
				}
				srcRegs = append(srcRegs, src)
			}
			if !ok {
				kept = append(kept, ins)
				continue
			}
			for i, id := range ps {
				pb := u.Blocks[id]
				pb.Instructions = append(pb.Instructions, sir.Instruction{
					Op: sir.OpStore, Addr: ins.Addr, Offset: ins.Offset, Width: ins.Width, Src: srcRegs[i],
					Triggers: ins.Triggers,
				})
			}
			changed = true
		}
		blk.Instructions = kept
	}
	return changed, nil
}

func lastStoreSource(blk *sir.BasicBlock, addr model.RegionedAbsoluteAddr, offset sir.SIROffset, width int) (sir.RegisterId, bool) {
	for i := len(blk.Instructions) - 1; i >= 0; i-- {
		ins := blk.Instructions[i]
		if ins.Op == sir.OpStore && ins.Addr == addr && ins.Offset == offset && ins.Width == width {
			return ins.Src, true
		}
	}
	return 0, false
}
