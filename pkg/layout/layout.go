// Package layout implements C6: packing the flattened design's variables
// into a contiguous stable/working/triggered-bits buffer. Grounded on the
// teacher's pkg/codegen/register_allocator.go, whose deterministic
// map-plus-stable-order allocation bookkeeping this package's two packing
// passes generalize from physical-register slots to byte offsets.
package layout

import (
	"sort"

	"github.com/hdlsim/celoxgo/pkg/flatten"
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/sir"
)

// Slot is one packed variable's placement within its region.
type Slot struct {
	Offset    int
	ByteSize  int // size of one copy; four-state reserves 2*ByteSize total
	FourState bool
}

// Layout is C6's output: stable/working region maps plus the triggered
// bits region size, ready for pkg/jitcode to address into one buffer.
type Layout struct {
	Stable  map[model.AbsoluteAddr]Slot
	Working map[model.RegionedAbsoluteAddr]Slot

	StableSize  int
	WorkingSize int

	TriggeredBitsOffset int
	TriggeredBitsSize   int

	TotalSize int
}

type packItem struct {
	key       interface{}
	byteSize  int
	fourState bool
}

// alignment implements spec.md 4.5's rule: 1 if byte_size == 0, else
// clamp(next_pow2(byte_size), 1, 8).
func alignment(byteSize int) int {
	if byteSize == 0 {
		return 1
	}
	return clamp(nextPow2(byteSize), 1, 8)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func byteSize(widthBits int) int {
	return (widthBits + 7) / 8
}

// pack lays items out in sort.SliceStable order by descending alignment
// (ties preserve input order, matching spec.md 4.5's "sort by alignment
// desc, stability preserving"), returning each item's offset and the
// total packed size.
func pack(items []packItem) (map[interface{}]int, int) {
	sort.SliceStable(items, func(i, j int) bool {
		return alignment(items[i].byteSize) > alignment(items[j].byteSize)
	})
	offsets := make(map[interface{}]int, len(items))
	next := 0
	for _, it := range items {
		a := alignment(it.byteSize)
		if rem := next % a; rem != 0 {
			next += a - rem
		}
		offsets[it.key] = next
		size := it.byteSize
		if it.fourState {
			size *= 2
		}
		next += size
	}
	return offsets, next
}

// Build runs C6's three passes over design's variables and prog's
// execution units. reg supplies each module's Variable definitions
// (width, four-state-ness) that Design itself does not retain.
func Build(reg *flatten.Registry, design *flatten.Design, prog *sir.Program, numEvents int) *Layout {
	l := &Layout{
		Stable:  make(map[model.AbsoluteAddr]Slot),
		Working: make(map[model.RegionedAbsoluteAddr]Slot),
	}

	// Pass 1: stable region, every instance's every variable.
	var stableItems []packItem
	for _, info := range design.Instances {
		src := reg.Source[info.ModuleName]
		for _, v := range src.Vars {
			varID, _ := src.VarByName(v.Name)
			addr := model.AbsoluteAddr{Instance: info.ID, Var: varID}
			stableItems = append(stableItems, packItem{key: addr, byteSize: byteSize(v.Width), fourState: v.FourState})
		}
	}
	offs, total := pack(stableItems)
	l.StableSize = total
	for _, it := range stableItems {
		addr := it.key.(model.AbsoluteAddr)
		l.Stable[addr] = Slot{Offset: offs[it.key], ByteSize: it.byteSize, FourState: it.fourState}
	}

	// Pass 2: working region, only addresses actually stored to by any
	// execution unit's working-region Store instruction.
	working := collectWorkingWrites(prog)
	var workingItems []packItem
	for key, wv := range working {
		workingItems = append(workingItems, packItem{key: key, byteSize: byteSize(wv.width), fourState: wv.fourState})
	}
	offs2, total2 := pack(workingItems)
	l.WorkingSize = total2
	for _, it := range workingItems {
		key := it.key.(model.RegionedAbsoluteAddr)
		l.Working[key] = Slot{Offset: offs2[it.key], ByteSize: it.byteSize, FourState: it.fourState}
	}

	// Pass 3: triggers, 8-byte aligned bitset.
	triggerBytes := (numEvents + 7) / 8
	padded := triggerBytes
	if rem := padded % 8; rem != 0 {
		padded += 8 - rem
	}
	l.TriggeredBitsOffset = l.StableSize + l.WorkingSize
	if rem := l.TriggeredBitsOffset % 8; rem != 0 {
		l.TriggeredBitsOffset += 8 - rem
	}
	l.TriggeredBitsSize = padded
	l.TotalSize = l.TriggeredBitsOffset + l.TriggeredBitsSize

	return l
}

type workingVar struct {
	width     int
	fourState bool
}

// collectWorkingWrites scans every ExecutionUnit reachable from prog for
// Store instructions targeting a non-stable region, recording each
// address's widest observed write (widths never disagree in a
// well-formed design, but the max guards against a partial atomization).
func collectWorkingWrites(prog *sir.Program) map[model.RegionedAbsoluteAddr]workingVar {
	out := make(map[model.RegionedAbsoluteAddr]workingVar)
	note := func(addr model.RegionedAbsoluteAddr, width int) {
		if addr.Region == model.StableRegion {
			return
		}
		cur := out[addr]
		if width > cur.width {
			cur.width = width
		}
		out[addr] = cur
	}
	scan := func(units []*sir.ExecutionUnit) {
		for _, u := range units {
			for _, blk := range u.Blocks {
				for _, ins := range blk.Instructions {
					if ins.Op == sir.OpStore {
						note(ins.Addr, ins.Width)
					}
				}
			}
		}
	}
	scan(prog.EvalComb)
	for _, units := range prog.EvalOnlyFFs {
		scan(units)
	}
	for _, units := range prog.EvalApplyFFs {
		scan(units)
	}
	return out
}
