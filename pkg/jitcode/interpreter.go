package jitcode

import (
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/sir"
	"github.com/hdlsim/celoxgo/pkg/simerr"
)

// InterpreterBackend is the default (and only) registered Backend: it
// plays the role spec.md 4.7 assigns to "translate SIR into machine
// code", but targets a direct interpreter loop over the block graph
// instead of emitting native instructions, per the package doc's
// documented simplification.
type InterpreterBackend struct{}

func (b *InterpreterBackend) Name() string { return "interpreter" }

func (b *InterpreterBackend) Compile(u *sir.ExecutionUnit, meta UnitMeta) (Runnable, error) {
	return &interpretedUnit{unit: u, meta: meta}, nil
}

type interpretedUnit struct {
	unit *sir.ExecutionUnit
	meta UnitMeta
}

// regVal is one register's value, with an unknown-bit mask that is
// always zero outside four-state mode (spec.md 4.7: "block parameters
// mapped 1:1, doubled in four-state mode so each SIR param yields
// (value, mask)" — here every register, not just block parameters,
// carries its shadow mask, since the interpreter has no separate
// native-register budget to economize on).
type regVal struct {
	v, m uint64
}

func (iu *interpretedUnit) Run(mem *Memory) (int64, []int, error) {
	u := iu.unit
	regs := make(map[sir.RegisterId]regVal, len(u.RegisterMap))
	var fired []int

	blockID := u.EntryBlock
	var args []regVal

	for {
		blk, ok := u.Blocks[blockID]
		if !ok {
			return 0, fired, simerr.New(simerr.KindInternalError, "jitcode: unit references unknown block %d", int(blockID))
		}
		for i, p := range blk.Params {
			if i < len(args) {
				regs[p] = args[i]
			} else {
				regs[p] = regVal{}
			}
		}

		for _, ins := range blk.Instructions {
			f := iu.exec(mem, regs, ins)
			fired = append(fired, f...)
		}

		switch blk.Terminator.Kind {
		case sir.TermJump:
			args = readArgs(regs, blk.Terminator.Args)
			blockID = blk.Terminator.Target
		case sir.TermBranch:
			cond := regs[blk.Terminator.Cond]
			if cond.v != 0 {
				args = readArgs(regs, blk.Terminator.TrueArgs)
				blockID = blk.Terminator.TrueBlock
			} else {
				args = readArgs(regs, blk.Terminator.FalseArgs)
				blockID = blk.Terminator.FalseBlock
			}
		case sir.TermReturn:
			return 0, fired, nil
		case sir.TermError:
			return int64(blk.Terminator.Code), fired, nil
		default:
			return 0, fired, simerr.New(simerr.KindInternalError, "jitcode: unknown terminator kind %d", int(blk.Terminator.Kind))
		}
	}
}

func readArgs(regs map[sir.RegisterId]regVal, ids []sir.RegisterId) []regVal {
	out := make([]regVal, len(ids))
	for i, id := range ids {
		out[i] = regs[id]
	}
	return out
}

func (iu *interpretedUnit) width(id sir.RegisterId) int {
	if t, ok := iu.unit.RegisterMap[id]; ok && t.Width > 0 {
		return t.Width
	}
	return 64
}

func (iu *interpretedUnit) signed(id sir.RegisterId) bool {
	return iu.unit.RegisterMap[id].Signed
}

func maskTo(v uint64, width int) uint64 {
	if width <= 0 || width >= 64 {
		return v
	}
	return v & ((uint64(1) << uint(width)) - 1)
}

func allOnes(width int) uint64 {
	if width <= 0 {
		return 0
	}
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

func signExtend(v uint64, width int) int64 {
	if width <= 0 || width >= 64 {
		return int64(v)
	}
	sign := uint64(1) << uint(width-1)
	if v&sign != 0 {
		return int64(v | ^((uint64(1) << uint(width)) - 1))
	}
	return int64(v)
}

// exec runs one SIR instruction against regs/mem, returning any event ids
// whose edge fired on this instruction (Store/Commit only).
func (iu *interpretedUnit) exec(mem *Memory, regs map[sir.RegisterId]regVal, ins sir.Instruction) []int {
	fourState := iu.meta.FourState
	switch ins.Op {
	case sir.OpImm:
		w := iu.width(ins.Dst)
		regs[ins.Dst] = regVal{v: maskTo(uint64(ins.Value), w)}

	case sir.OpConcat:
		// Args are MSB-first per spec.md 3's Concat shape; pkg/sir does
		// not currently emit this opcode directly (concatenation is
		// lowered to a Shl/Or chain, see pkg/sir/lower.go), but the
		// interpreter supports it for forward compatibility with any
		// optimizer pass that re-introduces it.
		var v, m uint64
		pos := uint(0)
		for i := len(ins.Args) - 1; i >= 0; i-- {
			a := regs[ins.Args[i]]
			w := uint(iu.width(ins.Args[i]))
			v |= maskTo(a.v, int(w)) << pos
			m |= maskTo(a.m, int(w)) << pos
			pos += w
		}
		dw := iu.width(ins.Dst)
		regs[ins.Dst] = regVal{v: maskTo(v, dw), m: maskTo(m, dw)}

	case sir.OpBinary:
		lhs, rhs := regs[ins.Lhs], regs[ins.Rhs]
		dw := iu.width(ins.Dst)
		signed := iu.signed(ins.Dst) || iu.signed(ins.Lhs)
		regs[ins.Dst] = evalBinary(ins.BinOp, lhs, rhs, dw, signed, fourState)

	case sir.OpUnary:
		src := regs[ins.Src]
		dw := iu.width(ins.Dst)
		regs[ins.Dst] = evalUnary(ins.UnOp, src, dw, fourState)

	case sir.OpLoad:
		off := iu.resolveOffset(regs, ins.Offset)
		v, m := mem.ReadBits(ins.Addr, off, ins.Width)
		regs[ins.Dst] = regVal{v: v, m: m}

	case sir.OpStore:
		off := iu.resolveOffset(regs, ins.Offset)
		src := regs[ins.Src]
		return iu.storeWithTrigger(mem, ins.Addr, off, ins.Width, src.v, src.m, ins.Triggers)

	case sir.OpCommit:
		off := iu.resolveOffset(regs, ins.Offset)
		v, m := mem.ReadBits(ins.SrcAddr, off, ins.Width)
		return iu.storeWithTrigger(mem, ins.Addr, off, ins.Width, v, m, ins.Triggers)
	}
	return nil
}

func (iu *interpretedUnit) resolveOffset(regs map[sir.RegisterId]regVal, off sir.SIROffset) int {
	if off.Static {
		return off.Offset
	}
	return int(regs[off.Dynamic].v)
}

// storeWithTrigger writes (v, m) to addr at bitOff and, if the write can
// fire any of triggers, detects the edge against the pre-write value and
// sets the corresponding bits in the triggered-bits region (spec.md 4.7).
func (iu *interpretedUnit) storeWithTrigger(mem *Memory, addr model.RegionedAbsoluteAddr, bitOff, width int, v, m uint64, triggers []int) []int {
	var oldV uint64
	var oldKnown bool
	if len(triggers) > 0 && iu.meta.EmitTriggers {
		ov, om := mem.ReadBits(addr, bitOff, width)
		oldV, oldKnown = ov, om == 0
	}
	mem.WriteBits(addr, bitOff, width, v, m)
	if len(triggers) == 0 || !iu.meta.EmitTriggers {
		return nil
	}
	newKnown := m == 0
	var fired []int
	for _, id := range triggers {
		edge := iu.meta.EventEdge[id]
		if !oldKnown || !newKnown {
			continue
		}
		ok := false
		switch edge {
		case model.EdgePos:
			ok = oldV == 0 && v != 0
		case model.EdgeNeg:
			ok = oldV != 0 && v == 0
		case model.EdgeAsyncHigh:
			ok = v != 0
		case model.EdgeAsyncLow:
			ok = v == 0
		}
		if ok {
			mem.SetTriggerBit(id)
			fired = append(fired, id)
		}
	}
	return fired
}

// evalBinary computes a binary op's (value, mask), applying per-bit
// tri-state rules to the bitwise operators and the blanket "any unknown
// operand bit makes the whole result X" rule (spec.md 8 Testable
// Property 5) to every other operator, in four-state mode.
func evalBinary(op model.BinOp, lhs, rhs regVal, width int, signed, fourState bool) regVal {
	if fourState {
		switch op {
		case model.OpAnd:
			v, m := triAnd(lhs.v, lhs.m, rhs.v, rhs.m, width)
			return regVal{v, m}
		case model.OpOr:
			v, m := triOr(lhs.v, lhs.m, rhs.v, rhs.m, width)
			return regVal{v, m}
		case model.OpXor:
			v, m := triXor(lhs.v, lhs.m, rhs.v, rhs.m, width)
			return regVal{v, m}
		default:
			if lhs.m != 0 || rhs.m != 0 {
				return regVal{v: 0, m: allOnes(width)}
			}
		}
	}

	lv, rv := lhs.v, rhs.v
	switch op {
	case model.OpAdd:
		return regVal{v: maskTo(lv+rv, width)}
	case model.OpSub:
		return regVal{v: maskTo(lv-rv, width)}
	case model.OpMul:
		return regVal{v: maskTo(lv*rv, width)}
	case model.OpDiv:
		if rv == 0 {
			return regVal{v: 0}
		}
		if signed {
			return regVal{v: maskTo(uint64(signExtend(lv, width)/signExtend(rv, width)), width)}
		}
		return regVal{v: maskTo(lv/rv, width)}
	case model.OpMod:
		if rv == 0 {
			return regVal{v: 0}
		}
		if signed {
			return regVal{v: maskTo(uint64(signExtend(lv, width)%signExtend(rv, width)), width)}
		}
		return regVal{v: maskTo(lv%rv, width)}
	case model.OpPow:
		result := uint64(1)
		base := lv
		for e := rv; e > 0; e-- {
			result *= base
		}
		return regVal{v: maskTo(result, width)}
	case model.OpAnd:
		return regVal{v: maskTo(lv&rv, width)}
	case model.OpOr:
		return regVal{v: maskTo(lv|rv, width)}
	case model.OpXor:
		return regVal{v: maskTo(lv^rv, width)}
	case model.OpShl:
		return regVal{v: maskTo(lv<<uint(rv), width)}
	case model.OpShr:
		return regVal{v: maskTo(lv>>uint(rv), width)}
	case model.OpAShr:
		return regVal{v: maskTo(uint64(signExtend(lv, width)>>uint(rv)), width)}
	case model.OpEq:
		return boolReg(lv == rv)
	case model.OpNe:
		return boolReg(lv != rv)
	case model.OpLt:
		if signed {
			return boolReg(signExtend(lv, width) < signExtend(rv, width))
		}
		return boolReg(lv < rv)
	case model.OpLe:
		if signed {
			return boolReg(signExtend(lv, width) <= signExtend(rv, width))
		}
		return boolReg(lv <= rv)
	case model.OpGt:
		if signed {
			return boolReg(signExtend(lv, width) > signExtend(rv, width))
		}
		return boolReg(lv > rv)
	case model.OpGe:
		if signed {
			return boolReg(signExtend(lv, width) >= signExtend(rv, width))
		}
		return boolReg(lv >= rv)
	case model.OpCaseEq:
		return boolReg(lv == rv && lhs.m == rhs.m)
	case model.OpCaseNe:
		return boolReg(!(lv == rv && lhs.m == rhs.m))
	case model.OpLogAnd:
		return boolReg(lv != 0 && rv != 0)
	case model.OpLogOr:
		return boolReg(lv != 0 || rv != 0)
	default:
		return regVal{}
	}
}

func boolReg(b bool) regVal {
	if b {
		return regVal{v: 1}
	}
	return regVal{}
}

func evalUnary(op model.UnOp, src regVal, width int, fourState bool) regVal {
	if fourState {
		switch op {
		case model.OpBitNot:
			return regVal{v: maskTo(^src.v, width), m: maskTo(src.m, width)}
		case model.OpLogNot:
			hasKnown1 := src.v&^src.m != 0
			if hasKnown1 {
				return regVal{}
			}
			if src.m == 0 {
				return regVal{v: 1}
			}
			return regVal{m: allOnes(width)}
		case model.OpMinus:
			if src.m != 0 {
				return regVal{m: allOnes(width)}
			}
		case model.OpPlus:
			return regVal{v: maskTo(src.v, width), m: maskTo(src.m, width)}
		default:
			if op.IsReduction() {
				return triReduce(op, src.v, src.m, width)
			}
			if src.m != 0 {
				return regVal{m: allOnes(width)}
			}
		}
	}

	v := src.v
	switch op {
	case model.OpMinus:
		return regVal{v: maskTo(uint64(-int64(v)), width)}
	case model.OpPlus:
		return regVal{v: maskTo(v, width)}
	case model.OpBitNot:
		return regVal{v: maskTo(^v, width)}
	case model.OpLogNot:
		return boolReg(v == 0)
	case model.OpRedAnd:
		return boolReg(v&allOnes(width) == allOnes(width))
	case model.OpRedOr:
		return boolReg(v&allOnes(width) != 0)
	case model.OpRedXor:
		return boolReg(parity(v&allOnes(width)))
	case model.OpRedNand:
		return boolReg(v&allOnes(width) != allOnes(width))
	case model.OpRedNor:
		return boolReg(v&allOnes(width) == 0)
	case model.OpRedXnor:
		return boolReg(!parity(v & allOnes(width)))
	default:
		return regVal{}
	}
}

func parity(v uint64) bool {
	p := false
	for v != 0 {
		p = !p
		v &= v - 1
	}
	return p
}

// triAnd/triOr/triXor apply Verilog-style per-bit tri-state logic:
// AND is 0 if either bit is known-0, X if either is unknown (and neither
// is known-0), else 1; OR is the dual; XOR is X if either bit is
// unknown, else the known XOR.
func triAnd(lv, lm, rv, rm uint64, width int) (v, m uint64) {
	for i := 0; i < width && i < 64; i++ {
		bit := uint(i)
		lKnown0 := (lm>>bit)&1 == 0 && (lv>>bit)&1 == 0
		rKnown0 := (rm>>bit)&1 == 0 && (rv>>bit)&1 == 0
		if lKnown0 || rKnown0 {
			continue
		}
		if (lm>>bit)&1 == 1 || (rm>>bit)&1 == 1 {
			m |= 1 << bit
			continue
		}
		v |= 1 << bit
	}
	return
}

func triOr(lv, lm, rv, rm uint64, width int) (v, m uint64) {
	for i := 0; i < width && i < 64; i++ {
		bit := uint(i)
		lKnown1 := (lm>>bit)&1 == 0 && (lv>>bit)&1 == 1
		rKnown1 := (rm>>bit)&1 == 0 && (rv>>bit)&1 == 1
		if lKnown1 || rKnown1 {
			v |= 1 << bit
			continue
		}
		if (lm>>bit)&1 == 1 || (rm>>bit)&1 == 1 {
			m |= 1 << bit
		}
	}
	return
}

func triXor(lv, lm, rv, rm uint64, width int) (v, m uint64) {
	for i := 0; i < width && i < 64; i++ {
		bit := uint(i)
		if (lm>>bit)&1 == 1 || (rm>>bit)&1 == 1 {
			m |= 1 << bit
			continue
		}
		if (lv>>bit)&1 != (rv>>bit)&1 {
			v |= 1 << bit
		}
	}
	return
}

// triReduce applies a tri-state reduction operator over all width bits
// of (v, m): e.g. RedAnd is 1 only if every bit is known-1, 0 if any bit
// is known-0, else X.
func triReduce(op model.UnOp, v, m uint64, width int) regVal {
	anyUnknown := false
	anyKnown0, anyKnown1 := false, false
	for i := 0; i < width && i < 64; i++ {
		bit := uint(i)
		if (m>>bit)&1 == 1 {
			anyUnknown = true
			continue
		}
		if (v>>bit)&1 == 1 {
			anyKnown1 = true
		} else {
			anyKnown0 = true
		}
	}
	switch op {
	case model.OpRedAnd:
		if anyKnown0 {
			return regVal{}
		}
		if anyUnknown {
			return regVal{m: 1}
		}
		return regVal{v: 1}
	case model.OpRedNand:
		if anyKnown0 {
			return regVal{v: 1}
		}
		if anyUnknown {
			return regVal{m: 1}
		}
		return regVal{}
	case model.OpRedOr:
		if anyKnown1 {
			return regVal{v: 1}
		}
		if anyUnknown {
			return regVal{m: 1}
		}
		return regVal{}
	case model.OpRedNor:
		if anyKnown1 {
			return regVal{}
		}
		if anyUnknown {
			return regVal{m: 1}
		}
		return regVal{v: 1}
	case model.OpRedXor:
		if anyUnknown {
			return regVal{m: 1}
		}
		return boolReg(parity(v & allOnes(width)))
	case model.OpRedXnor:
		if anyUnknown {
			return regVal{m: 1}
		}
		return boolReg(!parity(v & allOnes(width)))
	default:
		return regVal{}
	}
}
