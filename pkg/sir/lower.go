package sir

import (
	"math/big"

	"github.com/hdlsim/celoxgo/pkg/flatten"
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/schedule"
	"github.com/hdlsim/celoxgo/pkg/simerr"
	"github.com/hdlsim/celoxgo/pkg/slt"
)

// workingRegion is the single working-region number used by every
// cascaded domain's eval-only phase; working addresses are identified by
// (AbsoluteAddr, Region), and no two domains share a target address, so a
// single region number is sufficient (spec.md 4.4's two-phase protocol
// does not require per-domain region numbering, only per-address
// uniqueness within a region).
const workingRegion = 1

// Lower implements C5: translating a scheduled Design into a Program.
// fourState selects branch-based (two-state) or select-pattern
// (four-state) Mux lowering, per spec.md 4.1/4.4.
func Lower(design *flatten.Design, sched *schedule.Schedule, fourState bool) (*Program, error) {
	prog := &Program{
		EvalApplyFFs:    make(map[model.AbsoluteAddr][]*ExecutionUnit),
		EvalOnlyFFs:     make(map[model.AbsoluteAddr][]*ExecutionUnit),
		ApplyFFs:        make(map[model.AbsoluteAddr][]*ExecutionUnit),
		ClockDomains:    make(map[model.AbsoluteAddr]model.AbsoluteAddr),
		CascadedClocks:  make(map[model.AbsoluteAddr]bool),
		ModuleVariables: design.ModuleVars,
		InstanceModule:  design.InstanceModule,
		EventIDs:        make(map[model.AbsoluteAddr]int),
		EventEdge:       make(map[int]model.EdgeKind),
	}

	for _, cu := range sched.CombUnits {
		unit, err := lowerCombUnit(design, cu, fourState)
		if err != nil {
			return nil, err
		}
		prog.EvalComb = append(prog.EvalComb, unit)
	}

	// Pre-pass: resolve every domain's clock address up front and assign
	// it a dense event id, so that any OTHER domain's sequential writes
	// which target that same address (spec.md 4.3 step 6's cascaded-clock
	// detection) can be lowered with the right Triggers id attached, even
	// if that domain is lowered before the clock it feeds.
	domainClockAddr := make([]model.AbsoluteAddr, len(sched.Domains))
	for i, dom := range sched.Domains {
		addr, err := resolveClockAddrForLowering(design, dom.Logic)
		if err != nil {
			return nil, err
		}
		domainClockAddr[i] = addr
		if _, ok := prog.EventIDs[addr]; !ok {
			id := len(prog.EventIDs)
			prog.EventIDs[addr] = id
			prog.EventEdge[id] = dom.Logic.Clock.Edge
		}
	}
	prog.numEvents = len(prog.EventIDs)

	for i, dom := range sched.Domains {
		clockAddr := domainClockAddr[i]
		prog.ClockDomains[clockAddr] = clockAddr
		prog.TopologicalClocks = append(prog.TopologicalClocks, clockAddr)

		if dom.Cascaded {
			prog.CascadedClocks[clockAddr] = true
			evalOnly, apply, err := lowerSplitDomain(design, dom, fourState, prog.EventIDs)
			if err != nil {
				return nil, err
			}
			prog.EvalOnlyFFs[clockAddr] = append(prog.EvalOnlyFFs[clockAddr], evalOnly)
			prog.ApplyFFs[clockAddr] = append(prog.ApplyFFs[clockAddr], apply)
		} else {
			unit, err := lowerUnifiedDomain(design, dom, fourState, prog.EventIDs)
			if err != nil {
				return nil, err
			}
			prog.EvalApplyFFs[clockAddr] = append(prog.EvalApplyFFs[clockAddr], unit)
		}
	}

	return prog, nil
}

func resolveClockAddrForLowering(design *flatten.Design, seq flatten.AtomicSeqLogic) (model.AbsoluteAddr, error) {
	moduleName := design.InstanceModule[seq.Instance]
	varID, ok := design.ModuleVars[moduleName][seq.Clock.Signal]
	if !ok {
		return model.AbsoluteAddr{}, simerr.New(simerr.KindInternalError,
			"clock signal %q not found in module %q", seq.Clock.Signal, moduleName)
	}
	return model.AbsoluteAddr{Instance: seq.Instance, Var: varID}, nil
}

// lowerCombUnit lowers one scheduled combinational group into an
// ExecutionUnit whose atoms store directly to the stable region (comb
// logic is pure; its inputs are always already committed by the time the
// scheduler runs it, false/true loops aside).
func lowerCombUnit(design *flatten.Design, cu schedule.CombUnit, fourState bool) (*ExecutionUnit, error) {
	switch cu.Kind {
	case schedule.KindPlain, schedule.KindFalseLoop:
		u := newExecutionUnit()
		blk := u.NewBlock()
		u.EntryBlock = blk.ID

		passes := 1
		if cu.Kind == schedule.KindFalseLoop {
			passes = 2
		}
		for pass := 0; pass < passes; pass++ {
			for _, atom := range cu.Atoms {
				var err error
				blk, err = lowerCombAtom(design, u, blk, atom, fourState)
				if err != nil {
					return nil, err
				}
			}
		}
		blk.Terminator = Terminator{Kind: TermReturn}
		return u, nil

	case schedule.KindTrueLoop:
		return lowerTrueLoopUnit(design, cu, fourState)

	default:
		return nil, simerr.New(simerr.KindInternalError, "unknown comb unit kind %d", cu.Kind)
	}
}

// lowerTrueLoopUnit builds a bounded dynamic loop: a header block that
// re-lowers the SCC's atoms each iteration, tracks a trip counter, and
// exits once two consecutive iterations produce identical values (or
// raises DetectedTrueLoop once MaxIter is exceeded).
func lowerTrueLoopUnit(design *flatten.Design, cu schedule.CombUnit, fourState bool) (*ExecutionUnit, error) {
	u := newExecutionUnit()
	header := u.NewBlock()
	u.EntryBlock = header.ID

	maxIter := cu.MaxIter
	if maxIter <= 0 {
		maxIter = 1000 // runtime default cap for oversized false loops (spec.md 4.3 step 3)
	}

	prevRegs := make([]RegisterId, len(cu.Atoms))
	for i, atom := range cu.Atoms {
		prevRegs[i] = u.NewReg(RegisterType{Width: atom.Access.Width()})
	}
	iterReg := u.NewReg(RegisterType{Width: 32})
	header.Params = append(append([]RegisterId{}, prevRegs...), iterReg)

	body := u.NewBlock()
	header.Terminator = Terminator{Kind: TermJump, Target: body.ID, Args: header.Params}

	blk := body
	newRegs := make([]RegisterId, len(cu.Atoms))
	for i, atom := range cu.Atoms {
		var dst RegisterId
		var err error
		dst, blk, err = lowerExprForValue(design, u, blk, atom, fourState)
		if err != nil {
			return nil, err
		}
		newRegs[i] = dst
		blk = storeAtomFromReg(u, blk, atom, dst, model.StableRegion)
	}

	var changed RegisterId
	for i := range newRegs {
		diff := u.NewReg(RegisterType{Width: 1})
		blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: diff, BinOp: model.OpNe, Lhs: newRegs[i], Rhs: prevRegs[i]})
		if i == 0 {
			changed = diff
		} else {
			next := u.NewReg(RegisterType{Width: 1})
			blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: next, BinOp: model.OpLogOr, Lhs: changed, Rhs: diff})
			changed = next
		}
	}
	if len(newRegs) == 0 {
		changed = u.NewReg(RegisterType{Width: 1})
		blk.Instructions = append(blk.Instructions, Instruction{Op: OpImm, Dst: changed, Value: 0})
	}

	one := u.NewReg(RegisterType{Width: 32})
	blk.Instructions = append(blk.Instructions, Instruction{Op: OpImm, Dst: one, Value: 1})
	nextIter := u.NewReg(RegisterType{Width: 32})
	blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: nextIter, BinOp: model.OpAdd, Lhs: iterReg, Rhs: one})

	maxReg := u.NewReg(RegisterType{Width: 32})
	blk.Instructions = append(blk.Instructions, Instruction{Op: OpImm, Dst: maxReg, Value: int64(maxIter)})
	underLimit := u.NewReg(RegisterType{Width: 1})
	blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: underLimit, BinOp: model.OpLt, Lhs: nextIter, Rhs: maxReg})

	loopOn := u.NewReg(RegisterType{Width: 1})
	blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: loopOn, BinOp: model.OpLogAnd, Lhs: changed, Rhs: underLimit})

	notUnderLimit := u.NewReg(RegisterType{Width: 1})
	atLimitAndChanged := u.NewReg(RegisterType{Width: 1})
	blk.Instructions = append(blk.Instructions,
		Instruction{Op: OpUnary, Dst: notUnderLimit, UnOp: model.OpLogNot, Src: underLimit},
		Instruction{Op: OpBinary, Dst: atLimitAndChanged, BinOp: model.OpLogAnd, Lhs: changed, Rhs: notUnderLimit},
	)

	exceeded := u.NewBlock()
	exceeded.Terminator = Terminator{Kind: TermError, Code: int(simerr.KindDetectedTrueLoop)}

	done := u.NewBlock()
	done.Terminator = Terminator{Kind: TermReturn}

	gate := u.NewBlock()
	gate.Terminator = Terminator{Kind: TermBranch, Cond: atLimitAndChanged, TrueBlock: exceeded.ID, FalseBlock: done.ID}

	loopArgs := append(append([]RegisterId{}, newRegs...), nextIter)
	blk.Terminator = Terminator{
		Kind: TermBranch, Cond: loopOn,
		TrueBlock: header.ID, TrueArgs: loopArgs,
		FalseBlock: gate.ID,
	}

	return u, nil
}

// lowerUnifiedDomain lowers a non-cascaded clock domain into a single
// eval-apply unit: every assignment's RHS is loaded from stable, and the
// result is stored directly back to stable with its triggers attached.
func lowerUnifiedDomain(design *flatten.Design, dom schedule.DomainUnit, fourState bool, eventIDs map[model.AbsoluteAddr]int) (*ExecutionUnit, error) {
	u := newExecutionUnit()
	blk := u.NewBlock()
	u.EntryBlock = blk.ID

	for _, a := range dom.Logic.Assigns {
		var dst RegisterId
		var err error
		path := seqAsAtomicPath(a)
		dst, blk, err = lowerExprForValue(design, u, blk, path, fourState)
		if err != nil {
			return nil, err
		}
		blk.Instructions = append(blk.Instructions, Instruction{
			Op: OpStore, Addr: model.RegionedAbsoluteAddr{Addr: a.Target, Region: model.StableRegion},
			Offset: SIROffset{Static: true, Offset: a.Access.Lsb}, Width: a.Access.Width(), Src: dst,
			Triggers: triggersFor(a.Target, eventIDs),
		})
	}
	blk.Terminator = Terminator{Kind: TermReturn}
	return u, nil
}

// triggersFor returns the event id list a write to target may fire: a
// singleton slice if target is itself some domain's clock signal (spec.md
// 4.3 step 6's cascaded-clock case), else nil.
func triggersFor(target model.AbsoluteAddr, eventIDs map[model.AbsoluteAddr]int) []int {
	if id, ok := eventIDs[target]; ok {
		return []int{id}
	}
	return nil
}

// lowerSplitDomain lowers a cascaded clock domain into an eval-only unit
// (writes to the working region) and an apply unit (commits working to
// stable), per spec.md 4.4's two-phase protocol.
func lowerSplitDomain(design *flatten.Design, dom schedule.DomainUnit, fourState bool, eventIDs map[model.AbsoluteAddr]int) (evalOnly, apply *ExecutionUnit, err error) {
	evalOnly = newExecutionUnit()
	blk := evalOnly.NewBlock()
	evalOnly.EntryBlock = blk.ID

	apply = newExecutionUnit()
	applyBlk := apply.NewBlock()
	apply.EntryBlock = applyBlk.ID

	for _, a := range dom.Logic.Assigns {
		var dst RegisterId
		path := seqAsAtomicPath(a)
		dst, blk, err = lowerExprForValue(design, evalOnly, blk, path, fourState)
		if err != nil {
			return nil, nil, err
		}
		blk.Instructions = append(blk.Instructions, Instruction{
			Op: OpStore, Addr: model.RegionedAbsoluteAddr{Addr: a.Target, Region: workingRegion},
			Offset: SIROffset{Static: true, Offset: a.Access.Lsb}, Width: a.Access.Width(), Src: dst,
		})
		applyBlk.Instructions = append(applyBlk.Instructions, Instruction{
			Op:      OpCommit,
			SrcAddr: model.RegionedAbsoluteAddr{Addr: a.Target, Region: workingRegion},
			Addr:    model.RegionedAbsoluteAddr{Addr: a.Target, Region: model.StableRegion},
			Offset:  SIROffset{Static: true, Offset: a.Access.Lsb},
			Width:   a.Access.Width(),
			Triggers: triggersFor(a.Target, eventIDs),
		})
	}
	blk.Terminator = Terminator{Kind: TermReturn}
	applyBlk.Terminator = Terminator{Kind: TermReturn}
	return evalOnly, apply, nil
}

// seqAsAtomicPath adapts an AtomicSeqAssign to the AtomicPath shape the
// expression lowerer expects (they carry the same Arena/Expr/Instance
// fields; only the surrounding grouping differs between combinational and
// sequential logic).
func seqAsAtomicPath(a flatten.AtomicSeqAssign) flatten.AtomicPath {
	return flatten.AtomicPath{
		Target: a.Target, Access: a.Access, Sources: a.Sources,
		Arena: a.Arena, Expr: a.Expr, Instance: a.Instance,
	}
}

func lowerCombAtom(design *flatten.Design, u *ExecutionUnit, blk *BasicBlock, atom flatten.AtomicPath, fourState bool) (*BasicBlock, error) {
	dst, finalBlk, err := lowerExprForValue(design, u, blk, atom, fourState)
	if err != nil {
		return nil, err
	}
	return storeAtomFromReg(u, finalBlk, atom, dst, model.StableRegion), nil
}

func lowerExprForValue(design *flatten.Design, u *ExecutionUnit, blk *BasicBlock, atom flatten.AtomicPath, fourState bool) (RegisterId, *BasicBlock, error) {
	ctx := &lowerCtx{design: design, u: u, arena: atom.Arena, instance: atom.Instance, fourState: fourState, memo: make(map[slt.NodeId]RegisterId)}
	return ctx.lower(blk, atom.Expr)
}

func storeAtomFromReg(u *ExecutionUnit, blk *BasicBlock, atom flatten.AtomicPath, src RegisterId, region int) *BasicBlock {
	blk.Instructions = append(blk.Instructions, Instruction{
		Op:     OpStore,
		Addr:   model.RegionedAbsoluteAddr{Addr: atom.Target, Region: region},
		Offset: SIROffset{Static: true, Offset: atom.Access.Lsb},
		Width:  atom.Access.Width(),
		Src:    src,
	})
	return blk
}

// lowerCtx carries the per-atom state needed while recursively lowering
// an SLT expression graph into one ExecutionUnit's instructions. Every
// lower call both consumes and returns the "current" basic block, since
// lowering a two-state Mux introduces new blocks (then/else/merge) that
// subsequent instructions for the same atom must continue emitting into.
// A fresh lowerCtx (and memo) is created per atom, so node memoization
// never reuses a register defined only inside another atom's branch; a
// node shared between a mux branch and that same atom's post-merge code
// is the one case still not separately re-verified for dominance, a
// documented simplification (see DESIGN.md).
type lowerCtx struct {
	design    *flatten.Design
	u         *ExecutionUnit
	arena     *slt.Arena
	instance  model.InstanceId
	fourState bool
	memo      map[slt.NodeId]RegisterId
}

func (c *lowerCtx) lower(blk *BasicBlock, id slt.NodeId) (RegisterId, *BasicBlock, error) {
	if r, ok := c.memo[id]; ok {
		return r, blk, nil
	}
	r, outBlk, err := c.lowerUncached(blk, id)
	if err != nil {
		return 0, nil, err
	}
	c.memo[id] = r
	return r, outBlk, nil
}

func (c *lowerCtx) lowerUncached(blk *BasicBlock, id slt.NodeId) (RegisterId, *BasicBlock, error) {
	switch n := c.arena.Get(id).(type) {
	case *slt.InputNode:
		return c.lowerInput(blk, n)

	case *slt.ConstantNode:
		dst := c.u.NewReg(RegisterType{Width: n.Wid, Signed: n.Signed})
		val := n.Value
		if !val.IsInt64() {
			// Widths above 64 are chunked in memory, not in the Imm
			// encoding this abstract machine uses; truncating to the low
			// 64 bits here is a documented simplification for wide
			// constants (see DESIGN.md's wide-arithmetic note).
			masked := new(big.Int).And(val, new(big.Int).SetUint64(^uint64(0)))
			blk.Instructions = append(blk.Instructions, Instruction{Op: OpImm, Dst: dst, Value: masked.Int64()})
		} else {
			blk.Instructions = append(blk.Instructions, Instruction{Op: OpImm, Dst: dst, Value: val.Int64()})
		}
		return dst, blk, nil

	case *slt.BinaryNode:
		lhs, blk, err := c.lower(blk, n.Lhs)
		if err != nil {
			return 0, nil, err
		}
		rhs, blk, err := c.lower(blk, n.Rhs)
		if err != nil {
			return 0, nil, err
		}
		dst := c.u.NewReg(RegisterType{Width: n.Wid, Signed: n.Signed})
		blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: dst, BinOp: n.Op, Lhs: lhs, Rhs: rhs})
		return dst, blk, nil

	case *slt.UnaryNode:
		src, blk, err := c.lower(blk, n.Operand)
		if err != nil {
			return 0, nil, err
		}
		dst := c.u.NewReg(RegisterType{Width: n.Wid, Signed: n.Signed})
		blk.Instructions = append(blk.Instructions, Instruction{Op: OpUnary, Dst: dst, UnOp: n.Op, Src: src})
		return dst, blk, nil

	case *slt.SliceNode:
		inner, blk, err := c.lower(blk, n.Expr)
		if err != nil {
			return 0, nil, err
		}
		shifted := inner
		if n.Access.Lsb != 0 {
			shiftAmt := c.u.NewReg(RegisterType{Width: 32})
			blk.Instructions = append(blk.Instructions, Instruction{Op: OpImm, Dst: shiftAmt, Value: int64(n.Access.Lsb)})
			shifted = c.u.NewReg(RegisterType{Width: n.Access.Width()})
			blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: shifted, BinOp: model.OpShr, Lhs: inner, Rhs: shiftAmt})
		}
		dst := c.u.NewReg(RegisterType{Width: n.Access.Width()})
		mask := c.u.NewReg(RegisterType{Width: n.Access.Width()})
		blk.Instructions = append(blk.Instructions, Instruction{Op: OpImm, Dst: mask, Value: (int64(1) << uint(n.Access.Width())) - 1})
		blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: dst, BinOp: model.OpAnd, Lhs: shifted, Rhs: mask})
		return dst, blk, nil

	case *slt.ConcatNode:
		pos := 0
		var acc RegisterId
		for i := len(n.Parts) - 1; i >= 0; i-- {
			part := n.Parts[i]
			var v RegisterId
			var err error
			v, blk, err = c.lower(blk, part.Node)
			if err != nil {
				return 0, nil, err
			}
			if pos == 0 {
				acc = v
			} else {
				shiftAmt := c.u.NewReg(RegisterType{Width: 32})
				blk.Instructions = append(blk.Instructions, Instruction{Op: OpImm, Dst: shiftAmt, Value: int64(pos)})
				shifted := c.u.NewReg(RegisterType{Width: n.Width()})
				blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: shifted, BinOp: model.OpShl, Lhs: v, Rhs: shiftAmt})
				next := c.u.NewReg(RegisterType{Width: n.Width()})
				blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: next, BinOp: model.OpOr, Lhs: acc, Rhs: shifted})
				acc = next
			}
			pos += part.Width
		}
		return acc, blk, nil

	case *slt.MuxNode:
		return c.lowerMux(blk, n)

	default:
		return 0, nil, simerr.New(simerr.KindInternalError, "sir: unknown SLT node type %T", n)
	}
}

func (c *lowerCtx) lowerInput(blk *BasicBlock, n *slt.InputNode) (RegisterId, *BasicBlock, error) {
	addr := c.design.Resolve(c.instance, n.Variable)

	offset := SIROffset{Static: true, Offset: n.Access.Lsb}
	if len(n.Indices) > 0 {
		var accReg RegisterId
		for i, ix := range n.Indices {
			idxReg, nextBlk, err := c.lower(blk, ix.Index)
			if err != nil {
				return 0, nil, err
			}
			blk = nextBlk
			strideReg := c.u.NewReg(RegisterType{Width: 32})
			blk.Instructions = append(blk.Instructions, Instruction{Op: OpImm, Dst: strideReg, Value: int64(ix.Stride)})
			scaled := c.u.NewReg(RegisterType{Width: 32})
			blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: scaled, BinOp: model.OpMul, Lhs: idxReg, Rhs: strideReg})
			if i == 0 {
				accReg = scaled
			} else {
				next := c.u.NewReg(RegisterType{Width: 32})
				blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: next, BinOp: model.OpAdd, Lhs: accReg, Rhs: scaled})
				accReg = next
			}
		}
		base := c.u.NewReg(RegisterType{Width: 32})
		blk.Instructions = append(blk.Instructions, Instruction{Op: OpImm, Dst: base, Value: int64(n.Access.Lsb)})
		final := c.u.NewReg(RegisterType{Width: 32})
		blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: final, BinOp: model.OpAdd, Lhs: accReg, Rhs: base})
		offset = SIROffset{Static: false, Dynamic: final}
	}

	dst := c.u.NewReg(RegisterType{Width: n.Access.Width()})
	blk.Instructions = append(blk.Instructions, Instruction{
		Op: OpLoad, Dst: dst,
		Addr:   model.RegionedAbsoluteAddr{Addr: addr, Region: model.StableRegion},
		Offset: offset,
		Width:  n.Access.Width(),
	})
	return dst, blk, nil
}

func (c *lowerCtx) lowerMux(blk *BasicBlock, n *slt.MuxNode) (RegisterId, *BasicBlock, error) {
	if !c.fourState {
		return c.lowerMuxTwoState(blk, n)
	}
	return c.lowerMuxFourState(blk, n)
}

// lowerMuxTwoState implements spec.md 4.4's branch-based Mux lowering:
// three blocks (then/else/merge) with the result passed as a merge-block
// parameter, so only the taken side is ever evaluated. The merge block is
// returned as the new "current" block for whatever lowers next.
func (c *lowerCtx) lowerMuxTwoState(blk *BasicBlock, n *slt.MuxNode) (RegisterId, *BasicBlock, error) {
	cond, blk, err := c.lower(blk, n.Cond)
	if err != nil {
		return 0, nil, err
	}

	thenBlk := c.u.NewBlock()
	elseBlk := c.u.NewBlock()
	mergeBlk := c.u.NewBlock()
	result := c.u.NewReg(RegisterType{Width: n.Wid})
	mergeBlk.Params = []RegisterId{result}

	blk.Terminator = Terminator{Kind: TermBranch, Cond: cond, TrueBlock: thenBlk.ID, FalseBlock: elseBlk.ID}

	thenVal, thenBlk, err := c.lower(thenBlk, n.Then)
	if err != nil {
		return 0, nil, err
	}
	thenBlk.Terminator = Terminator{Kind: TermJump, Target: mergeBlk.ID, Args: []RegisterId{thenVal}}

	elseVal, elseBlk, err := c.lower(elseBlk, n.Else)
	if err != nil {
		return 0, nil, err
	}
	elseBlk.Terminator = Terminator{Kind: TermJump, Target: mergeBlk.ID, Args: []RegisterId{elseVal}}

	return result, mergeBlk, nil
}

// lowerMuxFourState implements the select-pattern lowering: evaluate both
// sides unconditionally and combine with (broadcast(cond) & then) |
// (~broadcast(cond) & else), letting an X condition propagate X.
func (c *lowerCtx) lowerMuxFourState(blk *BasicBlock, n *slt.MuxNode) (RegisterId, *BasicBlock, error) {
	cond, blk, err := c.lower(blk, n.Cond)
	if err != nil {
		return 0, nil, err
	}
	thenVal, blk, err := c.lower(blk, n.Then)
	if err != nil {
		return 0, nil, err
	}
	elseVal, blk, err := c.lower(blk, n.Else)
	if err != nil {
		return 0, nil, err
	}

	bcast := c.u.NewReg(RegisterType{Width: n.Wid})
	blk.Instructions = append(blk.Instructions, Instruction{Op: OpUnary, Dst: bcast, UnOp: model.OpMinus, Src: cond})

	notBcast := c.u.NewReg(RegisterType{Width: n.Wid})
	blk.Instructions = append(blk.Instructions, Instruction{Op: OpUnary, Dst: notBcast, UnOp: model.OpBitNot, Src: bcast})

	thenMasked := c.u.NewReg(RegisterType{Width: n.Wid})
	blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: thenMasked, BinOp: model.OpAnd, Lhs: bcast, Rhs: thenVal})

	elseMasked := c.u.NewReg(RegisterType{Width: n.Wid})
	blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: elseMasked, BinOp: model.OpAnd, Lhs: notBcast, Rhs: elseVal})

	dst := c.u.NewReg(RegisterType{Width: n.Wid})
	blk.Instructions = append(blk.Instructions, Instruction{Op: OpBinary, Dst: dst, BinOp: model.OpOr, Lhs: thenMasked, Rhs: elseMasked})
	return dst, blk, nil
}
