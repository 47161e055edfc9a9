package optimize

import (
	"fmt"

	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/sir"
)

// OptimizeBlocks implements spec.md 4.6 pass 2: intra-block local value
// numbering (an (opcode, operands) -> RegisterId hash map), constant
// folding of Imm+Binary/Unary, removal of redundant Imms, and transitive
// replacement chaining without introducing cycles. Grounded on the
// teacher's pkg/optimizer/constant_folding.go memoize-by-structural-key
// idiom, reused here per basic block instead of per whole function.
type OptimizeBlocks struct{}

func (*OptimizeBlocks) Name() string { return "optimize_blocks" }

func (p *OptimizeBlocks) Run(u *sir.ExecutionUnit) (bool, error) {
	changed := false
	for _, blk := range u.Blocks {
		if optimizeOneBlock(u, blk) {
			changed = true
		}
	}
	return changed, nil
}

func optimizeOneBlock(u *sir.ExecutionUnit, blk *sir.BasicBlock) bool {
	changed := false
	replacement := make(map[sir.RegisterId]sir.RegisterId)
	constVal := make(map[sir.RegisterId]int64)
	resolve := func(r sir.RegisterId) sir.RegisterId {
		for {
			if rr, ok := replacement[r]; ok && rr != r {
				r = rr
				continue
			}
			return r
		}
	}

	numbering := make(map[string]sir.RegisterId)
	var out []sir.Instruction

	for _, ins := range blk.Instructions {
		ins.Lhs = resolve(ins.Lhs)
		ins.Rhs = resolve(ins.Rhs)
		ins.Src = resolve(ins.Src)
		for j := range ins.Args {
			ins.Args[j] = resolve(ins.Args[j])
		}
		if !ins.Offset.Static {
			ins.Offset.Dynamic = resolve(ins.Offset.Dynamic)
		}

		if ins.Op == sir.OpImm {
			constVal[ins.Dst] = ins.Value
		} else if folded, ok := tryFold(ins, constVal); ok {
			constVal[ins.Dst] = folded
			ins = sir.Instruction{Op: sir.OpImm, Dst: ins.Dst, Value: folded}
		}

		if key, ok := valueKey(ins); ok {
			if existing, found := numbering[key]; found {
				replacement[ins.Dst] = existing
				changed = true
				continue
			}
			numbering[key] = ins.Dst
		}

		out = append(out, ins)
	}
	blk.Instructions = out

	blk.Terminator.Cond = resolve(blk.Terminator.Cond)
	for j := range blk.Terminator.Args {
		blk.Terminator.Args[j] = resolve(blk.Terminator.Args[j])
	}
	for j := range blk.Terminator.TrueArgs {
		blk.Terminator.TrueArgs[j] = resolve(blk.Terminator.TrueArgs[j])
	}
	for j := range blk.Terminator.FalseArgs {
		blk.Terminator.FalseArgs[j] = resolve(blk.Terminator.FalseArgs[j])
	}
	return changed
}

// valueKey returns a structural key for instructions whose result depends
// only on their operands (pure Imm/Binary/Unary), or false for anything
// with side effects (Load/Store/Commit) or no canonical key.
func valueKey(ins sir.Instruction) (string, bool) {
	switch ins.Op {
	case sir.OpImm:
		return fmt.Sprintf("imm:%d", ins.Value), true
	case sir.OpBinary:
		return fmt.Sprintf("bin:%d:%d:%d", ins.BinOp, ins.Lhs, ins.Rhs), true
	case sir.OpUnary:
		return fmt.Sprintf("un:%d:%d", ins.UnOp, ins.Src), true
	default:
		return "", false
	}
}

// tryFold evaluates a Binary/Unary instruction whose operands are both
// known constants in constVal, reporting the folded value.
func tryFold(ins sir.Instruction, constVal map[sir.RegisterId]int64) (int64, bool) {
	switch ins.Op {
	case sir.OpBinary:
		lhs, ok1 := constVal[ins.Lhs]
		rhs, ok2 := constVal[ins.Rhs]
		if !ok1 || !ok2 {
			return 0, false
		}
		return foldBinary(ins.BinOp, lhs, rhs)
	case sir.OpUnary:
		src, ok := constVal[ins.Src]
		if !ok {
			return 0, false
		}
		return foldUnary(ins.UnOp, src)
	default:
		return 0, false
	}
}

func foldBinary(op model.BinOp, lhs, rhs int64) (int64, bool) {
	switch op {
	case model.OpAdd:
		return lhs + rhs, true
	case model.OpSub:
		return lhs - rhs, true
	case model.OpMul:
		return lhs * rhs, true
	case model.OpAnd:
		return lhs & rhs, true
	case model.OpOr:
		return lhs | rhs, true
	case model.OpXor:
		return lhs ^ rhs, true
	case model.OpShl:
		return lhs << uint(rhs), true
	case model.OpShr:
		return int64(uint64(lhs) >> uint(rhs)), true
	case model.OpEq:
		return boolToI64(lhs == rhs), true
	case model.OpNe:
		return boolToI64(lhs != rhs), true
	case model.OpLt:
		return boolToI64(lhs < rhs), true
	case model.OpLe:
		return boolToI64(lhs <= rhs), true
	case model.OpGt:
		return boolToI64(lhs > rhs), true
	case model.OpGe:
		return boolToI64(lhs >= rhs), true
	case model.OpLogAnd:
		return boolToI64(lhs != 0 && rhs != 0), true
	case model.OpLogOr:
		return boolToI64(lhs != 0 || rhs != 0), true
	default:
		return 0, false
	}
}

func foldUnary(op model.UnOp, src int64) (int64, bool) {
	switch op {
	case model.OpMinus:
		return -src, true
	case model.OpBitNot:
		return ^src, true
	case model.OpLogNot:
		return boolToI64(src == 0), true
	default:
		return 0, false
	}
}

func boolToI64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
