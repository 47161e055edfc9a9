// Package sir implements C5: lowering a scheduled design (pkg/schedule's
// Schedule) into the Simulation Intermediate Representation, a flat
// three-address, basic-block IR with typed registers, explicit
// loads/stores, and the two-phase working/stable commit protocol.
// Grounded on the teacher's pkg/ir.Instruction tagged-struct shape
// (pkg/ir/ir.go) and pkg/mir's basic-block/function layout, generalized
// from a stack-and-register Z80 target to the memory-addressed abstract
// machine spec.md 4.7 describes.
package sir

import "github.com/hdlsim/celoxgo/pkg/model"

// RegisterId and BlockId are dense small integers, unique within an
// ExecutionUnit.
type RegisterId int
type BlockId int

// RegisterType is either a plain logic value of some bit width, or a
// two-state/four-state bit vector; the physical representation is the
// smallest power-of-two integer type (up to 64 bits) that holds Width
// bits, chunked into multiple 64-bit words above that.
type RegisterType struct {
	Width  int
	Signed bool
}

// Op is a SIR instruction opcode.
type Op int

const (
	OpImm Op = iota
	OpConcat
	OpBinary
	OpUnary
	OpLoad
	OpStore
	OpCommit
)

// SIROffset is either a compile-time-known bit offset, or one computed
// at runtime into a register (dynamic indexing).
type SIROffset struct {
	Static  bool
	Offset  int
	Dynamic RegisterId
}

// Instruction is one flat, tagged SIR instruction. Only the fields
// relevant to Op are meaningful, mirroring the teacher's single wide
// ir.Instruction struct (pkg/ir/ir.go) rather than a Go sum type, since
// the instruction stream is walked and mutated heavily by the optimizer
// passes and a flat struct keeps that code simple.
type Instruction struct {
	Op Op

	Dst  RegisterId
	Args []RegisterId // Concat operands, MSB-first

	BinOp model.BinOp
	UnOp  model.UnOp
	Lhs   RegisterId
	Rhs   RegisterId
	Src   RegisterId

	Value int64 // Imm

	Addr    model.RegionedAbsoluteAddr // Load/Store/Commit destination region
	SrcAddr model.RegionedAbsoluteAddr // Commit source region
	Offset  SIROffset
	Width   int // op_width in bits

	Triggers []int // event ids that may fire on this write
}

// TermKind distinguishes the four SIRTerminator shapes.
type TermKind int

const (
	TermJump TermKind = iota
	TermBranch
	TermReturn
	TermError
)

// Terminator ends a BasicBlock.
type Terminator struct {
	Kind TermKind

	// Jump
	Target BlockId
	Args   []RegisterId

	// Branch
	Cond       RegisterId
	TrueBlock  BlockId
	TrueArgs   []RegisterId
	FalseBlock BlockId
	FalseArgs  []RegisterId

	// Error
	Code int
}

// BasicBlock is a sequence of instructions ending in a Terminator, with
// block parameters (the phi-like merge mechanism for Mux lowering).
type BasicBlock struct {
	ID           BlockId
	Params       []RegisterId
	Instructions []Instruction
	Terminator   Terminator
}

// ExecutionUnit is one schedulable, independently JITable group of basic
// blocks.
type ExecutionUnit struct {
	EntryBlock  BlockId
	Blocks      map[BlockId]*BasicBlock
	RegisterMap map[RegisterId]RegisterType

	nextBlock BlockId
	nextReg   RegisterId
}

func newExecutionUnit() *ExecutionUnit {
	return &ExecutionUnit{
		Blocks:      make(map[BlockId]*BasicBlock),
		RegisterMap: make(map[RegisterId]RegisterType),
	}
}

// NewBlock allocates and registers a fresh empty BasicBlock.
func (u *ExecutionUnit) NewBlock() *BasicBlock {
	b := &BasicBlock{ID: u.nextBlock}
	u.Blocks[b.ID] = b
	u.nextBlock++
	return b
}

// NewReg allocates a fresh RegisterId of the given type. Exported so
// pkg/optimize's passes (hoisting, CSE) can introduce registers of their
// own when rewriting an ExecutionUnit in place.
func (u *ExecutionUnit) NewReg(t RegisterType) RegisterId {
	id := u.nextReg
	u.nextReg++
	u.RegisterMap[id] = t
	return id
}

// Program is the top-level SIR output for a whole design.
type Program struct {
	EvalComb       []*ExecutionUnit
	EvalApplyFFs   map[model.AbsoluteAddr][]*ExecutionUnit
	EvalOnlyFFs    map[model.AbsoluteAddr][]*ExecutionUnit
	ApplyFFs       map[model.AbsoluteAddr][]*ExecutionUnit
	ClockDomains   map[model.AbsoluteAddr]model.AbsoluteAddr
	CascadedClocks map[model.AbsoluteAddr]bool

	ModuleVariables   map[string]map[string]model.VarId
	InstanceModule    map[model.InstanceId]string
	TopologicalClocks []model.AbsoluteAddr

	// EventIDs assigns a dense id to every clock-domain trigger address
	// (spec.md 3's "Triggered bits... bit i corresponds to event id i").
	// EventEdge records the edge kind each id fires on, consulted by
	// pkg/jitcode's trigger detection (spec.md 4.7).
	EventIDs  map[model.AbsoluteAddr]int
	EventEdge map[int]model.EdgeKind

	numEvents int
}

// NumEvents returns the number of distinct trigger-capable events the
// design registers (the size of the triggered-bits region, spec.md 4.5).
func (p *Program) NumEvents() int { return p.numEvents }
