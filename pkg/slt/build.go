package slt

import (
	"math/big"
	"sort"

	"github.com/hdlsim/celoxgo/pkg/model"
)

// Builder walks a model.Module's declarations and produces a SimModule:
// one LogicPath per atomic combinational assignment, one SeqLogic per
// always_ff-style block, and one GlueBlock per child instance.
type Builder struct {
	arena     *Arena
	fourState bool
	module    *model.Module
	stores    map[string]*VarBitStore
}

// NewBuilder creates a Builder for one module. fourState selects which
// Mux lowering convention pkg/sir will later apply to any MuxNode this
// builder produces (the SLT node itself is representation-agnostic; only
// the downstream lowering differs, per spec.md 4.1).
func NewBuilder(fourState bool) *Builder {
	return &Builder{arena: NewArena(), fourState: fourState}
}

// BuildModule lowers every declaration of m into a SimModule.
func (b *Builder) BuildModule(m *model.Module) *SimModule {
	b.module = m
	sim := &SimModule{
		Name:       m.Name,
		Arena:      b.arena,
		Boundaries: make(map[string]map[int]bool),
	}
	for _, v := range m.Vars {
		sim.Boundaries[v.Name] = map[int]bool{0: true, v.Width: true}
	}

	for _, cb := range m.CombBlock {
		sim.CombBlocks = append(sim.CombBlocks, b.processCombBlock(cb)...)
	}
	for _, sb := range m.SeqBlocks {
		sim.SeqBlocks = append(sim.SeqBlocks, b.processSeqBlock(sb))
	}
	for _, child := range m.Children {
		sim.GlueBlocks = append(sim.GlueBlocks, b.processGlue(child))
	}
	return sim
}

func (b *Builder) varWidth(name string) int {
	if id, ok := b.module.VarByName(name); ok {
		return b.module.Var(id).Width
	}
	panic("slt: unknown variable " + name)
}

func (b *Builder) getStore(name string) *VarBitStore {
	if s, ok := b.stores[name]; ok {
		return s
	}
	width := b.varWidth(name)
	undriven := b.arena.Intern(&ConstantNode{Value: big.NewInt(0), Wid: width, Signed: false})
	s := newVarBitStore(width, undriven)
	b.stores[name] = s
	return s
}

func (b *Builder) processCombBlock(block *model.CombBlock) []LogicPath {
	b.stores = make(map[string]*VarBitStore)
	b.processStmts(block.Body, nil)

	var names []string
	for n := range b.stores {
		names = append(names, n)
	}
	sort.Strings(names)

	var paths []LogicPath
	for _, name := range names {
		for _, r := range b.stores[name].Snapshot() {
			paths = append(paths, LogicPath{
				Target:  VarAtom{Var: name, Access: r.access},
				Sources: sourcesOf(b.arena, r.expr),
				Expr:    r.expr,
			})
		}
	}
	return paths
}

func (b *Builder) processSeqBlock(block *model.SeqBlock) SeqLogic {
	b.stores = make(map[string]*VarBitStore)
	b.processStmts(block.Body, nil)

	var names []string
	for n := range b.stores {
		names = append(names, n)
	}
	sort.Strings(names)

	logic := SeqLogic{Clock: block.Clock, Reset: block.Reset}
	for _, name := range names {
		for _, r := range b.stores[name].Snapshot() {
			logic.Assigns = append(logic.Assigns, SeqAssign{
				Target:  VarAtom{Var: name, Access: r.access},
				Sources: sourcesOf(b.arena, r.expr),
				Expr:    r.expr,
			})
		}
	}
	return logic
}

func (b *Builder) processGlue(child *model.ChildInstance) GlueBlock {
	glue := GlueBlock{ChildName: child.Name}
	for _, conn := range child.Connections {
		childVar := child.Name + "." + conn.ChildPort
		if conn.IsOutput {
			src := b.arena.Intern(&InputNode{Variable: childVar, Access: conn.ChildAccess})
			glue.Paths = append(glue.Paths, LogicPath{
				Target:  VarAtom{Var: conn.ParentVar, Access: conn.ParentAccess},
				Sources: []VarAtom{{Var: childVar, Access: conn.ChildAccess}},
				Expr:    src,
			})
		} else {
			src := b.arena.Intern(&InputNode{Variable: conn.ParentVar, Access: conn.ParentAccess})
			glue.Paths = append(glue.Paths, LogicPath{
				Target:  VarAtom{Var: childVar, Access: conn.ChildAccess},
				Sources: []VarAtom{{Var: conn.ParentVar, Access: conn.ParentAccess}},
				Expr:    src,
			})
		}
	}
	return glue
}

func (b *Builder) processStmts(stmts []model.Stmt, cond *NodeId) {
	for _, st := range stmts {
		switch s := st.(type) {
		case *model.AssignStmt:
			store := b.getStore(s.Target.Name)
			exprNode := b.build(s.Value, s.Target.Access.Width())
			store.Assign(b.arena, s.Target.Access, exprNode, cond)

		case *model.IfStmt:
			condNode := b.build(s.Cond, 1)
			thenCond := b.andCond(cond, condNode)
			b.processStmts(s.Then, &thenCond)
			if s.Else != nil {
				notCond := b.arena.Intern(&UnaryNode{Op: model.OpLogNot, Operand: condNode, Wid: 1})
				elseCond := b.andCond(cond, notCond)
				b.processStmts(s.Else, &elseCond)
			}

		case *model.CaseStmt:
			b.processCase(s, cond)

		default:
			panic("slt: unknown statement type")
		}
	}
}

func (b *Builder) processCase(s *model.CaseStmt, cond *NodeId) {
	selWidth := localWidth(s.Selector)
	selNode := b.build(s.Selector, selWidth)

	var matched []NodeId
	var defaultArm *model.CaseArm
	for i := range s.Arms {
		arm := &s.Arms[i]
		if len(arm.Values) == 0 {
			defaultArm = arm
			continue
		}
		var armCond NodeId
		hasArmCond := false
		for _, v := range arm.Values {
			valNode := b.build(v, selWidth)
			eq := b.arena.Intern(&BinaryNode{Op: model.OpEq, Lhs: selNode, Rhs: valNode, Wid: 1})
			if !hasArmCond {
				armCond = eq
				hasArmCond = true
			} else {
				armCond = b.arena.Intern(&BinaryNode{Op: model.OpLogOr, Lhs: armCond, Rhs: eq, Wid: 1})
			}
		}
		matched = append(matched, armCond)
		combined := b.andCond(cond, armCond)
		b.processStmts(arm.Body, &combined)
	}

	if defaultArm != nil {
		var anyMatched NodeId
		for i, m := range matched {
			if i == 0 {
				anyMatched = m
				continue
			}
			anyMatched = b.arena.Intern(&BinaryNode{Op: model.OpLogOr, Lhs: anyMatched, Rhs: m, Wid: 1})
		}
		var notAny NodeId
		if len(matched) == 0 {
			notAny = b.arena.Intern(&ConstantNode{Value: big.NewInt(1), Wid: 1})
		} else {
			notAny = b.arena.Intern(&UnaryNode{Op: model.OpLogNot, Operand: anyMatched, Wid: 1})
		}
		combined := b.andCond(cond, notAny)
		b.processStmts(defaultArm.Body, &combined)
	}
}

// andCond combines an (optional) enclosing path condition with a new
// local condition; nil means "always true".
func (b *Builder) andCond(cond *NodeId, extra NodeId) NodeId {
	if cond == nil {
		return extra
	}
	return b.arena.Intern(&BinaryNode{Op: model.OpLogAnd, Lhs: *cond, Rhs: extra, Wid: 1})
}
