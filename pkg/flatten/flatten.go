// Package flatten implements C3: instantiating one SimModule per module
// into a flat global address space, propagating bit-slice boundaries
// across port connections to a fixed point, and atomizing every
// LogicPath/SeqAssign at those boundaries. Grounded on the teacher's
// pkg/module/module.go (instance/module registry) and the fixed-point
// iteration idiom in pkg/optimizer/optimizer.go's pass-manager loop.
package flatten

import (
	"fmt"
	"sort"

	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/slt"
)

// InstanceInfo records one elaborated instance.
type InstanceInfo struct {
	ID         model.InstanceId
	ModuleName string
	Path       model.InstancePath
}

// AtomicPath is one fully atomized, address-resolved combinational path.
type AtomicPath struct {
	Target  model.AbsoluteAddr
	Access  model.BitAccess
	Sources []model.AbsoluteAddr
	// Arena/Expr locate the originating module's hash-consed expression;
	// shared across every instance of that module (spec.md 9's hash-consing
	// note — the expression graph is per-SimModule, not per-instance).
	Arena *slt.Arena
	Expr  slt.NodeId
	// Instance is the instance this path was atomized for; pkg/sir needs
	// it to re-resolve an InputNode's (possibly child-scoped) variable
	// name back to an AbsoluteAddr when lowering Expr.
	Instance model.InstanceId
}

// AtomicSeqAssign is one fully atomized sequential assignment.
type AtomicSeqAssign struct {
	Target   model.AbsoluteAddr
	Access   model.BitAccess
	Sources  []model.AbsoluteAddr
	Arena    *slt.Arena
	Expr     slt.NodeId
	Instance model.InstanceId
}

// AtomicSeqLogic groups a clock domain's atomized assignments for one
// instance.
type AtomicSeqLogic struct {
	Instance model.InstanceId
	Clock    model.ClockSpec
	Reset    *model.ResetSpec
	Assigns  []AtomicSeqAssign
}

// Design is the Flattener's output: a single Program-ready address space.
type Design struct {
	Instances      []InstanceInfo
	InstanceModule map[model.InstanceId]string
	ModuleVars     map[string]map[string]model.VarId // module name -> var name -> VarId
	CombPaths      []AtomicPath
	SeqLogics      []AtomicSeqLogic

	// Names maps a dotted hierarchical path ("sub.var"; a top-level
	// variable is just "var") to its
	// AbsoluteAddr, the basis for signal(path)/named_signals() (spec.md 6)
	// and for resolving config.FalseLoop/TrueLoop path annotations.
	Names map[string]model.AbsoluteAddr

	// childOf[parent][childName][index] is the instance id of that child,
	// populated during instantiation and consumed while resolving
	// "childName.port"-scoped variable references in glue blocks.
	childOf map[model.InstanceId]map[string]map[int]model.InstanceId
}

// Registry maps module name to its built SimModule and source Module.
type Registry struct {
	Sim    map[string]*slt.SimModule
	Source map[string]*model.Module
}

// Flatten elaborates topName's instance hierarchy and produces a Design.
func Flatten(reg *Registry, topName string) (*Design, error) {
	if _, ok := reg.Source[topName]; !ok {
		return nil, fmt.Errorf("flatten: unknown top module %q", topName)
	}

	propagateBoundaries(reg, topName)

	d := &Design{
		InstanceModule: make(map[model.InstanceId]string),
		ModuleVars:     make(map[string]map[string]model.VarId),
		Names:          make(map[string]model.AbsoluteAddr),
		childOf:        make(map[model.InstanceId]map[string]map[int]model.InstanceId),
	}
	for name, m := range reg.Source {
		vars := make(map[string]model.VarId, len(m.Vars))
		for _, v := range m.Vars {
			id, _ := m.VarByName(v.Name)
			vars[v.Name] = id
		}
		d.ModuleVars[name] = vars
	}

	// Phase 1: instantiate the tree depth-first, assigning InstanceIds and
	// recording the child-name -> InstanceId map for each parent, before
	// any logic is lowered (glue blocks need to reference child instances
	// that must already have an id).
	nextID := model.InstanceId(0)
	var instantiate func(moduleName string, path model.InstancePath) model.InstanceId
	instantiate = func(moduleName string, path model.InstancePath) model.InstanceId {
		id := nextID
		nextID++
		d.Instances = append(d.Instances, InstanceInfo{ID: id, ModuleName: moduleName, Path: path})
		d.InstanceModule[id] = moduleName
		d.childOf[id] = make(map[string]map[int]model.InstanceId)

		src := reg.Source[moduleName]
		prefix := pathString(path)
		for _, v := range src.Vars {
			varID, _ := src.VarByName(v.Name)
			d.Names[prefix+v.Name] = model.AbsoluteAddr{Instance: id, Var: varID}
		}
		for _, child := range src.Children {
			count := child.Count
			if count < 1 {
				count = 1
			}
			d.childOf[id][child.Name] = make(map[int]model.InstanceId)
			for idx := 0; idx < count; idx++ {
				childPath := append(append(model.InstancePath{}, path...), model.PathSegment{ChildName: child.Name, ChildIndex: idx})
				childID := instantiate(child.ModuleName, childPath)
				d.childOf[id][child.Name][idx] = childID
			}
		}
		return id
	}
	instantiate(topName, model.InstancePath{})

	// Phase 2: lower every instance's combinational/glue/sequential logic
	// now that every instance id (including children) is known.
	for _, info := range d.Instances {
		sim := reg.Sim[info.ModuleName]
		resolve := func(varName string) model.AbsoluteAddr {
			return resolveInInstance(d, info.ID, info.ModuleName, varName)
		}
		for _, lp := range sim.CombBlocks {
			d.CombPaths = append(d.CombPaths, atomizeCombPath(sim, info.ID, lp, resolve)...)
		}
		for _, glue := range sim.GlueBlocks {
			for _, lp := range glue.Paths {
				d.CombPaths = append(d.CombPaths, atomizeCombPath(sim, info.ID, lp, resolve)...)
			}
		}
		for _, seq := range sim.SeqBlocks {
			d.SeqLogics = append(d.SeqLogics, atomizeSeqLogic(sim, info.ID, seq, resolve))
		}
	}

	return d, nil
}

// Resolve maps a variable name local to inst's module to its AbsoluteAddr,
// exported for pkg/sir to re-resolve InputNode variable references while
// lowering an AtomicPath's Expr (the expression graph was not itself
// rewritten during atomization, only the path's own Target/Sources were).
func (d *Design) Resolve(inst model.InstanceId, varName string) model.AbsoluteAddr {
	return resolveInInstance(d, inst, d.InstanceModule[inst], varName)
}

// resolveInInstance maps a variable name local to moduleName, instantiated
// as `inst`, to its AbsoluteAddr. Variable names of the form
// "childName.portName" (optionally "childName[idx].portName") address the
// given child instance's port instead — the convention pkg/slt's
// glue-block construction uses.
func resolveInInstance(d *Design, inst model.InstanceId, moduleName, varName string) model.AbsoluteAddr {
	owner, idx, local := splitScopedName(varName)
	if owner == "" {
		id := d.ModuleVars[moduleName][local]
		return model.AbsoluteAddr{Instance: inst, Var: id}
	}
	childInst, ok := d.childOf[inst][owner][idx]
	if !ok {
		panic(fmt.Sprintf("flatten: could not resolve child instance %q[%d] under instance %d", owner, idx, inst))
	}
	childModule := d.InstanceModule[childInst]
	id := d.ModuleVars[childModule][local]
	return model.AbsoluteAddr{Instance: childInst, Var: id}
}

// splitScopedName splits "child.port" or "child[idx].port" into its parts.
func splitScopedName(name string) (owner string, idx int, local string) {
	dot := -1
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return "", 0, name
	}
	ownerPart := name[:dot]
	local = name[dot+1:]
	if b := indexOfByte(ownerPart, '['); b >= 0 {
		owner = ownerPart[:b]
		fmt.Sscanf(ownerPart[b+1:], "%d", &idx)
	} else {
		owner = ownerPart
	}
	return owner, idx, local
}

// pathString renders an InstancePath as a dotted prefix ("sub.") for
// building fully-qualified variable names, empty for the top instance.
func pathString(path model.InstancePath) string {
	s := ""
	for _, seg := range path {
		s += seg.ChildName
		if seg.ChildIndex != 0 {
			s += fmt.Sprintf("[%d]", seg.ChildIndex)
		}
		s += "."
	}
	return s
}

func indexOfByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// sortedKeys returns the sorted bit positions of a boundary set.
func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
