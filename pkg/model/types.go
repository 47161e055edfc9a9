// Package model holds the data model the core operates on: the
// front-end-supplied abstract IR (variables, modules, declarations,
// expressions) plus the structural entities the core itself introduces
// while elaborating that IR (instances, addresses, bit accesses).
package model

import "fmt"

// VarRole classifies what a Variable is used for within its module.
type VarRole int

const (
	RoleInternal VarRole = iota
	RoleInput
	RoleOutput
	RoleInout
	RoleReset
	RoleClock
)

func (r VarRole) String() string {
	switch r {
	case RoleInput:
		return "input"
	case RoleOutput:
		return "output"
	case RoleInout:
		return "inout"
	case RoleReset:
		return "reset"
	case RoleClock:
		return "clock"
	default:
		return "internal"
	}
}

// EdgeKind is the trigger sense of a clock or async-reset signal.
type EdgeKind int

const (
	EdgeNone EdgeKind = iota
	EdgePos
	EdgeNeg
	EdgeAsyncHigh
	EdgeAsyncLow
)

func (e EdgeKind) String() string {
	switch e {
	case EdgePos:
		return "posedge"
	case EdgeNeg:
		return "negedge"
	case EdgeAsyncHigh:
		return "async-high"
	case EdgeAsyncLow:
		return "async-low"
	default:
		return "none"
	}
}

// Variable is an identifier within a Module: a bit width, signedness,
// four-state-ness, optional array dimensions, and a role.
type Variable struct {
	Name      string
	Width     int
	Signed    bool
	FourState bool // logic (4-state) vs bit (2-state)
	ArrayDims []int
	Role      VarRole
	Edge      EdgeKind // meaningful only when Role == RoleClock or RoleReset
}

func (v *Variable) String() string {
	return fmt.Sprintf("%s[%d:0]", v.Name, v.Width-1)
}

// InstanceId uniquely identifies a module instance in the elaborated
// design. The top-level instance is 0.
type InstanceId int

// VarId uniquely identifies a variable within its owning module.
type VarId int

// PathSegment is one (child-name, child-index) hop in an InstancePath.
type PathSegment struct {
	ChildName  string
	ChildIndex int
}

// InstancePath is the ordered sequence of hops from the top instance.
type InstancePath []PathSegment

func (p InstancePath) String() string {
	s := ""
	for i, seg := range p {
		if i > 0 {
			s += "."
		}
		s += seg.ChildName
		if seg.ChildIndex != 0 {
			s += fmt.Sprintf("[%d]", seg.ChildIndex)
		}
	}
	return s
}

// AbsoluteAddr identifies a storage cell in the elaborated design.
type AbsoluteAddr struct {
	Instance InstanceId
	Var      VarId
}

func (a AbsoluteAddr) String() string {
	return fmt.Sprintf("i%d.v%d", a.Instance, a.Var)
}

// Region 0 is the stable (externally visible, post-commit) region; any
// other positive region number is a working region.
const StableRegion = 0

// RegionedAbsoluteAddr pairs an AbsoluteAddr with a region number.
type RegionedAbsoluteAddr struct {
	Addr   AbsoluteAddr
	Region int
}

func (r RegionedAbsoluteAddr) String() string {
	if r.Region == StableRegion {
		return r.Addr.String()
	}
	return fmt.Sprintf("%s@w%d", r.Addr, r.Region)
}

// BitAccess is a half-open bit interval [Lsb, Msb) into a variable.
type BitAccess struct {
	Lsb, Msb int
}

// Width returns the number of bits covered by the access.
func (b BitAccess) Width() int { return b.Msb - b.Lsb }

// Overlaps reports whether b and o share any bit.
func (b BitAccess) Overlaps(o BitAccess) bool {
	return b.Lsb < o.Msb && o.Lsb < b.Msb
}

// Contains reports whether b fully covers o.
func (b BitAccess) Contains(o BitAccess) bool {
	return b.Lsb <= o.Lsb && o.Msb <= b.Msb
}

func (b BitAccess) String() string {
	if b.Width() == 1 {
		return fmt.Sprintf("[%d]", b.Lsb)
	}
	return fmt.Sprintf("[%d:%d]", b.Msb-1, b.Lsb)
}

// ChildInstance is a module instantiated inside a parent module. Count > 1
// represents a generate-style array of instances.
type ChildInstance struct {
	Name        string
	ModuleName  string
	Count       int // 1 for a scalar instance
	Connections []PortBind
}

// PortBind connects one port of a child instance to a parent-side
// expression (for inputs) or variable (for outputs).
type PortBind struct {
	ChildPort   string
	ChildAccess BitAccess // bit range on the child side (defaults to whole port)
	ParentVar   string
	ParentAccess BitAccess // bit range on the parent side
	IsOutput    bool // true if data flows child -> parent
}

// Module is a named collection of variables, declarations, and child
// instance descriptors.
type Module struct {
	Name      string
	Vars      []*Variable
	varIndex  map[string]VarId
	CombBlock []*CombBlock
	SeqBlocks []*SeqBlock
	Children  []*ChildInstance
}

// NewModule creates an empty module ready for variables to be added.
func NewModule(name string) *Module {
	return &Module{Name: name, varIndex: make(map[string]VarId)}
}

// AddVar registers a variable and returns its VarId.
func (m *Module) AddVar(v *Variable) VarId {
	id := VarId(len(m.Vars))
	m.Vars = append(m.Vars, v)
	m.varIndex[v.Name] = id
	return id
}

// VarByName looks up a variable's id by name.
func (m *Module) VarByName(name string) (VarId, bool) {
	id, ok := m.varIndex[name]
	return id, ok
}

// Var returns the Variable for a VarId.
func (m *Module) Var(id VarId) *Variable {
	return m.Vars[id]
}

// ChildByName finds a declared child instance by name.
func (m *Module) ChildByName(name string) (*ChildInstance, bool) {
	for _, c := range m.Children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}
