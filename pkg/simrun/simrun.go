// Package simrun implements C9: the runtime driver that turns a compiled
// Program into a live simulator a caller can poke and tick, plus the
// discrete-event scheduler that drives it through simulated time.
// Grounded on the teacher's pkg/emulator/z80.go (a register-bank-plus-
// memory "machine" wrapping a compiled program, driven step by step from
// cmd/mzr's REPL) and pkg/mirvm/vm.go's build-then-run pipeline shape;
// generalized from a Z80 CPU's single fetch-execute loop to the
// multi-domain eval_comb/eval_apply_ff/cascade protocol spec.md 4.8
// describes.
package simrun

import (
	"fmt"
	"sort"

	"github.com/hdlsim/celoxgo/pkg/config"
	"github.com/hdlsim/celoxgo/pkg/flatten"
	"github.com/hdlsim/celoxgo/pkg/jitcode"
	"github.com/hdlsim/celoxgo/pkg/layout"
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/optimize"
	"github.com/hdlsim/celoxgo/pkg/schedule"
	"github.com/hdlsim/celoxgo/pkg/simerr"
	"github.com/hdlsim/celoxgo/pkg/sir"
	"github.com/hdlsim/celoxgo/pkg/slt"
)

// SignalRef names a resolved, gettable/settable signal: a dotted
// hierarchical path plus its stable-region address and shape.
type SignalRef struct {
	Path      string
	Addr      model.AbsoluteAddr
	Width     int
	FourState bool
}

// EventRef names a resolved, tick()/schedule()-able clock or async-reset
// port.
type EventRef struct {
	Path string
	Addr model.AbsoluteAddr
	ID   int
	Edge model.EdgeKind
}

// Simulator is spec.md 6's Simulator object: a built Program bound to one
// packed Memory buffer, ready for modify/get/tick calls.
type Simulator struct {
	design *flatten.Design
	reg    *flatten.Registry
	prog   *sir.Program
	layout *layout.Layout
	mem    *jitcode.Memory
	opts   config.Options

	varOf map[model.AbsoluteAddr]*model.Variable

	combUnits []jitcode.Runnable
	evalApply map[model.AbsoluteAddr][]jitcode.Runnable
	evalOnly  map[model.AbsoluteAddr][]jitcode.Runnable
	applyFFs  map[model.AbsoluteAddr][]jitcode.Runnable

	dirty bool

	trace Trace
}

// Trace holds the intermediate artifacts the builder retains when
// opts.Trace asks for them (spec.md 6): SimModules, ScheduledUnits,
// PreOptimizedSIR and PostOptimizedSIR. The other TraceOptions flags have
// no field here and are ignored.
type Trace struct {
	SimModules       map[string]*slt.SimModule
	ScheduledUnits   *schedule.Schedule
	PreOptimizedSIR  *sir.Program
	PostOptimizedSIR *sir.Program
}

// Build runs the whole C1-C8 pipeline over a front-end-supplied module
// set (the parsed/elaborated IR spec.md 1 and 6 place out of scope) and
// returns a ready-to-drive Simulator. modules must contain topName.
func Build(modules map[string]*model.Module, topName string, opts config.Options) (*Simulator, error) {
	if _, ok := modules[topName]; !ok {
		return nil, simerr.New(simerr.KindInternalError, "simrun: top module %q not found", topName)
	}

	reg := &flatten.Registry{Sim: make(map[string]*slt.SimModule), Source: modules}
	var trace Trace
	if opts.Trace.SimModules {
		trace.SimModules = make(map[string]*slt.SimModule, len(modules))
	}
	for name, m := range modules {
		b := slt.NewBuilder(opts.FourState)
		sim := b.BuildModule(m)
		reg.Sim[name] = sim
		if trace.SimModules != nil {
			trace.SimModules[name] = sim
		}
	}

	design, err := flatten.Flatten(reg, topName)
	if err != nil {
		return nil, err
	}

	sched, err := schedule.Schedule(design, opts)
	if err != nil {
		return nil, err
	}
	if opts.Trace.ScheduledUnits {
		trace.ScheduledUnits = sched
	}

	prog, err := sir.Lower(design, sched, opts.FourState)
	if err != nil {
		return nil, err
	}
	if opts.Trace.PreOptimizedSIR {
		trace.PreOptimizedSIR = prog
	}

	if opts.Optimize {
		if err := optimize.RunProgram(optimize.NewManager(), prog); err != nil {
			return nil, err
		}
	}
	if opts.Trace.PostOptimizedSIR {
		trace.PostOptimizedSIR = prog
	}

	lay := layout.Build(reg, design, prog, prog.NumEvents())

	mem := jitcode.NewMemory(lay, opts.FourState)

	backend, ok := jitcode.GetBackend("interpreter")
	if !ok {
		return nil, simerr.New(simerr.KindCodegen, "simrun: no jitcode backend registered")
	}

	// The cascade protocol (spec.md 4.8) depends on trigger detection for
	// every domain, cascaded or not, regardless of whether the caller
	// asked to trace triggers for inspection -- so EmitTriggers is forced
	// on whenever the design has any event at all.
	meta := jitcode.UnitMeta{
		FourState:    opts.FourState,
		EmitTriggers: opts.EmitTriggers || prog.NumEvents() > 0,
		EventEdge:    prog.EventEdge,
	}

	compileAll := func(units []*sir.ExecutionUnit) ([]jitcode.Runnable, error) {
		out := make([]jitcode.Runnable, 0, len(units))
		for _, u := range units {
			r, err := backend.Compile(u, meta)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, nil
	}

	combUnits, err := compileAll(prog.EvalComb)
	if err != nil {
		return nil, err
	}

	evalApply := make(map[model.AbsoluteAddr][]jitcode.Runnable, len(prog.EvalApplyFFs))
	for addr, units := range prog.EvalApplyFFs {
		r, err := compileAll(units)
		if err != nil {
			return nil, err
		}
		evalApply[addr] = r
	}
	evalOnly := make(map[model.AbsoluteAddr][]jitcode.Runnable, len(prog.EvalOnlyFFs))
	for addr, units := range prog.EvalOnlyFFs {
		r, err := compileAll(units)
		if err != nil {
			return nil, err
		}
		evalOnly[addr] = r
	}
	applyFFs := make(map[model.AbsoluteAddr][]jitcode.Runnable, len(prog.ApplyFFs))
	for addr, units := range prog.ApplyFFs {
		r, err := compileAll(units)
		if err != nil {
			return nil, err
		}
		applyFFs[addr] = r
	}

	varOf := make(map[model.AbsoluteAddr]*model.Variable, len(design.Names))
	for _, info := range design.Instances {
		src := reg.Source[info.ModuleName]
		for _, v := range src.Vars {
			id, _ := src.VarByName(v.Name)
			varOf[model.AbsoluteAddr{Instance: info.ID, Var: id}] = v
		}
	}

	s := &Simulator{
		design:    design,
		reg:       reg,
		prog:      prog,
		layout:    lay,
		mem:       mem,
		opts:      opts,
		varOf:     varOf,
		combUnits: combUnits,
		evalApply: evalApply,
		evalOnly:  evalOnly,
		applyFFs:  applyFFs,
		dirty:     true,
		trace:     trace,
	}
	if err := s.EvalComb(); err != nil {
		return nil, err
	}
	return s, nil
}

// Trace returns whichever build artifacts opts.Trace requested.
func (s *Simulator) Trace() Trace { return s.trace }

// Signal resolves a dotted hierarchical path to a SignalRef, failing with
// KindInternalError if no such path exists (spec.md 6's signal()).
func (s *Simulator) Signal(path string) (SignalRef, error) {
	addr, ok := s.design.Names[path]
	if !ok {
		return SignalRef{}, simerr.New(simerr.KindInternalError, "simrun: no signal named %q", path)
	}
	v := s.varOf[addr]
	return SignalRef{Path: path, Addr: addr, Width: v.Width, FourState: v.FourState}, nil
}

// Event resolves a dotted hierarchical path to an EventRef, failing with
// KindNotAnEvent if the signal is not a registered clock/reset trigger
// (spec.md 6's event()).
func (s *Simulator) Event(path string) (EventRef, error) {
	addr, ok := s.design.Names[path]
	if !ok {
		return EventRef{}, simerr.New(simerr.KindInternalError, "simrun: no signal named %q", path)
	}
	id, ok := s.prog.EventIDs[addr]
	if !ok {
		return EventRef{}, simerr.New(simerr.KindNotAnEvent, "simrun: %q is not a registered event", path)
	}
	v := s.varOf[addr]
	return EventRef{Path: path, Addr: addr, ID: id, Edge: v.Edge}, nil
}

// NamedSignals returns every resolvable signal, keyed by dotted path.
func (s *Simulator) NamedSignals() map[string]SignalRef {
	out := make(map[string]SignalRef, len(s.design.Names))
	for path, addr := range s.design.Names {
		v := s.varOf[addr]
		out[path] = SignalRef{Path: path, Addr: addr, Width: v.Width, FourState: v.FourState}
	}
	return out
}

// NamedEvents returns every registered event, keyed by dotted path.
func (s *Simulator) NamedEvents() map[string]EventRef {
	out := make(map[string]EventRef, len(s.prog.EventIDs))
	for path, addr := range s.design.Names {
		id, ok := s.prog.EventIDs[addr]
		if !ok {
			continue
		}
		v := s.varOf[addr]
		out[path] = EventRef{Path: path, Addr: addr, ID: id, Edge: v.Edge}
	}
	return out
}

// NamedHierarchy returns every elaborated instance's dotted path, in
// instantiation (depth-first, parent-before-child) order.
func (s *Simulator) NamedHierarchy() []string {
	out := make([]string, 0, len(s.design.Instances))
	for _, info := range s.design.Instances {
		out = append(out, info.Path.String())
	}
	return out
}

func (s *Simulator) runUnits(units []jitcode.Runnable) error {
	for _, u := range units {
		code, _, err := u.Run(s.mem)
		if err != nil {
			return err
		}
		if code != 0 {
			return simerr.New(simerr.Kind(code), "runtime error during simulation")
		}
	}
	return nil
}

// EvalComb re-runs every combinational execution unit against the
// current stable state (spec.md 4.8 step "eval_comb"). Callers rarely
// need to call this directly: Modify/Get/Tick call it for you, tracked by
// a dirty flag so repeated Get calls between Modify calls don't re-run it.
func (s *Simulator) EvalComb() error {
	if err := s.runUnits(s.combUnits); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *Simulator) ensureClean() error {
	if !s.dirty {
		return nil
	}
	return s.EvalComb()
}

// IOContext batches input writes under a single Modify call so the
// comb-net re-evaluation is deferred until every write in the batch has
// landed (spec.md 6's modify()).
type IOContext struct{ s *Simulator }

// Set writes a plain (known) value into ref, masked to ref.Width.
func (c *IOContext) Set(ref SignalRef, value uint64) {
	c.SetFourState(ref, value, 0)
}

// SetFourState writes a (value, mask) pair into ref; mask bits set to 1
// mark the corresponding value bit unknown (X/Z). mask is ignored when
// the simulator was built with FourState off.
func (c *IOContext) SetFourState(ref SignalRef, value, mask uint64) {
	addr := model.RegionedAbsoluteAddr{Addr: ref.Addr, Region: model.StableRegion}
	c.s.mem.WriteBits(addr, 0, ref.Width, value, mask)
	c.s.dirty = true
}

// Modify runs fn against a fresh IOContext bound to s, then re-evaluates
// every combinational net exactly once for the whole batch.
func (s *Simulator) Modify(fn func(*IOContext)) error {
	fn(&IOContext{s: s})
	return s.EvalComb()
}

// Get reads ref's current value, forcing a pending comb re-evaluation
// first if needed. Values wider than 64 bits are truncated to their low
// 64 bits, since pkg/jitcode.Memory.ReadBits returns a uint64.
func (s *Simulator) Get(ref SignalRef) (uint64, error) {
	v, _, err := s.GetFourState(ref)
	return v, err
}

// GetFourState is Get plus the unknown-bit mask.
func (s *Simulator) GetFourState(ref SignalRef) (value, mask uint64, err error) {
	if err := s.ensureClean(); err != nil {
		return 0, 0, err
	}
	addr := model.RegionedAbsoluteAddr{Addr: ref.Addr, Region: model.StableRegion}
	v, m := s.mem.ReadBits(addr, 0, ref.Width)
	return v, m, nil
}

// Tick drives a single registered event directly, with no notion of
// simulated time: its domain's eval/apply units run once, then every
// combinational net is re-evaluated. Cross-domain cascades spawned by
// this tick are not chased -- callers needing the full cascade protocol
// should drive clocks through a Scheduler instead (spec.md 6 documents
// tick() as the simpler, non-timed entry point; Scheduler.Step implements
// the timed one).
func (s *Simulator) Tick(ref EventRef) error {
	return s.TickByID(ref.ID)
}

// TickByID is Tick, resolving the event by its dense id instead of an
// EventRef (spec.md 6's tick_by_id()).
func (s *Simulator) TickByID(id int) error {
	addr, ok := s.addrForEvent(id)
	if !ok {
		return simerr.New(simerr.KindNotAnEvent, "simrun: no event with id %d", id)
	}
	if err := s.runDomain(addr); err != nil {
		return err
	}
	return s.EvalComb()
}

// TickByIDN calls TickByID n times in a row (spec.md 6's tick_by_id_n()).
func (s *Simulator) TickByIDN(id, n int) error {
	for i := 0; i < n; i++ {
		if err := s.TickByID(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) addrForEvent(id int) (model.AbsoluteAddr, bool) {
	for addr, evID := range s.prog.EventIDs {
		if evID == id {
			return addr, true
		}
	}
	return model.AbsoluteAddr{}, false
}

// runDomain runs one clock domain's eval/apply step, unified or split.
func (s *Simulator) runDomain(addr model.AbsoluteAddr) error {
	canon := s.prog.ClockDomains[addr]
	if units, ok := s.evalApply[canon]; ok {
		return s.runUnits(units)
	}
	if err := s.runUnits(s.evalOnly[canon]); err != nil {
		return err
	}
	return s.runUnits(s.applyFFs[canon])
}

// Dump formats every named signal's current value for diagnostic display
// (spec.md 6's dump()), sorted by path for determinism.
func (s *Simulator) Dump() (string, error) {
	if err := s.ensureClean(); err != nil {
		return "", err
	}
	paths := make([]string, 0, len(s.design.Names))
	for p := range s.design.Names {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := ""
	for _, p := range paths {
		ref, _ := s.Signal(p)
		v, m, _ := s.GetFourState(ref)
		if ref.FourState && m != 0 {
			out += fmt.Sprintf("%s = %db'%0*bx%0*b\n", p, ref.Width, ref.Width, v, ref.Width, m)
		} else {
			out += fmt.Sprintf("%s = %d'h%x\n", p, ref.Width, v)
		}
	}
	return out, nil
}

// Memory exposes the packed buffer directly for pkg/vcd's dumper.
func (s *Simulator) Memory() *jitcode.Memory { return s.mem }

// Design exposes the flattened design for callers (pkg/vcd) that need
// the instance hierarchy or variable metadata the Simulator itself
// already holds privately.
func (s *Simulator) Design() *flatten.Design { return s.design }

// Registry exposes the per-module Registry pkg/vcd needs for variable
// width/four-state-ness when emitting $var declarations.
func (s *Simulator) Registry() *flatten.Registry { return s.reg }

// Program exposes the lowered Program, mainly so tests can assert on
// event wiring (NumEvents, EventEdge) without rebuilding one.
func (s *Simulator) Program() *sir.Program { return s.prog }
