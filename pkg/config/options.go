// Package config holds the Simulator.build options (spec.md 6) and a
// Lua-scripted loader for them, grounded on the teacher's embedded-Lua
// compile-time evaluator (pkg/meta/lua_evaluator.go) — generalized from
// evaluating MinZ metaprogramming expressions to evaluating a build
// configuration script that returns a table of option fields.
package config

// FalseLoop names a variable pair the user asserts does not form a true
// combinational cycle; the scheduler authorizes it by emitting the SCC's
// body twice in topological order instead of failing with
// CombinationalLoop.
type FalseLoop struct {
	PathA, PathB string
}

// TrueLoop names a variable pair the user asserts forms a genuine
// fixed-point iteration, bounded by MaxIter.
type TrueLoop struct {
	PathA, PathB string
	MaxIter      int
}

// TraceOptions toggles capture of one intermediate build artifact each,
// per spec.md 6.
type TraceOptions struct {
	SimModules            bool
	PreAtomizedCombBlocks  bool
	AtomizedCombBlocks     bool
	FlattenedCombBlocks    bool
	ScheduledUnits         bool
	PreOptimizedSIR        bool
	PostOptimizedSIR       bool
	AnalyzerIR             bool
	PreOptimizedCLIF       bool
	PostOptimizedCLIF      bool
	Native                 bool
	OutputToStdout         bool
}

// Options controls Simulator.build, mirroring spec.md 6's Options record.
type Options struct {
	FourState     bool
	Optimize      bool
	EmitTriggers  bool
	VCDPath       string // empty means disabled
	FalseLoops    []FalseLoop
	TrueLoops     []TrueLoop
	Trace         TraceOptions
}

// Default returns the spec's documented defaults: two-state, optimized,
// no VCD, no loop annotations, no tracing.
func Default() Options {
	return Options{
		FourState: false,
		Optimize:  true,
	}
}
