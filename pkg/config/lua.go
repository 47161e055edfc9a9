package config

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// LoadLuaOptions runs a Lua build script and converts its returned table
// into an Options value. The script is expected to `return { ... }` with
// keys matching Options' fields in snake_case, e.g.:
//
//	return {
//	  four_state = true,
//	  optimize = false,
//	  vcd_path = "out.vcd",
//	  false_loops = {{"top.a", "top.b"}},
//	  true_loops = {{"top.x", "top.y", 64}},
//	}
//
// This mirrors the teacher's pkg/meta.LuaEvaluator pattern of running a
// short embedded script and pulling typed values back off the Lua stack,
// generalized from evaluating one expression to decoding a whole table.
func LoadLuaOptions(script string) (Options, error) {
	opts := Default()

	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(script); err != nil {
		return opts, fmt.Errorf("config: lua script failed: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return opts, fmt.Errorf("config: lua script must return a table, got %T", ret)
	}

	if v, ok := tbl.RawGetString("four_state").(lua.LBool); ok {
		opts.FourState = bool(v)
	}
	if v, ok := tbl.RawGetString("optimize").(lua.LBool); ok {
		opts.Optimize = bool(v)
	}
	if v, ok := tbl.RawGetString("emit_triggers").(lua.LBool); ok {
		opts.EmitTriggers = bool(v)
	}
	if v, ok := tbl.RawGetString("vcd_path").(lua.LString); ok {
		opts.VCDPath = string(v)
	}

	if fl, ok := tbl.RawGetString("false_loops").(*lua.LTable); ok {
		fl.ForEach(func(_, v lua.LValue) {
			pair, ok := v.(*lua.LTable)
			if !ok || pair.Len() < 2 {
				return
			}
			a, _ := pair.RawGetInt(1).(lua.LString)
			b, _ := pair.RawGetInt(2).(lua.LString)
			opts.FalseLoops = append(opts.FalseLoops, FalseLoop{PathA: string(a), PathB: string(b)})
		})
	}
	if tl, ok := tbl.RawGetString("true_loops").(*lua.LTable); ok {
		tl.ForEach(func(_, v lua.LValue) {
			tup, ok := v.(*lua.LTable)
			if !ok || tup.Len() < 3 {
				return
			}
			a, _ := tup.RawGetInt(1).(lua.LString)
			b, _ := tup.RawGetInt(2).(lua.LString)
			n, _ := tup.RawGetInt(3).(lua.LNumber)
			opts.TrueLoops = append(opts.TrueLoops, TrueLoop{PathA: string(a), PathB: string(b), MaxIter: int(n)})
		})
	}

	loadTraceFlags(tbl, &opts.Trace)
	return opts, nil
}

func loadTraceFlags(tbl *lua.LTable, t *TraceOptions) {
	trace, ok := tbl.RawGetString("trace").(*lua.LTable)
	if !ok {
		return
	}
	flag := func(name string) bool {
		v, _ := trace.RawGetString(name).(lua.LBool)
		return bool(v)
	}
	t.SimModules = flag("sim_modules")
	t.PreAtomizedCombBlocks = flag("pre_atomized_comb_blocks")
	t.AtomizedCombBlocks = flag("atomized_comb_blocks")
	t.FlattenedCombBlocks = flag("flattened_comb_blocks")
	t.ScheduledUnits = flag("scheduled_units")
	t.PreOptimizedSIR = flag("pre_optimized_sir")
	t.PostOptimizedSIR = flag("post_optimized_sir")
	t.AnalyzerIR = flag("analyzer_ir")
	t.PreOptimizedCLIF = flag("pre_optimized_clif")
	t.PostOptimizedCLIF = flag("post_optimized_clif")
	t.Native = flag("native")
	t.OutputToStdout = flag("output_to_stdout")
}
