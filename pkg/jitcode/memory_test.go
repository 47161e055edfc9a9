package jitcode

import (
	"testing"

	"github.com/hdlsim/celoxgo/pkg/config"
	"github.com/hdlsim/celoxgo/pkg/examples"
	"github.com/hdlsim/celoxgo/pkg/flatten"
	"github.com/hdlsim/celoxgo/pkg/layout"
	"github.com/hdlsim/celoxgo/pkg/schedule"
	"github.com/hdlsim/celoxgo/pkg/sir"
	"github.com/hdlsim/celoxgo/pkg/slt"
)

func buildCounterLayout(t *testing.T) (*layout.Layout, *sir.Program) {
	t.Helper()
	modules := examples.Counter()
	reg := &flatten.Registry{Sim: make(map[string]*slt.SimModule), Source: modules}
	for name, m := range modules {
		reg.Sim[name] = slt.NewBuilder(false).BuildModule(m)
	}
	design, err := flatten.Flatten(reg, "counter")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	sched, err := schedule.Schedule(design, config.Default())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	prog, err := sir.Lower(design, sched, false)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	lay := layout.Build(reg, design, prog, prog.NumEvents())
	return lay, prog
}

func TestTriggerBitsStartClear(t *testing.T) {
	lay, prog := buildCounterLayout(t)
	mem := NewMemory(lay, false)
	for id := 0; id < prog.NumEvents(); id++ {
		if mem.TriggerBit(id) {
			t.Errorf("event id %d is set on a freshly allocated Memory", id)
		}
	}
}

func TestSetAndClearTriggerBit(t *testing.T) {
	lay, prog := buildCounterLayout(t)
	if prog.NumEvents() == 0 {
		t.Fatal("counter design registered no events")
	}
	mem := NewMemory(lay, false)

	mem.SetTriggerBit(0)
	if !mem.TriggerBit(0) {
		t.Fatal("TriggerBit(0) false immediately after SetTriggerBit(0)")
	}

	mem.ClearTriggers()
	if mem.TriggerBit(0) {
		t.Fatal("TriggerBit(0) still true after ClearTriggers")
	}
}

func TestInterpreterBackendIsRegistered(t *testing.T) {
	b, ok := GetBackend("interpreter")
	if !ok {
		t.Fatal("no \"interpreter\" backend registered")
	}
	if b.Name() != "interpreter" {
		t.Errorf("backend.Name() = %q, want \"interpreter\"", b.Name())
	}
	var found bool
	for _, name := range ListBackends() {
		if name == "interpreter" {
			found = true
		}
	}
	if !found {
		t.Error("ListBackends() does not include \"interpreter\"")
	}
}

func TestCompileAndRunSequentialUnit(t *testing.T) {
	lay, prog := buildCounterLayout(t)
	mem := NewMemory(lay, false)
	backend, _ := GetBackend("interpreter")

	var units []*sir.ExecutionUnit
	for _, u := range prog.EvalApplyFFs {
		units = append(units, u...)
	}
	for _, u := range prog.EvalOnlyFFs {
		units = append(units, u...)
	}
	if len(units) == 0 {
		t.Fatal("no sequential execution units to compile")
	}

	meta := UnitMeta{EventEdge: prog.EventEdge}
	for _, u := range units {
		r, err := backend.Compile(u, meta)
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		code, _, err := r.Run(mem)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if code != 0 {
			t.Errorf("Run returned nonzero code %d on a fresh memory buffer", code)
		}
	}
}
