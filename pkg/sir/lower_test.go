package sir

import (
	"testing"

	"github.com/hdlsim/celoxgo/pkg/config"
	"github.com/hdlsim/celoxgo/pkg/examples"
	"github.com/hdlsim/celoxgo/pkg/flatten"
	"github.com/hdlsim/celoxgo/pkg/schedule"
	"github.com/hdlsim/celoxgo/pkg/slt"
)

func lowerCounter(t *testing.T) (*flatten.Design, *Program) {
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
	prog, err := Lower(design, sched, false)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	return design, prog
}

func TestLowerRegistersClockAsEvent(t *testing.T) {
	design, prog := lowerCounter(t)

	addr, ok := design.Names["clk"]
	if !ok {
		t.Fatal("design has no \"clk\" signal")
	}
	id, ok := prog.EventIDs[addr]
	if !ok {
		t.Fatal("clk's address was not registered in EventIDs")
	}
	if prog.NumEvents() == 0 {
		t.Error("NumEvents() = 0, want at least 1")
	}

	edge, ok := prog.EventEdge[id]
	if !ok {
		t.Fatalf("event id %d has no entry in EventEdge", id)
	}
	if edge == 0 {
		t.Error("clk's recorded edge is EdgeNone")
	}
}

func TestLowerDoesNotRegisterPlainSignalsAsEvents(t *testing.T) {
	design, prog := lowerCounter(t)

	addr, ok := design.Names["count"]
	if !ok {
		t.Fatal("design has no \"count\" signal")
	}
	if _, ok := prog.EventIDs[addr]; ok {
		t.Error("count (a plain register output, not a clock) was registered as an event")
	}
}

func TestLowerProducesSequentialUnits(t *testing.T) {
	_, prog := lowerCounter(t)

	if len(prog.EvalComb) == 0 {
		// The counter has no combinational logic of its own beyond the
		// sequential always block's next-state expression, which is
		// lowered into the clock domain's own unit, not EvalComb -- so
		// an empty EvalComb here is expected, not a bug. Exercised for
		// documentation: assert the field exists and is a valid slice.
		_ = prog.EvalComb
	}
	total := len(prog.EvalApplyFFs) + len(prog.EvalOnlyFFs)
	if total == 0 {
		t.Error("Lower produced no sequential execution units for the clocked domain")
	}
}
