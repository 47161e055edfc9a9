package simrun

import (
	"testing"

	"github.com/hdlsim/celoxgo/pkg/config"
	"github.com/hdlsim/celoxgo/pkg/examples"
)

func TestSchedulerAddClockTogglesCounter(t *testing.T) {
	sim := buildCounter(t, config.Default())
	rst, _ := sim.Signal("rst")
	sim.Modify(func(io *IOContext) { io.Set(rst, 0) })

	sc := NewScheduler(sim)
	if err := sc.AddClock("clk", 10, 5); err != nil {
		t.Fatalf("AddClock: %v", err)
	}

	count, _ := sim.Signal("count")
	for i := uint64(1); i <= 4; i++ {
		// Each period contributes one posedge (the negedge at t+period
		// doesn't advance a posedge-triggered counter) -- step twice per
		// period to cross both the rising and falling half-toggle.
		if _, err := sc.Step(); err != nil {
			t.Fatalf("Step (rising): %v", err)
		}
		if _, err := sc.Step(); err != nil {
			t.Fatalf("Step (falling): %v", err)
		}
		v, err := sim.Get(count)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != i {
			t.Errorf("after %d periods, count = %d, want %d", i, v, i)
		}
	}
}

func TestSchedulerStepAdvancesTime(t *testing.T) {
	sim := buildCounter(t, config.Default())
	sc := NewScheduler(sim)
	if err := sc.AddClock("clk", 10, 5); err != nil {
		t.Fatalf("AddClock: %v", err)
	}
	if sc.Time() != 0 {
		t.Fatalf("initial Time() = %d, want 0", sc.Time())
	}
	if _, err := sc.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if sc.Time() != 5 {
		t.Errorf("Time() after first step = %d, want 5", sc.Time())
	}
	if _, err := sc.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if sc.Time() != 10 {
		t.Errorf("Time() after second step = %d, want 10", sc.Time())
	}
}

func TestSchedulerStepReturnsFalseOnEmptyQueue(t *testing.T) {
	sim := buildCounter(t, config.Default())
	sc := NewScheduler(sim)
	more, err := sc.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if more {
		t.Error("Step() on an empty queue reported more work pending")
	}
}

func TestSchedulerScheduleOneShot(t *testing.T) {
	sim := buildCounter(t, config.Default())
	sc := NewScheduler(sim)
	if err := sc.Schedule("clk", 100, 1); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	next, ok := sc.NextEventTime()
	if !ok || next != 100 {
		t.Fatalf("NextEventTime() = (%d, %v), want (100, true)", next, ok)
	}
}

func TestSchedulerScheduleUnknownPortFails(t *testing.T) {
	sim := buildCounter(t, config.Default())
	sc := NewScheduler(sim)
	if err := sc.Schedule("nosuch", 0, 1); err == nil {
		t.Error("expected an error scheduling an unregistered port")
	}
	if err := sc.AddClock("nosuch", 10, 5); err == nil {
		t.Error("expected an error registering a clock on an unregistered port")
	}
}

func TestSchedulerSameTimestampFIFOOrder(t *testing.T) {
	sim := buildCounter(t, config.Default())
	rst, _ := sim.Signal("rst")
	sim.Modify(func(io *IOContext) { io.Set(rst, 0) })

	sc := NewScheduler(sim)
	if err := sc.Schedule("clk", 5, 1); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := sc.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	count, _ := sim.Signal("count")
	if v, _ := sim.Get(count); v != 1 {
		t.Fatalf("count = %d after priming edge, want 1", v)
	}

	// Two one-shots land at t=10 on the same port: clk->0 registered
	// first, clk->1 registered second. Processed in insertion order this
	// is a 1->0->1 sequence -- a real posedge against clk's last-known
	// value of 1, so count should tick again. If the tie-break were
	// anything other than FIFO insertion order, the 1->0 leg could be
	// applied last instead, leaving clk's net transition as a negedge
	// that a posedge-triggered counter never sees.
	if err := sc.Schedule("clk", 10, 0); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := sc.Schedule("clk", 10, 1); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := sc.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	v, err := sim.Get(count)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 2 {
		t.Errorf("count = %d, want 2 (FIFO-ordered clk 0-then-1 at t=10 should fire one more posedge)", v)
	}
}

func TestSchedulerCascadesIntoChildClockDomain(t *testing.T) {
	sim, err := Build(examples.ClockDivider(), "top", config.Default())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rst, _ := sim.Signal("rst")
	sim.Modify(func(io *IOContext) { io.Set(rst, 0) })

	sc := NewScheduler(sim)
	if err := sc.AddClock("clk", 10, 5); err != nil {
		t.Fatalf("AddClock: %v", err)
	}

	count, err := sim.Signal("sub.count")
	if err != nil {
		t.Fatalf("Signal(sub.count): %v", err)
	}

	// div toggles on every clk posedge; sub's counter is clocked from div,
	// so it advances on every other clk posedge. Eight clk half-periods
	// (4 full periods, 4 clk posedges) should leave sub.count at 2.
	for i := 0; i < 8; i++ {
		if _, err := sc.Step(); err != nil {
			t.Fatalf("Step #%d: %v", i, err)
		}
	}
	v, err := sim.Get(count)
	if err != nil {
		t.Fatalf("Get(sub.count): %v", err)
	}
	if v != 2 {
		t.Errorf("sub.count = %d after 4 clk posedges, want 2", v)
	}
}

func TestRunUntilStopsAtDeadline(t *testing.T) {
	sim := buildCounter(t, config.Default())
	sc := NewScheduler(sim)
	if err := sc.AddClock("clk", 10, 5); err != nil {
		t.Fatalf("AddClock: %v", err)
	}
	if err := sc.RunUntil(24); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if sc.Time() > 24 {
		t.Errorf("Time() = %d, exceeds deadline 24", sc.Time())
	}
	next, ok := sc.NextEventTime()
	if ok && next <= 24 {
		t.Errorf("an event at %d remains due at or before the deadline", next)
	}
}

func TestRunEventsFailsWhenQueueEmptiesEarly(t *testing.T) {
	sim := buildCounter(t, config.Default())
	sc := NewScheduler(sim)
	if err := sc.Schedule("clk", 5, 1); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := sc.RunEvents(3); err == nil {
		t.Error("expected RunEvents to fail once the single queued event was consumed")
	}
}
