package simrun

import (
	"container/heap"

	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/simerr"
)

// pendingEvent is one queued value change: at Time, force Addr (a
// registered event signal) to Value.
type pendingEvent struct {
	time  int64
	seq   int64 // insertion order, for the same-timestamp tie-break
	addr  model.AbsoluteAddr
	value uint64
}

// eventQueue is a container/heap.Interface min-heap ordered by (time
// asc, seq asc) -- among events due at the same timestamp, the one
// registered first (schedule() called first, or an earlier clock period)
// fires first, matching the intuitive "events don't reorder themselves"
// expectation spec.md 4.8's discrete-event scheduler assumes.
type eventQueue []*pendingEvent

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].time != q[j].time {
		return q[i].time < q[j].time
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)   { *q = append(*q, x.(*pendingEvent)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// clockState tracks one add_clock-registered periodic toggle.
type clockState struct {
	period int64
}

// Scheduler is spec.md 6's discrete-event driver layered on top of a
// Simulator: a time-ordered queue of pending value changes, periodic
// clocks that reschedule themselves every half-period, and the cascade
// protocol that chases a tick's ripple through every clock domain it
// wakes (spec.md 4.8). Grounded on the teacher's pkg/emulator ULA/tstate
// scheduling (interrupt-at-tstate queue driving the Z80 core) generalized
// from a fixed hardware clock to arbitrary caller-registered events.
type Scheduler struct {
	sim    *Simulator
	queue  eventQueue
	clocks map[model.AbsoluteAddr]*clockState
	last   map[model.AbsoluteAddr]uint64
	now    int64
	seq    int64
}

// NewScheduler wraps sim with an empty, time-zero event queue.
func NewScheduler(sim *Simulator) *Scheduler {
	return &Scheduler{
		sim:    sim,
		clocks: make(map[model.AbsoluteAddr]*clockState),
		last:   make(map[model.AbsoluteAddr]uint64),
	}
}

// Time returns the scheduler's current simulated time.
func (sc *Scheduler) Time() int64 { return sc.now }

// NextEventTime reports the timestamp of the next queued event, or false
// if the queue is empty.
func (sc *Scheduler) NextEventTime() (int64, bool) {
	if len(sc.queue) == 0 {
		return 0, false
	}
	return sc.queue[0].time, true
}

// AddClock registers port as a periodic toggle: 0 at time 0, its first
// rising edge at initialDelay, then toggling every period/2 thereafter.
// Fails with KindNotAnEvent if port is not a registered event.
func (sc *Scheduler) AddClock(port string, period, initialDelay int64) error {
	ref, err := sc.sim.Event(port)
	if err != nil {
		return err
	}
	sc.clocks[ref.Addr] = &clockState{period: period}
	sc.pushRaw(sc.now+initialDelay, ref.Addr, 1)
	return nil
}

// Schedule queues a one-shot value change on a registered event port at
// an absolute simulated time. Fails with KindNotAnEvent if port is not a
// registered event.
func (sc *Scheduler) Schedule(port string, at int64, value uint64) error {
	ref, err := sc.sim.Event(port)
	if err != nil {
		return err
	}
	sc.pushRaw(at, ref.Addr, value)
	return nil
}

func (sc *Scheduler) pushRaw(at int64, addr model.AbsoluteAddr, value uint64) {
	heap.Push(&sc.queue, &pendingEvent{time: at, seq: sc.seq, addr: addr, value: value})
	sc.seq++
}

// Step pops every event due at the earliest queued timestamp, applies
// them, runs the cascade protocol to quiescence, and advances Time to
// that timestamp. Returns false once the queue is empty.
func (sc *Scheduler) Step() (bool, error) {
	if len(sc.queue) == 0 {
		return false, nil
	}
	t := sc.queue[0].time
	var due []*pendingEvent
	for len(sc.queue) > 0 && sc.queue[0].time == t {
		due = append(due, heap.Pop(&sc.queue).(*pendingEvent))
	}
	sc.now = t

	mem := sc.sim.Memory()
	mem.ClearTriggers()

	for _, ev := range due {
		v := sc.sim.varOf[ev.addr]
		width := 1
		var edge model.EdgeKind
		if v != nil {
			width = v.Width
			edge = v.Edge
		}

		old := sc.last[ev.addr]
		addr := model.RegionedAbsoluteAddr{Addr: ev.addr, Region: model.StableRegion}
		mem.WriteBits(addr, 0, width, ev.value, 0)
		sc.last[ev.addr] = ev.value

		if id, ok := sc.sim.prog.EventIDs[ev.addr]; ok && edgeFires(edge, old, ev.value) {
			mem.SetTriggerBit(id)
		}

		if cs, ok := sc.clocks[ev.addr]; ok {
			sc.pushRaw(t+cs.period/2, ev.addr, ev.value^1)
		}
	}

	return true, sc.runCascade()
}

// edgeFires reports whether old->newVal is a trigger-firing transition
// for the given edge sense.
func edgeFires(edge model.EdgeKind, old, newVal uint64) bool {
	switch edge {
	case model.EdgePos:
		return old == 0 && newVal != 0
	case model.EdgeNeg:
		return old != 0 && newVal == 0
	case model.EdgeAsyncHigh:
		return newVal != 0
	case model.EdgeAsyncLow:
		return newVal == 0
	default:
		return false
	}
}

// runCascade implements spec.md 4.8's outer loop: re-evaluate comb,
// collect every newly triggered clock domain, run its eval/apply step
// (fast-path unified, or eval-only-then-apply for a split/cascaded
// domain), and repeat until no domain is newly triggered. Since working-
// region stores are invisible until their domain's Commit lands, no new
// domain can be discovered until the next post-apply eval_comb pass, so
// one collect-run-commit-evalcomb round per outer iteration is sufficient
// (the spec's inner "keep discovering within one round" loop is a no-op
// given that memory model, so it is not separately modeled here).
func (sc *Scheduler) runCascade() error {
	processed := make(map[model.AbsoluteAddr]bool)
	for {
		if err := sc.sim.EvalComb(); err != nil {
			return err
		}
		triggered := sc.collectNewlyTriggered(processed)
		if len(triggered) == 0 {
			return nil
		}

		var applyLater []model.AbsoluteAddr
		for _, addr := range triggered {
			processed[addr] = true
			if units, ok := sc.sim.evalApply[addr]; ok {
				if err := sc.sim.runUnits(units); err != nil {
					return err
				}
				continue
			}
			if err := sc.sim.runUnits(sc.sim.evalOnly[addr]); err != nil {
				return err
			}
			applyLater = append(applyLater, addr)
		}
		for _, addr := range applyLater {
			if err := sc.sim.runUnits(sc.sim.applyFFs[addr]); err != nil {
				return err
			}
		}
	}
}

func (sc *Scheduler) collectNewlyTriggered(processed map[model.AbsoluteAddr]bool) []model.AbsoluteAddr {
	seen := make(map[model.AbsoluteAddr]bool)
	var out []model.AbsoluteAddr
	for addr, id := range sc.sim.prog.EventIDs {
		canon := sc.sim.prog.ClockDomains[addr]
		if processed[canon] || seen[canon] {
			continue
		}
		if sc.sim.mem.TriggerBit(id) {
			out = append(out, canon)
			seen[canon] = true
		}
	}
	return out
}

// RunUntil steps the scheduler until either its queue empties or Time
// would exceed deadline, returning the first error a Step reports (e.g.
// simerr.KindDetectedTrueLoop from a blown true-loop bound).
func (sc *Scheduler) RunUntil(deadline int64) error {
	for {
		next, ok := sc.NextEventTime()
		if !ok || next > deadline {
			return nil
		}
		if _, err := sc.Step(); err != nil {
			return err
		}
	}
}

// RunEvents steps the scheduler exactly n times, failing with
// KindInternalError if the queue empties early.
func (sc *Scheduler) RunEvents(n int) error {
	for i := 0; i < n; i++ {
		more, err := sc.Step()
		if err != nil {
			return err
		}
		if !more {
			return simerr.New(simerr.KindInternalError, "simrun: event queue emptied after %d of %d steps", i, n)
		}
	}
	return nil
}
