package vcd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hdlsim/celoxgo/pkg/config"
	"github.com/hdlsim/celoxgo/pkg/examples"
	"github.com/hdlsim/celoxgo/pkg/simrun"
)

func buildCounterSim(t *testing.T) *simrun.Simulator {
	t.Helper()
	sim, err := simrun.Build(examples.Counter(), "counter", config.Default())
	if err != nil {
		t.Fatalf("simrun.Build: %v", err)
	}
	return sim
}

func TestOpenWritesHeaderAndVarDecls(t *testing.T) {
	sim := buildCounterSim(t)
	path := filepath.Join(t.TempDir(), "out.vcd")

	w, err := Open(path, sim.Design(), sim.Registry())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"$timescale 1ns $end",
		"$scope module counter $end",
		"$var wire 1", // clk or rst, width 1
		"$var wire 8", // count, width 8
		"$upscope $end",
		"$enddefinitions $end",
		"$dumpvars",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("VCD output missing %q:\n%s", want, out)
		}
	}
}

func TestDumpOnlyEmitsChangedSignals(t *testing.T) {
	sim := buildCounterSim(t)
	path := filepath.Join(t.TempDir(), "out.vcd")

	w, err := Open(path, sim.Design(), sim.Registry())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Dump(0, sim.Memory()); err != nil {
		t.Fatalf("Dump(0): %v", err)
	}

	rst, err := sim.Signal("rst")
	if err != nil {
		t.Fatalf("Signal(rst): %v", err)
	}
	if err := sim.Modify(func(io *simrun.IOContext) { io.Set(rst, 0) }); err != nil {
		t.Fatalf("Modify: %v", err)
	}

	clk, err := sim.Event("clk")
	if err != nil {
		t.Fatalf("Event(clk): %v", err)
	}
	if err := sim.TickByID(clk.ID); err != nil {
		t.Fatalf("TickByID: %v", err)
	}

	if err := w.Dump(10, sim.Memory()); err != nil {
		t.Fatalf("Dump(10): %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)

	if !strings.Contains(out, "#10\n") {
		t.Errorf("VCD missing #10 timestamp marker:\n%s", out)
	}
	// count changed from 0 to 1 (8-bit): must appear as a 'b' vector line.
	if !strings.Contains(out, "b00000001") {
		t.Errorf("VCD missing changed count value b00000001:\n%s", out)
	}
}

func TestEncodeIDIsStableAndDistinct(t *testing.T) {
	seen := make(map[string]int)
	for i := 0; i < 200; i++ {
		id := encodeID(i)
		if id == "" {
			t.Fatalf("encodeID(%d) returned empty string", i)
		}
		if prev, ok := seen[id]; ok {
			t.Fatalf("encodeID(%d) collides with encodeID(%d): both %q", i, prev, id)
		}
		seen[id] = i
		for _, r := range id {
			if r < 33 || r > 126 {
				t.Fatalf("encodeID(%d) = %q contains out-of-range rune %q", i, id, r)
			}
		}
	}
}

func TestEncodeIDZeroIsFirstPrintable(t *testing.T) {
	if got := encodeID(0); got != string(rune(33)) {
		t.Errorf("encodeID(0) = %q, want %q", got, string(rune(33)))
	}
}
