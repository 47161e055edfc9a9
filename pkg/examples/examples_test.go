package examples

import "testing"

func TestCounterHasExpectedPorts(t *testing.T) {
	mods := Counter()
	m, ok := mods["counter"]
	if !ok {
		t.Fatal("Counter() did not return a \"counter\" module")
	}
	for _, want := range []struct {
		name  string
		width int
	}{
		{"clk", 1},
		{"rst", 1},
		{"count", 8},
	} {
		id, ok := m.VarByName(want.name)
		if !ok {
			t.Fatalf("counter module has no var %q", want.name)
		}
		if got := m.Vars[id].Width; got != want.width {
			t.Errorf("var %q width = %d, want %d", want.name, got, want.width)
		}
	}
	if len(m.SeqBlocks) != 1 {
		t.Fatalf("counter module has %d seq blocks, want 1", len(m.SeqBlocks))
	}
	if m.SeqBlocks[0].Reset == nil {
		t.Error("counter's seq block has no reset spec")
	}
}

func TestClockDividerWiresChildInstance(t *testing.T) {
	mods := ClockDivider()
	top, ok := mods["top"]
	if !ok {
		t.Fatal("ClockDivider() did not return a \"top\" module")
	}
	if _, ok := mods["counter"]; !ok {
		t.Fatal("ClockDivider() did not return a \"counter\" module")
	}
	if len(top.Children) != 1 {
		t.Fatalf("top has %d children, want 1", len(top.Children))
	}
	child := top.Children[0]
	if child.ModuleName != "counter" {
		t.Errorf("child.ModuleName = %q, want %q", child.ModuleName, "counter")
	}
	if child.Count != 1 {
		t.Errorf("child.Count = %d, want 1", child.Count)
	}
	if len(child.Connections) != 2 {
		t.Fatalf("child has %d connections, want 2", len(child.Connections))
	}
	var sawClk, sawRst bool
	for _, c := range child.Connections {
		switch c.ChildPort {
		case "clk":
			sawClk = c.ParentVar == "div"
		case "rst":
			sawRst = c.ParentVar == "rst"
		}
	}
	if !sawClk {
		t.Error("child's clk port is not bound to parent's div signal")
	}
	if !sawRst {
		t.Error("child's rst port is not bound to parent's rst signal")
	}
}

func TestModulesAreIndependentPerCall(t *testing.T) {
	a := Counter()["counter"]
	b := Counter()["counter"]
	if a == b {
		t.Error("Counter() returned the same module pointer on repeated calls")
	}
}
