package flatten

import (
	"testing"

	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/slt"
)

func vref(name string, lsb, msb int) model.VarRefExpr {
	return model.VarRefExpr{Name: name, Access: model.BitAccess{Lsb: lsb, Msb: msb}}
}

// slicedOutputModule assigns two disjoint nibbles of "out" from two
// independent inputs, inside a single always_comb-style block.
func slicedOutputModule() *model.Module {
	m := model.NewModule("slicer")
	m.AddVar(&model.Variable{Name: "a", Width: 4, Role: model.RoleInput})
	m.AddVar(&model.Variable{Name: "b", Width: 4, Role: model.RoleInput})
	m.AddVar(&model.Variable{Name: "out", Width: 8, Role: model.RoleOutput})

	m.CombBlock = append(m.CombBlock, &model.CombBlock{Body: []model.Stmt{
		&model.AssignStmt{Target: vref("out", 0, 4), Value: vref("a", 0, 4)},
		&model.AssignStmt{Target: vref("out", 4, 8), Value: vref("b", 0, 4)},
	}})
	return m
}

func TestFlattenAtomizesDisjointSlicesIntoSeparatePaths(t *testing.T) {
	m := slicedOutputModule()
	reg := &Registry{
		Sim:    map[string]*slt.SimModule{"slicer": slt.NewBuilder(false).BuildModule(m)},
		Source: map[string]*model.Module{"slicer": m},
	}

	design, err := Flatten(reg, "slicer")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}

	var out []AtomicPath
	outAddr, ok := design.Names["out"]
	if !ok {
		t.Fatal("design has no \"out\" signal")
	}
	for _, p := range design.CombPaths {
		if p.Target == outAddr {
			out = append(out, p)
		}
	}

	if len(out) != 2 {
		t.Fatalf("atomized %d paths for \"out\", want exactly 2 (one per independent nibble): %+v", len(out), out)
	}

	seen := map[model.BitAccess]bool{}
	for _, p := range out {
		seen[p.Access] = true
	}
	want := []model.BitAccess{{Lsb: 0, Msb: 4}, {Lsb: 4, Msb: 8}}
	for _, w := range want {
		if !seen[w] {
			t.Errorf("missing atomic path for access %v among %+v", w, out)
		}
	}
}

func TestFlattenUnknownTopFails(t *testing.T) {
	m := slicedOutputModule()
	reg := &Registry{
		Sim:    map[string]*slt.SimModule{"slicer": slt.NewBuilder(false).BuildModule(m)},
		Source: map[string]*model.Module{"slicer": m},
	}
	if _, err := Flatten(reg, "nosuch"); err == nil {
		t.Error("expected an error flattening an unknown top module")
	}
}

func TestFlattenRegistersNamedSignals(t *testing.T) {
	m := slicedOutputModule()
	reg := &Registry{
		Sim:    map[string]*slt.SimModule{"slicer": slt.NewBuilder(false).BuildModule(m)},
		Source: map[string]*model.Module{"slicer": m},
	}
	design, err := Flatten(reg, "slicer")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	for _, name := range []string{"a", "b", "out"} {
		if _, ok := design.Names[name]; !ok {
			t.Errorf("design.Names missing %q", name)
		}
	}
}
