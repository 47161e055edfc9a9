package slt

import (
	"testing"

	"github.com/hdlsim/celoxgo/pkg/model"
)

func vref(name string, width int) model.VarRefExpr {
	return model.VarRefExpr{Name: name, Access: model.BitAccess{Lsb: 0, Msb: width}}
}

// muxModule assigns the same full-width range of "out" in both arms of an
// if/else, which the symbolic bit-store must merge into a single LogicPath
// whose expression is a MuxNode, not two separate paths.
func muxModule() *model.Module {
	m := model.NewModule("muxer")
	m.AddVar(&model.Variable{Name: "sel", Width: 1, Role: model.RoleInput})
	m.AddVar(&model.Variable{Name: "a", Width: 4, Role: model.RoleInput})
	m.AddVar(&model.Variable{Name: "b", Width: 4, Role: model.RoleInput})
	m.AddVar(&model.Variable{Name: "out", Width: 4, Role: model.RoleOutput})

	m.CombBlock = append(m.CombBlock, &model.CombBlock{Body: []model.Stmt{
		&model.IfStmt{
			Cond: vref("sel", 1),
			Then: []model.Stmt{&model.AssignStmt{Target: vref("out", 4), Value: vref("a", 4)}},
			Else: []model.Stmt{&model.AssignStmt{Target: vref("out", 4), Value: vref("b", 4)}},
		},
	}})
	return m
}

func TestBuildModuleMergesIfElseIntoOneLogicPath(t *testing.T) {
	sim := NewBuilder(false).BuildModule(muxModule())

	var outPaths []LogicPath
	for _, p := range sim.CombBlocks {
		if p.Target.Var == "out" {
			outPaths = append(outPaths, p)
		}
	}
	if len(outPaths) != 1 {
		t.Fatalf("got %d LogicPaths for \"out\", want exactly 1 (if/else merges into one Mux)", len(outPaths))
	}

	node := sim.Arena.Get(outPaths[0].Expr)
	if _, ok := node.(*MuxNode); !ok {
		t.Errorf("merged path's expression is %T, want *MuxNode", node)
	}
}

func TestBuildModuleSeedsBoundariesAtVariableEdges(t *testing.T) {
	sim := NewBuilder(false).BuildModule(muxModule())
	bounds, ok := sim.Boundaries["out"]
	if !ok {
		t.Fatal("no boundary set recorded for \"out\"")
	}
	if !bounds[0] || !bounds[4] {
		t.Errorf("boundaries for a 4-bit variable = %v, want {0, 4} at minimum", bounds)
	}
}

func TestBuildModuleGlueBlockResolvesChildOutputAndInput(t *testing.T) {
	child := model.NewModule("child")
	child.AddVar(&model.Variable{Name: "in", Width: 1, Role: model.RoleInput})
	child.AddVar(&model.Variable{Name: "out", Width: 1, Role: model.RoleOutput})

	top := model.NewModule("top")
	top.AddVar(&model.Variable{Name: "drive", Width: 1, Role: model.RoleInput})
	top.AddVar(&model.Variable{Name: "observe", Width: 1, Role: model.RoleOutput})
	top.Children = append(top.Children, &model.ChildInstance{
		Name:       "c",
		ModuleName: "child",
		Count:      1,
		Connections: []model.PortBind{
			{ParentVar: "drive", ChildPort: "in", ParentAccess: model.BitAccess{Lsb: 0, Msb: 1}, ChildAccess: model.BitAccess{Lsb: 0, Msb: 1}},
			{ParentVar: "observe", ChildPort: "out", ParentAccess: model.BitAccess{Lsb: 0, Msb: 1}, ChildAccess: model.BitAccess{Lsb: 0, Msb: 1}, IsOutput: true},
		},
	})

	sim := NewBuilder(false).BuildModule(top)
	if len(sim.GlueBlocks) != 1 {
		t.Fatalf("got %d glue blocks, want 1", len(sim.GlueBlocks))
	}
	glue := sim.GlueBlocks[0]
	if glue.ChildName != "c" {
		t.Errorf("glue.ChildName = %q, want \"c\"", glue.ChildName)
	}
	if len(glue.Paths) != 2 {
		t.Fatalf("got %d glue paths, want 2 (one per port connection)", len(glue.Paths))
	}

	byTarget := map[string]LogicPath{}
	for _, p := range glue.Paths {
		byTarget[p.Target.Var] = p
	}
	if p, ok := byTarget["c.in"]; !ok || len(p.Sources) != 1 || p.Sources[0].Var != "drive" {
		t.Errorf("c.in glue path = %+v, want one source from \"drive\"", p)
	}
	if p, ok := byTarget["observe"]; !ok || len(p.Sources) != 1 || p.Sources[0].Var != "c.out" {
		t.Errorf("observe glue path = %+v, want one source from \"c.out\"", p)
	}
}
