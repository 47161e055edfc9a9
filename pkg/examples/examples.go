// Package examples holds a handful of small, hand-built designs used by
// cmd/celoxgo, cmd/celoxgo-repl, and pkg/simrun's own tests as stand-ins
// for what a real front-end would otherwise parse and elaborate (parsing
// is explicitly out of this core's scope, spec.md 1). Each function
// builds its model.Module set directly against pkg/model's API, the way
// a front-end's final lowering pass would.
package examples

import (
	"math/big"

	"github.com/hdlsim/celoxgo/pkg/model"
)

func vref(name string, width int) model.VarRefExpr {
	return model.VarRefExpr{Name: name, Access: model.BitAccess{Lsb: 0, Msb: width}}
}

func constU(value int64, width int) *model.ConstExpr {
	return &model.ConstExpr{Value: big.NewInt(value), Width: width, HasWidth: true}
}

// Counter builds a single-module synchronous 8-bit counter: clk (posedge
// clock), rst (synchronous, active-high reset), count (8-bit output).
// Top name is "counter".
func Counter() map[string]*model.Module {
	m := model.NewModule("counter")
	m.AddVar(&model.Variable{Name: "clk", Width: 1, Role: model.RoleClock, Edge: model.EdgePos})
	m.AddVar(&model.Variable{Name: "rst", Width: 1, Role: model.RoleReset})
	m.AddVar(&model.Variable{Name: "count", Width: 8, Role: model.RoleOutput})

	incr := &model.BinaryExpr{Op: model.OpAdd, Lhs: vref("count", 8), Rhs: constU(1, 8)}
	body := []model.Stmt{
		&model.IfStmt{
			Cond: vref("rst", 1),
			Then: []model.Stmt{&model.AssignStmt{Target: vref("count", 8), Value: constU(0, 8)}},
			Else: []model.Stmt{&model.AssignStmt{Target: vref("count", 8), Value: incr}},
		},
	}
	m.SeqBlocks = append(m.SeqBlocks, &model.SeqBlock{
		Clock: model.ClockSpec{Signal: "clk", Edge: model.EdgePos},
		Reset: &model.ResetSpec{Signal: "rst", Kind: model.ResetSync, ActiveHigh: true},
		Body:  body,
	})

	return map[string]*model.Module{"counter": m}
}

// ClockDivider builds a two-module design exercising the cascade
// protocol (spec.md 4.8): top's divider toggles div on every clk
// posedge, and the child counter instance is clocked from div -- a
// cascaded domain, since div is itself a register written by another
// domain rather than an externally driven port. Top name is "top".
func ClockDivider() map[string]*model.Module {
	counter := Counter()["counter"]

	top := model.NewModule("top")
	top.AddVar(&model.Variable{Name: "clk", Width: 1, Role: model.RoleClock, Edge: model.EdgePos})
	top.AddVar(&model.Variable{Name: "rst", Width: 1, Role: model.RoleReset})
	top.AddVar(&model.Variable{Name: "div", Width: 1, Role: model.RoleClock, Edge: model.EdgePos})

	notDiv := &model.UnaryExpr{Op: model.OpBitNot, Operand: vref("div", 1)}
	top.SeqBlocks = append(top.SeqBlocks, &model.SeqBlock{
		Clock: model.ClockSpec{Signal: "clk", Edge: model.EdgePos},
		Reset: &model.ResetSpec{Signal: "rst", Kind: model.ResetSync, ActiveHigh: true},
		Body: []model.Stmt{
			&model.IfStmt{
				Cond: vref("rst", 1),
				Then: []model.Stmt{&model.AssignStmt{Target: vref("div", 1), Value: constU(0, 1)}},
				Else: []model.Stmt{&model.AssignStmt{Target: vref("div", 1), Value: notDiv}},
			},
		},
	})

	top.Children = append(top.Children, &model.ChildInstance{
		Name:       "sub",
		ModuleName: "counter",
		Count:      1,
		Connections: []model.PortBind{
			{ParentVar: "div", ChildPort: "clk", ParentAccess: model.BitAccess{Lsb: 0, Msb: 1}, ChildAccess: model.BitAccess{Lsb: 0, Msb: 1}},
			{ParentVar: "rst", ChildPort: "rst", ParentAccess: model.BitAccess{Lsb: 0, Msb: 1}, ChildAccess: model.BitAccess{Lsb: 0, Msb: 1}},
		},
	})

	return map[string]*model.Module{"top": top, "counter": counter}
}
