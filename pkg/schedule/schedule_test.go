package schedule

import (
	"testing"

	"github.com/hdlsim/celoxgo/pkg/config"
	"github.com/hdlsim/celoxgo/pkg/flatten"
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/simerr"
	"github.com/hdlsim/celoxgo/pkg/slt"
)

func vref(name string) model.VarRefExpr {
	return model.VarRefExpr{Name: name, Access: model.BitAccess{Lsb: 0, Msb: 1}}
}

// feedbackModule builds x = y & a; y = x | b -- a genuine two-variable
// combinational cycle with no acyclic evaluation order, per spec.md 4.3
// step 3's false/true loop examples.
func feedbackModule() *model.Module {
	m := model.NewModule("feedback")
	m.AddVar(&model.Variable{Name: "a", Width: 1, Role: model.RoleInput})
	m.AddVar(&model.Variable{Name: "b", Width: 1, Role: model.RoleInput})
	m.AddVar(&model.Variable{Name: "x", Width: 1, Role: model.RoleOutput})
	m.AddVar(&model.Variable{Name: "y", Width: 1, Role: model.RoleOutput})

	m.CombBlock = append(m.CombBlock, &model.CombBlock{Body: []model.Stmt{
		&model.AssignStmt{Target: vref("x"), Value: &model.BinaryExpr{Op: model.OpAnd, Lhs: vref("y"), Rhs: vref("a")}},
		&model.AssignStmt{Target: vref("y"), Value: &model.BinaryExpr{Op: model.OpOr, Lhs: vref("x"), Rhs: vref("b")}},
	}})
	return m
}

func flattenFeedback(t *testing.T) *flatten.Design {
	t.Helper()
	m := feedbackModule()
	reg := &flatten.Registry{
		Sim:    map[string]*slt.SimModule{"feedback": slt.NewBuilder(false).BuildModule(m)},
		Source: map[string]*model.Module{"feedback": m},
	}
	design, err := flatten.Flatten(reg, "feedback")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	return design
}

func TestScheduleUnauthorizedLoopFails(t *testing.T) {
	design := flattenFeedback(t)
	_, err := Schedule(design, config.Default())
	if err == nil {
		t.Fatal("expected an unauthorized x/y cycle to fail scheduling")
	}
	if !simerr.Is(err, simerr.KindCombinationalLoop) {
		t.Errorf("error kind = %v, want KindCombinationalLoop", err)
	}
}

func TestScheduleAuthorizedTrueLoopProducesBoundedLoopUnit(t *testing.T) {
	design := flattenFeedback(t)
	opts := config.Default()
	opts.TrueLoops = []config.TrueLoop{{PathA: "x", PathB: "y", MaxIter: 16}}

	sched, err := Schedule(design, opts)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	var found *CombUnit
	for i := range sched.CombUnits {
		if sched.CombUnits[i].Kind == KindTrueLoop {
			found = &sched.CombUnits[i]
		}
	}
	if found == nil {
		t.Fatal("no KindTrueLoop CombUnit produced for the authorized x/y cycle")
	}
	if found.MaxIter != 16 {
		t.Errorf("MaxIter = %d, want 16", found.MaxIter)
	}
	if len(found.Atoms) != 2 {
		t.Errorf("true-loop unit has %d atoms, want 2 (one per x/y atomic path)", len(found.Atoms))
	}
}

func TestScheduleAuthorizedFalseLoopProducesTwoPassUnit(t *testing.T) {
	design := flattenFeedback(t)
	opts := config.Default()
	opts.FalseLoops = []config.FalseLoop{{PathA: "x", PathB: "y"}}

	sched, err := Schedule(design, opts)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	var found *CombUnit
	for i := range sched.CombUnits {
		if sched.CombUnits[i].Kind == KindFalseLoop {
			found = &sched.CombUnits[i]
		}
	}
	if found == nil {
		t.Fatal("no KindFalseLoop CombUnit produced for the authorized x/y cycle")
	}
}

func TestSchedulePlainDesignHasNoLoopUnits(t *testing.T) {
	m := model.NewModule("acyclic")
	m.AddVar(&model.Variable{Name: "a", Width: 1, Role: model.RoleInput})
	m.AddVar(&model.Variable{Name: "b", Width: 1, Role: model.RoleInput})
	m.AddVar(&model.Variable{Name: "x", Width: 1, Role: model.RoleOutput})
	m.CombBlock = append(m.CombBlock, &model.CombBlock{Body: []model.Stmt{
		&model.AssignStmt{Target: vref("x"), Value: &model.BinaryExpr{Op: model.OpAnd, Lhs: vref("a"), Rhs: vref("b")}},
	}})
	reg := &flatten.Registry{
		Sim:    map[string]*slt.SimModule{"acyclic": slt.NewBuilder(false).BuildModule(m)},
		Source: map[string]*model.Module{"acyclic": m},
	}
	design, err := flatten.Flatten(reg, "acyclic")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}

	sched, err := Schedule(design, config.Default())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	for _, cu := range sched.CombUnits {
		if cu.Kind != KindPlain {
			t.Errorf("unexpected non-plain CombUnit kind %v in an acyclic design", cu.Kind)
		}
	}
}
