// Package optimize implements C7: a pass manager running spec.md 4.6's
// seven named passes over each ExecutionUnit to fixpoint. Grounded on the
// teacher's pkg/optimizer/optimizer.go (Pass interface + capped fixpoint
// loop), pkg/optimizer/constant_folding.go (value-numbering shape), and
// pkg/optimizer/dead_code_elimination.go (backward liveness shape).
package optimize

import (
	"fmt"

	"github.com/hdlsim/celoxgo/pkg/sir"
)

// Pass is one named optimization pass over a single ExecutionUnit.
type Pass interface {
	Name() string
	Run(u *sir.ExecutionUnit) (bool, error)
}

// Kind distinguishes the two split-domain unit shapes a pass may need to
// skip work for (spec.md 4.6's preamble: split eval-only/apply units skip
// the dead-store elimination pass since its cross-unit liveness crosses a
// unit boundary neither half alone can see).
type Kind int

const (
	KindUnified Kind = iota
	KindEvalOnly
	KindApply
)

const maxIterations = 10

// Manager runs the full pass sequence to a fixpoint, per unit kind.
type Manager struct {
	full     []Pass
	evalOnly []Pass
	apply    []Pass
}

// NewManager builds the standard spec.md 4.6 pass sequence.
func NewManager() *Manager {
	hoist := &HoistCommonBranchLoads{}
	blocks := &OptimizeBlocks{}
	splitWide := &SplitWideCommits{}
	sink := &CommitSinking{}
	inlineFwd := &InlineCommitForwarding{}
	deadStores := &EliminateDeadWorkingStores{}
	resched := &Reschedule{MaxInFlightLoads: 8}

	full := []Pass{hoist, blocks, splitWide, sink, inlineFwd, deadStores, resched}
	// Split units skip dead-store elimination: an eval-only unit's working
	// stores feed the paired apply unit, and an apply unit has no working
	// stores of its own to eliminate.
	evalOnly := []Pass{hoist, blocks, splitWide, sink, inlineFwd, resched}
	apply := []Pass{hoist, blocks, splitWide, sink, inlineFwd, resched}

	return &Manager{full: full, evalOnly: evalOnly, apply: apply}
}

// Run applies the pass sequence appropriate to kind until no pass reports
// a change, or maxIterations is reached.
func (m *Manager) Run(u *sir.ExecutionUnit, kind Kind) error {
	var passes []Pass
	switch kind {
	case KindEvalOnly:
		passes = m.evalOnly
	case KindApply:
		passes = m.apply
	default:
		passes = m.full
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for _, p := range passes {
			ok, err := p.Run(u)
			if err != nil {
				return fmt.Errorf("optimize: pass %s: %w", p.Name(), err)
			}
			changed = changed || ok
		}
		if !changed {
			return nil
		}
	}
	return nil
}

// RunProgram runs the pass manager over every ExecutionUnit in prog.
func RunProgram(m *Manager, prog *sir.Program) error {
	for _, u := range prog.EvalComb {
		if err := m.Run(u, KindUnified); err != nil {
			return err
		}
	}
	for _, units := range prog.EvalApplyFFs {
		for _, u := range units {
			if err := m.Run(u, KindUnified); err != nil {
				return err
			}
		}
	}
	for _, units := range prog.EvalOnlyFFs {
		for _, u := range units {
			if err := m.Run(u, KindEvalOnly); err != nil {
				return err
			}
		}
	}
	for _, units := range prog.ApplyFFs {
		for _, u := range units {
			if err := m.Run(u, KindApply); err != nil {
				return err
			}
		}
	}
	return nil
}
