package schedule

import "github.com/hdlsim/celoxgo/pkg/flatten"

// UnitKind distinguishes how pkg/sir must lower a CombUnit's atoms.
type UnitKind int

const (
	// KindPlain is an acyclic group: lower once, in the given order.
	KindPlain UnitKind = iota
	// KindFalseLoop is a user-authorized false cycle: lower the group's
	// atoms, then lower them again immediately after (the static two-pass
	// convergence strategy of spec.md 4.3 step 3).
	KindFalseLoop
	// KindTrueLoop is a user-authorized genuine fixed point: lower as a
	// single bounded dynamic loop that re-evaluates the group each
	// iteration and compares state to the previous iteration.
	KindTrueLoop
)

// CombUnit is one group of the scheduled combinational order: either a
// single atom (the common case for an SCC of size 1), or a non-trivial
// loop's member atoms together with its classification.
type CombUnit struct {
	Kind    UnitKind
	Atoms   []flatten.AtomicPath
	MaxIter int // meaningful only when Kind == KindTrueLoop
}

// DomainUnit is a clock domain's (optionally reset-gated) sequential
// assignments, plus whether this domain cascades into another clock
// (spec.md 4.3 step 6).
type DomainUnit struct {
	Logic     flatten.AtomicSeqLogic
	Cascaded  bool
}

// Schedule is C4's output: the ordered combinational sequence plus one
// DomainUnit per clock domain.
type Schedule struct {
	CombUnits []CombUnit
	Domains   []DomainUnit
}
