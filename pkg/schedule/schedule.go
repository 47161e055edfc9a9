package schedule

import (
	"github.com/hdlsim/celoxgo/pkg/config"
	"github.com/hdlsim/celoxgo/pkg/flatten"
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/simerr"
)

// falseLoopDuplicationThreshold bounds the static-unroll cost of a
// false-loop SCC (spec.md 4.3 step 3's "|SCC|^2 exceeds a threshold").
// Above this, a dynamic (runtime-iterated) loop is used instead of a
// literal two-pass duplication, the same way a true loop always is.
const falseLoopDuplicationThreshold = 128

// Schedule implements C4 over a flattened Design: builds the bit-atom
// dependency graph, detects and classifies cycles, checks for multiple
// drivers, and partitions the combinational order plus per-domain
// sequential units.
func Schedule(design *flatten.Design, opts config.Options) (*Schedule, error) {
	if drivers := multipleDrivers(design); len(drivers) > 0 {
		addr, accesses := firstDriverConflict(drivers)
		return nil, simerr.New(simerr.KindMultipleDriver,
			"atom %s has %d simultaneous drivers at %v", addr, len(accesses), accesses)
	}

	g := buildGraph(design)
	auth := resolveLoopAuthorization(design, opts)

	// tarjanSCC yields components in reverse topological order of the
	// s->t (source-feeds-target) edge relation; reverse it so atoms are
	// scheduled after everything that feeds them.
	sccs := tarjanSCC(g)
	for i, j := 0, len(sccs)-1; i < j; i, j = i+1, j-1 {
		sccs[i], sccs[j] = sccs[j], sccs[i]
	}

	var units []CombUnit
	for _, scc := range sccs {
		if len(scc) == 1 && !hasSelfLoop(g, scc[0]) {
			units = append(units, CombUnit{Kind: KindPlain, Atoms: []flatten.AtomicPath{g.paths[scc[0]]}})
			continue
		}

		atoms := make([]flatten.AtomicPath, len(scc))
		for i, id := range scc {
			atoms[i] = g.paths[id]
		}
		vars := varsOf(g, scc)

		if maxIter, ok := auth.classifyTrueLoop(vars); ok {
			units = append(units, CombUnit{Kind: KindTrueLoop, Atoms: atoms, MaxIter: maxIter})
			continue
		}
		if auth.classifyFalseLoop(vars) {
			// |SCC|^2 duplication cost check: oversized false loops fall
			// back to a dynamic loop with no fixed iteration bound other
			// than the scheduler's own convergence check, since the user
			// only attested the cycle is false, not how many passes it
			// needs — so it runs to the runtime's default iteration cap.
			if len(scc)*len(scc) > falseLoopDuplicationThreshold {
				units = append(units, CombUnit{Kind: KindTrueLoop, Atoms: atoms, MaxIter: 0})
			} else {
				units = append(units, CombUnit{Kind: KindFalseLoop, Atoms: atoms})
			}
			continue
		}

		return nil, simerr.New(simerr.KindCombinationalLoop,
			"combinational loop over %d atomic targets with no false_loops/true_loops annotation", len(scc))
	}

	domains, err := buildDomains(design)
	if err != nil {
		return nil, err
	}

	return &Schedule{CombUnits: units, Domains: domains}, nil
}

// hasSelfLoop reports whether a singleton SCC is actually a self-edge
// (an atom that reads itself directly, e.g. `x = x | y`), which Tarjan
// reports as a size-1 component with no recorded cycle unless the
// adjacency explicitly contains the self-edge.
func hasSelfLoop(g *graph, id AtomId) bool {
	for _, w := range g.adj[id] {
		if w == id {
			return true
		}
	}
	return false
}

// buildDomains groups a Design's sequential logic by clock domain and
// detects cascaded domains: ones whose writes include a signal that is
// itself used as another domain's clock (spec.md 4.3 step 6).
func buildDomains(design *flatten.Design) ([]DomainUnit, error) {
	clockAddrs := make(map[model.AbsoluteAddr]bool)
	for _, seq := range design.SeqLogics {
		addr, err := resolveClockAddr(design, seq)
		if err != nil {
			return nil, err
		}
		clockAddrs[addr] = true
	}

	domains := make([]DomainUnit, len(design.SeqLogics))
	for i, seq := range design.SeqLogics {
		cascaded := false
		for _, a := range seq.Assigns {
			if clockAddrs[a.Target] {
				cascaded = true
				break
			}
		}
		domains[i] = DomainUnit{Logic: seq, Cascaded: cascaded}
	}
	return domains, nil
}

func resolveClockAddr(design *flatten.Design, seq flatten.AtomicSeqLogic) (model.AbsoluteAddr, error) {
	moduleName := design.InstanceModule[seq.Instance]
	varID, ok := design.ModuleVars[moduleName][seq.Clock.Signal]
	if !ok {
		return model.AbsoluteAddr{}, simerr.New(simerr.KindInternalError,
			"clock signal %q not found in module %q", seq.Clock.Signal, moduleName)
	}
	return model.AbsoluteAddr{Instance: seq.Instance, Var: varID}, nil
}
