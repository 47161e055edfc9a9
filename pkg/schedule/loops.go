package schedule

import (
	"github.com/hdlsim/celoxgo/pkg/config"
	"github.com/hdlsim/celoxgo/pkg/flatten"
	"github.com/hdlsim/celoxgo/pkg/model"
)

// loopAuthorization resolves the user's false_loops/true_loops annotations
// (dotted hierarchical paths) into the set of (AbsoluteAddr.Instance,
// AbsoluteAddr.Var) pairs they name, so an SCC can be checked against them
// without re-parsing paths per SCC.
type loopAuthorization struct {
	falsePairs [][2]model.AbsoluteAddr
	truePairs  []truePair
}

type truePair struct {
	a, b    model.AbsoluteAddr
	maxIter int
}

func resolveLoopAuthorization(design *flatten.Design, opts config.Options) loopAuthorization {
	var auth loopAuthorization
	for _, fl := range opts.FalseLoops {
		a, aok := design.Names[fl.PathA]
		b, bok := design.Names[fl.PathB]
		if aok && bok {
			auth.falsePairs = append(auth.falsePairs, [2]model.AbsoluteAddr{a, b})
		}
	}
	for _, tl := range opts.TrueLoops {
		a, aok := design.Names[tl.PathA]
		b, bok := design.Names[tl.PathB]
		if aok && bok {
			auth.truePairs = append(auth.truePairs, truePair{a: a, b: b, maxIter: tl.MaxIter})
		}
	}
	return auth
}

// varsOf returns the distinct (Instance,Var) addresses touched by an SCC's
// atomic targets, ignoring bit access (loop annotations name a variable
// pair, not a specific sub-range).
func varsOf(g *graph, scc []AtomId) map[model.AbsoluteAddr]bool {
	out := make(map[model.AbsoluteAddr]bool, len(scc))
	for _, id := range scc {
		out[g.paths[id].Target] = true
	}
	return out
}

// classifyFalseLoop reports whether auth authorizes scc as a false loop:
// both members of some annotated pair touch the SCC.
func (auth loopAuthorization) classifyFalseLoop(vars map[model.AbsoluteAddr]bool) bool {
	for _, pair := range auth.falsePairs {
		if vars[pair[0]] && vars[pair[1]] {
			return true
		}
	}
	return false
}

// classifyTrueLoop reports whether auth authorizes scc as a true loop,
// returning the configured iteration bound.
func (auth loopAuthorization) classifyTrueLoop(vars map[model.AbsoluteAddr]bool) (int, bool) {
	for _, pair := range auth.truePairs {
		if vars[pair.a] && vars[pair.b] {
			return pair.maxIter, true
		}
	}
	return 0, false
}
