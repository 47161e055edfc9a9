package flatten

import (
	"github.com/hdlsim/celoxgo/pkg/model"
	"github.com/hdlsim/celoxgo/pkg/slt"
)

// propagateBoundaries runs spec.md 4.2 step 3 to a fixed point: whenever a
// port connection splits a boundary on one side of the connection at bit
// position k, the same split must exist on the other side at the
// corresponding offset, since an atomic range can never straddle a
// boundary that exists on either of its endpoints. Mirrors the repeat-to-
// fixpoint shape of pkg/optimizer/optimizer.go's pass manager, but over a
// single constraint-propagation relation instead of a list of passes.
func propagateBoundaries(reg *Registry, topName string) {
	reached := make(map[string]bool)
	var collect func(name string)
	collect = func(name string) {
		if reached[name] {
			return
		}
		reached[name] = true
		for _, c := range reg.Source[name].Children {
			collect(c.ModuleName)
		}
	}
	collect(topName)

	for {
		changed := false
		for name := range reached {
			sim := reg.Sim[name]
			src := reg.Source[name]
			for _, child := range src.Children {
				childSim := reg.Sim[child.ModuleName]
				for _, conn := range child.Connections {
					if propagateConnection(sim, childSim, conn.ChildPort, conn) {
						changed = true
					}
				}
			}
		}
		if !changed {
			return
		}
	}
}

// propagateConnection propagates boundaries across one PortBind in both
// directions, returning true if any new boundary was inserted.
func propagateConnection(parentSim, childSim *slt.SimModule, childVarName string, conn model.PortBind) bool {
	changed := false

	ensureVar(parentSim, conn.ParentVar, conn.ParentAccess.Msb)
	ensureVar(childSim, childVarName, conn.ChildAccess.Msb)

	parentBounds := parentSim.Boundaries[conn.ParentVar]
	childBounds := childSim.Boundaries[childVarName]

	for k := range parentBounds {
		if k < conn.ParentAccess.Lsb || k > conn.ParentAccess.Msb {
			continue
		}
		kc := k - conn.ParentAccess.Lsb + conn.ChildAccess.Lsb
		if kc < conn.ChildAccess.Lsb || kc > conn.ChildAccess.Msb {
			continue
		}
		if !childBounds[kc] {
			childBounds[kc] = true
			changed = true
		}
	}
	for k := range childBounds {
		if k < conn.ChildAccess.Lsb || k > conn.ChildAccess.Msb {
			continue
		}
		kp := k - conn.ChildAccess.Lsb + conn.ParentAccess.Lsb
		if kp < conn.ParentAccess.Lsb || kp > conn.ParentAccess.Msb {
			continue
		}
		if !parentBounds[kp] {
			parentBounds[kp] = true
			changed = true
		}
	}
	return changed
}

// ensureVar seeds a Boundaries entry for a synthetic child-port variable
// name the first time it is referenced (glue-block ports never appear in
// the module's own Vars list, only in its SimModule.Boundaries map).
func ensureVar(sim *slt.SimModule, name string, width int) {
	if _, ok := sim.Boundaries[name]; !ok {
		sim.Boundaries[name] = map[int]bool{0: true, width: true}
	}
}
