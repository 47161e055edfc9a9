package slt

// Arena is a per-module hash-consing store: structurally identical
// sub-expressions collapse to a single NodeId (spec.md 4.1 / 9
// "Hash-consing"). Grounded on the memoize-by-structural-key idiom in the
// teacher's pkg/semantic/constant_folder.go.
type Arena struct {
	nodes []Node
	index map[string]NodeId
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{index: make(map[string]NodeId)}
}

// Intern returns the canonical NodeId for n, creating a new entry only if
// no structurally-equal node already exists.
func (a *Arena) Intern(n Node) NodeId {
	key := keyOf(n)
	if id, ok := a.index[key]; ok {
		return id
	}
	id := NodeId(len(a.nodes))
	a.nodes = append(a.nodes, n)
	a.index[key] = id
	return id
}

// Get returns the node stored at id.
func (a *Arena) Get(id NodeId) Node {
	return a.nodes[id]
}

// Len returns the number of distinct interned nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}
