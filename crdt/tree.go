package crdt

// TreeNode is the placement of a child: its parent and the metadata it was
// placed with.
type TreeNode[ID TreeID, M TreeMeta] struct {
	Parent ID `json:"parent"`
	Meta   M  `json:"meta"`
}

// Tree maps every placed child to its TreeNode. Nodes without an entry are
// roots of the forest.
type Tree[ID TreeID, M TreeMeta] struct {
	nodes map[ID]TreeNode[ID, M]
}

func NewTree[ID TreeID, M TreeMeta]() *Tree[ID, M] {
	return &Tree[ID, M]{nodes: make(map[ID]TreeNode[ID, M])}
}

// Find returns the placement of child.
func (t *Tree[ID, M]) Find(child ID) (TreeNode[ID, M], bool) {
	n, ok := t.nodes[child]
	return n, ok
}

// Add places child under node.Parent, replacing any previous placement.
func (t *Tree[ID, M]) Add(child ID, node TreeNode[ID, M]) {
	t.nodes[child] = node
}

func (t *Tree[ID, M]) Remove(child ID) {
	delete(t.nodes, child)
}

func (t *Tree[ID, M]) Len() int {
	return len(t.nodes)
}

// Nodes returns a copy of the child to placement mapping.
func (t *Tree[ID, M]) Nodes() map[ID]TreeNode[ID, M] {
	nodes := make(map[ID]TreeNode[ID, M], len(t.nodes))
	for id, n := range t.nodes {
		nodes[id] = n
	}
	return nodes
}

// Children returns the direct children of parent in no particular order.
func (t *Tree[ID, M]) Children(parent ID) []ID {
	var children []ID
	for id, n := range t.nodes {
		if n.Parent == parent {
			children = append(children, id)
		}
	}
	return children
}

// IsAncestor reports whether ancestor appears on the parent chain of child.
// A node is not its own ancestor.
func (t *Tree[ID, M]) IsAncestor(child, ancestor ID) bool {
	id := child
	for i := 0; i <= len(t.nodes); i++ {
		n, ok := t.nodes[id]
		if !ok {
			return false
		}
		if n.Parent == ancestor {
			return true
		}
		id = n.Parent
	}
	return false
}
