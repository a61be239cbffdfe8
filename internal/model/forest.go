package model

// Forest is an ordered list of root trees. A Forest is treated as immutable:
// the helpers below return new forests and share untouched subtrees.
type Forest []*ClaimNode

// Walk visits every node in depth-first pre-order. Ids already visited are
// skipped along with their subtrees. Returning false stops the walk.
func (f Forest) Walk(fn func(node *ClaimNode, parent *ClaimNode, depth int) bool) {
	visited := make(map[string]bool)
	var visit func(n, parent *ClaimNode, depth int) bool
	visit = func(n, parent *ClaimNode, depth int) bool {
		if n == nil || visited[n.ID] {
			return true
		}
		visited[n.ID] = true
		if !fn(n, parent, depth) {
			return false
		}
		for _, child := range n.Children {
			if !visit(child, n, depth+1) {
				return false
			}
		}
		return true
	}
	for _, root := range f {
		if !visit(root, nil, 0) {
			return
		}
	}
}

// Find returns the first node with the given id
func (f Forest) Find(id string) (*ClaimNode, bool) {
	var found *ClaimNode
	f.Walk(func(n, _ *ClaimNode, _ int) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// Count returns the number of distinct nodes in the forest
func (f Forest) Count() int {
	count := 0
	f.Walk(func(_, _ *ClaimNode, _ int) bool {
		count++
		return true
	})
	return count
}

// Update returns a forest where the node with the given id is replaced by
// fn(copy). Ancestors on the path are copied, all other subtrees are shared.
// The original forest is returned unchanged when the id is not present.
func (f Forest) Update(id string, fn func(n *ClaimNode)) Forest {
	out, changed := f.rewrite(id, func(n *ClaimNode) *ClaimNode {
		c := *n
		fn(&c)
		return &c
	})
	if !changed {
		return f
	}
	return out
}

// AppendChild returns a forest with child appended under parentID. An empty
// parentID appends a new root. The original forest is returned when the
// parent is unknown or the child id already exists.
func (f Forest) AppendChild(parentID string, child *ClaimNode) Forest {
	if child == nil {
		return f
	}
	if _, exists := f.Find(child.ID); exists {
		return f
	}
	if parentID == "" {
		out := make(Forest, len(f), len(f)+1)
		copy(out, f)
		return append(out, child)
	}
	out, changed := f.rewrite(parentID, func(n *ClaimNode) *ClaimNode {
		c := *n
		c.Children = make([]*ClaimNode, len(n.Children), len(n.Children)+1)
		copy(c.Children, n.Children)
		c.Children = append(c.Children, child)
		return &c
	})
	if !changed {
		return f
	}
	return out
}

func (f Forest) rewrite(id string, replace func(*ClaimNode) *ClaimNode) (Forest, bool) {
	visited := make(map[string]bool)
	var visit func(n *ClaimNode) (*ClaimNode, bool)
	visit = func(n *ClaimNode) (*ClaimNode, bool) {
		if n == nil || visited[n.ID] {
			return n, false
		}
		visited[n.ID] = true
		if n.ID == id {
			return replace(n), true
		}
		for i, child := range n.Children {
			updated, ok := visit(child)
			if !ok {
				continue
			}
			c := *n
			c.Children = make([]*ClaimNode, len(n.Children))
			copy(c.Children, n.Children)
			c.Children[i] = updated
			return &c, true
		}
		return n, false
	}
	for i, root := range f {
		updated, ok := visit(root)
		if !ok {
			continue
		}
		out := make(Forest, len(f))
		copy(out, f)
		out[i] = updated
		return out, true
	}
	return f, false
}
