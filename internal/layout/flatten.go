// Package layout positions the claim forest for drawing. Two strategies
// are available: rows packs each depth level into a centered column, and
// subtree centers every parent on its children.
package layout

import "github.com/ppiankov/claimgraph/internal/model"

// FlatItem is one node in depth-first pre-order
type FlatItem struct {
	Node     *model.ClaimNode
	Depth    int
	ParentID string // Empty for roots
}

// Flatten walks the forest depth-first and returns the visit order plus a
// child -> parent map. Roots map to "". A node id seen twice is visited
// once, which also stops cycles.
func Flatten(f model.Forest) ([]FlatItem, map[string]string) {
	var items []FlatItem
	parents := make(map[string]string)

	f.Walk(func(n, parent *model.ClaimNode, depth int) bool {
		parentID := ""
		if parent != nil {
			parentID = parent.ID
		}
		items = append(items, FlatItem{Node: n, Depth: depth, ParentID: parentID})
		parents[n.ID] = parentID
		return true
	})

	return items, parents
}
