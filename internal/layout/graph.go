package layout

import "github.com/ppiankov/claimgraph/internal/model"

// Node is a positioned claim ready to draw
type Node struct {
	ID       string          `json:"id"`
	Claim    model.ClaimNode `json:"claim"` // Without children
	Depth    int             `json:"depth"`
	ParentID string          `json:"parent_id,omitempty"`
	Position
}

// Edge connects a parent to a child
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"` // Parent
	Target string `json:"target"` // Child
}

// Graph is the render-ready layout of a forest
type Graph struct {
	Nodes   []Node            `json:"nodes"`
	Edges   []Edge            `json:"edges"`
	Parents map[string]string `json:"-"` // Every node of the forest, filtered or not
}

// Options control Compute
type Options struct {
	Strategy      Strategy
	MinConfidence float64 // Nodes below this are left out, with their edges
}

// EdgeID is the stable id of the edge parent -> child
func EdgeID(parentID, childID string) string {
	return parentID + "->" + childID
}

// Compute lays out the whole forest and then drops nodes below the
// confidence threshold. Positions do not depend on the threshold.
func Compute(f model.Forest, opts Options) Graph {
	items, parents := Flatten(f)

	var pos map[string]Position
	switch opts.Strategy {
	case StrategyRows:
		pos = RowPacked(items)
	default:
		pos = CenteredSubtree(f)
	}

	kept := make(map[string]bool, len(items))
	g := Graph{
		Nodes:   make([]Node, 0, len(items)),
		Parents: parents,
	}
	for _, it := range items {
		if it.Node.Confidence < opts.MinConfidence {
			continue
		}
		kept[it.Node.ID] = true
		g.Nodes = append(g.Nodes, Node{
			ID:       it.Node.ID,
			Claim:    it.Node.Shallow(),
			Depth:    it.Depth,
			ParentID: it.ParentID,
			Position: pos[it.Node.ID],
		})
	}

	g.Edges = make([]Edge, 0, len(g.Nodes))
	for _, it := range items {
		if it.ParentID == "" || !kept[it.ParentID] || !kept[it.Node.ID] {
			continue
		}
		g.Edges = append(g.Edges, Edge{
			ID:     EdgeID(it.ParentID, it.Node.ID),
			Source: it.ParentID,
			Target: it.Node.ID,
		})
	}
	return g
}

// Node returns the laid out node with id
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
