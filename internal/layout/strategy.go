package layout

import (
	"fmt"
	"math"

	"github.com/ppiankov/claimgraph/internal/model"
)

// Row-packed spacing
const (
	RowDepthGap = 360.0
	RowGap      = 186.0
)

// Centered-subtree spacing
const (
	SubtreeDepthGap     = 340.0
	IntraClusterGap     = 124.0 // Between sibling leaves
	InterClusterGap     = 142.0 // Extra space next to a sibling that has children
	InterRootClusterGap = 220.0 // Extra space between root trees
)

// Strategy selects how nodes are positioned
type Strategy string

const (
	StrategySubtree Strategy = "subtree"
	StrategyRows    Strategy = "rows"
)

// ParseStrategy accepts "subtree" or "rows"; empty means subtree
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategySubtree:
		return StrategySubtree, nil
	case StrategyRows:
		return StrategyRows, nil
	default:
		return "", fmt.Errorf("unknown layout strategy %q", s)
	}
}

// Position is a node's center
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RowPacked places each depth level in a column, stacked in traversal
// order with RowGap spacing and centered on y = 0
func RowPacked(items []FlatItem) map[string]Position {
	perDepth := make(map[int]int)
	for _, it := range items {
		perDepth[it.Depth]++
	}

	placed := make(map[int]int)
	pos := make(map[string]Position, len(items))
	for _, it := range items {
		i := placed[it.Depth]
		placed[it.Depth]++
		offset := float64(perDepth[it.Depth]-1) / 2
		pos[it.Node.ID] = Position{
			X: float64(it.Depth) * RowDepthGap,
			Y: (float64(i) - offset) * RowGap,
		}
	}
	return pos
}

// CenteredSubtree lays leaves out top to bottom and centers every parent
// between its first and last child. The whole forest is then shifted so
// the extremes are symmetric around y = 0.
func CenteredSubtree(f model.Forest) map[string]Position {
	pos := make(map[string]Position)
	visited := make(map[string]bool)
	cursor := 0.0

	var place func(n *model.ClaimNode, depth int) float64
	place = func(n *model.ClaimNode, depth int) float64 {
		visited[n.ID] = true

		var first, last float64
		placed := 0
		prevCluster := false
		for _, child := range n.Children {
			if child == nil || visited[child.ID] {
				continue
			}
			cluster := child.HasChildren()
			if placed > 0 && (cluster || prevCluster) {
				cursor += InterClusterGap
			}
			y := place(child, depth+1)
			if placed == 0 {
				first = y
			}
			last = y
			placed++
			prevCluster = cluster
		}

		var y float64
		if placed == 0 {
			y = cursor
			cursor += IntraClusterGap
		} else {
			y = (first + last) / 2
		}
		pos[n.ID] = Position{X: float64(depth) * SubtreeDepthGap, Y: y}
		return y
	}

	roots := 0
	for _, root := range f {
		if root == nil || visited[root.ID] {
			continue
		}
		if roots > 0 {
			cursor += InterRootClusterGap
		}
		place(root, 0)
		roots++
	}

	recenter(pos)
	return pos
}

func recenter(pos map[string]Position) {
	if len(pos) == 0 {
		return
	}
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range pos {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	shift := (minY + maxY) / 2
	if shift == 0 {
		return
	}
	for id, p := range pos {
		p.Y -= shift
		pos[id] = p
	}
}
