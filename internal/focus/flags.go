package focus

import (
	"strings"

	"github.com/ppiankov/claimgraph/internal/layout"
	"github.com/ppiankov/claimgraph/internal/model"
)

// Query is the user's current focus and search state
type Query struct {
	Search     string // Raw search text
	SelectedID string // Empty when nothing is selected
	FocusMode  bool
}

// Normalized returns the lowercased search text. Whitespace is kept: it is
// part of what the user searches for.
func (q Query) Normalized() string {
	return strings.ToLower(q.Search)
}

// NodeFlags are the display flags of one node
type NodeFlags struct {
	MatchesSearch bool `json:"matches_search"`
	Focused       bool `json:"focused"`
	Dimmed        bool `json:"dimmed"`
	Matched       bool `json:"matched"` // Highlight: a non-empty search hit
}

// MatchesSearch reports whether the lowercased claim and description,
// joined without a separator, contain needle. An empty needle matches
// everything.
func MatchesSearch(n model.ClaimNode, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(n.Claim+n.Description), needle)
}

// Flags computes the flags for one node
func Flags(n model.ClaimNode, needle, selectedID string, focusMode bool, upstream Set) NodeFlags {
	f := NodeFlags{
		MatchesSearch: MatchesSearch(n, needle),
		Focused:       selectedID == "" || upstream.Has(n.ID),
	}
	f.Matched = needle != "" && f.MatchesSearch
	switch {
	case !f.MatchesSearch:
		f.Dimmed = true
	case focusMode && selectedID != "":
		f.Dimmed = !f.Focused
	}
	return f
}

// EdgeFocused reports whether the edge lies on the selected node's
// ancestor path: both ends are upstream and the child really hangs off
// the parent
func EdgeFocused(e layout.Edge, upstream Set, parents map[string]string) bool {
	if !upstream.Has(e.Source) || !upstream.Has(e.Target) {
		return false
	}
	parent, ok := parents[e.Target]
	return ok && parent == e.Source
}

// ViewNode is a laid out node with its flags
type ViewNode struct {
	layout.Node
	NodeFlags
}

// ViewEdge is an edge with its focus flag
type ViewEdge struct {
	layout.Edge
	Focused bool `json:"focused"`
}

// View is the decorated graph handed to renderers
type View struct {
	Nodes    []ViewNode `json:"nodes"`
	Edges    []ViewEdge `json:"edges"`
	Query    Query      `json:"-"`
	Matches  int        `json:"matches"`
	Upstream Set        `json:"-"`
}

// Apply decorates every node and edge of g for q
func Apply(g layout.Graph, q Query) View {
	needle := q.Normalized()
	upstream := BuildUpstreamSet(q.SelectedID, g.Parents)

	v := View{
		Nodes:    make([]ViewNode, len(g.Nodes)),
		Edges:    make([]ViewEdge, len(g.Edges)),
		Query:    q,
		Upstream: upstream,
	}
	for i, n := range g.Nodes {
		flags := Flags(n.Claim, needle, q.SelectedID, q.FocusMode, upstream)
		if flags.Matched {
			v.Matches++
		}
		v.Nodes[i] = ViewNode{Node: n, NodeFlags: flags}
	}
	for i, e := range g.Edges {
		v.Edges[i] = ViewEdge{Edge: e, Focused: EdgeFocused(e, upstream, g.Parents)}
	}
	return v
}
