package render

import (
	"io"

	json "github.com/goccy/go-json"

	"github.com/ppiankov/claimgraph/internal/focus"
	"github.com/ppiankov/claimgraph/internal/model"
)

// Document is the JSON form of a rendered view
type Document struct {
	Workspace string           `json:"workspace"`
	Status    *model.RunStatus `json:"status,omitempty"`
	Selected  string           `json:"selected,omitempty"`
	Search    string           `json:"search,omitempty"`
	FocusMode bool             `json:"focus_mode"`
	Matches   int              `json:"matches"`
	Nodes     []focus.ViewNode `json:"nodes"`
	Edges     []focus.ViewEdge `json:"edges"`
}

// JSON writes the view as an indented Document
func JSON(w io.Writer, v focus.View, workspace string, status *model.RunStatus) error {
	doc := Document{
		Workspace: workspace,
		Status:    status,
		Selected:  v.Query.SelectedID,
		Search:    v.Query.Search,
		FocusMode: v.Query.FocusMode,
		Matches:   v.Matches,
		Nodes:     v.Nodes,
		Edges:     v.Edges,
	}
	if doc.Nodes == nil {
		doc.Nodes = []focus.ViewNode{}
	}
	if doc.Edges == nil {
		doc.Edges = []focus.ViewEdge{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
