package layout

import (
	"math"
	"testing"

	"github.com/ppiankov/claimgraph/internal/model"
)

// A -> [B -> [D, E], C]
func scenarioForest() model.Forest {
	d := &model.ClaimNode{ID: "D", Confidence: 0.2}
	e := &model.ClaimNode{ID: "E", Confidence: 0.8}
	b := &model.ClaimNode{ID: "B", Confidence: 0.6, Children: []*model.ClaimNode{d, e}}
	c := &model.ClaimNode{ID: "C", Confidence: 0.5}
	a := &model.ClaimNode{ID: "A", Confidence: 0.9, Children: []*model.ClaimNode{b, c}}
	return model.Forest{a}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFlatten(t *testing.T) {
	items, parents := Flatten(scenarioForest())

	wantOrder := []string{"A", "B", "D", "E", "C"}
	wantDepth := []int{0, 1, 2, 2, 1}
	if len(items) != len(wantOrder) {
		t.Fatalf("expected %d items, got %d", len(wantOrder), len(items))
	}
	for i, it := range items {
		if it.Node.ID != wantOrder[i] || it.Depth != wantDepth[i] {
			t.Errorf("item %d: got %s depth %d", i, it.Node.ID, it.Depth)
		}
	}

	wantParents := map[string]string{"A": "", "B": "A", "D": "B", "E": "B", "C": "A"}
	for id, p := range wantParents {
		got, ok := parents[id]
		if !ok || got != p {
			t.Errorf("parent of %s: expected %q, got %q (%v)", id, p, got, ok)
		}
	}
}

func TestFlatten_CycleGuard(t *testing.T) {
	a := &model.ClaimNode{ID: "a"}
	b := &model.ClaimNode{ID: "b", Children: []*model.ClaimNode{a}}
	a.Children = []*model.ClaimNode{b}

	items, _ := Flatten(model.Forest{a})
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}

	pos := CenteredSubtree(model.Forest{a})
	if len(pos) != 2 {
		t.Errorf("expected 2 positions, got %d", len(pos))
	}
}

func TestCenteredSubtree_Scenario(t *testing.T) {
	pos := CenteredSubtree(scenarioForest())

	if !near(pos["E"].Y-pos["D"].Y, IntraClusterGap) {
		t.Errorf("expected D and E %v apart, got %v", IntraClusterGap, pos["E"].Y-pos["D"].Y)
	}
	if !near(pos["B"].Y, (pos["D"].Y+pos["E"].Y)/2) {
		t.Errorf("expected B centered on D and E, got %v", pos["B"].Y)
	}
	if !near(pos["A"].Y, (pos["B"].Y+pos["C"].Y)/2) {
		t.Errorf("expected A centered on B and C, got %v", pos["A"].Y)
	}
	if !near(pos["C"].Y-pos["E"].Y, IntraClusterGap+InterClusterGap) {
		t.Errorf("expected cluster gap between B's subtree and C, got %v", pos["C"].Y-pos["E"].Y)
	}

	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range pos {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	if !near(minY+maxY, 0) {
		t.Errorf("expected layout centered on 0, got min %v max %v", minY, maxY)
	}

	wantX := map[string]float64{"A": 0, "B": 340, "C": 340, "D": 680, "E": 680}
	for id, x := range wantX {
		if pos[id].X != x {
			t.Errorf("%s: expected x %v, got %v", id, x, pos[id].X)
		}
	}
}

func TestCenteredSubtree_RootsSeparated(t *testing.T) {
	f := model.Forest{{ID: "r1"}, {ID: "r2"}}
	pos := CenteredSubtree(f)

	if got := pos["r2"].Y - pos["r1"].Y; !near(got, IntraClusterGap+InterRootClusterGap) {
		t.Errorf("expected roots %v apart, got %v", IntraClusterGap+InterRootClusterGap, got)
	}
	if !near(pos["r1"].Y, -pos["r2"].Y) {
		t.Errorf("expected symmetric roots, got %v and %v", pos["r1"].Y, pos["r2"].Y)
	}
}

func TestCenteredSubtree_SingleNode(t *testing.T) {
	pos := CenteredSubtree(model.Forest{{ID: "only"}})
	if pos["only"] != (Position{}) {
		t.Errorf("expected origin, got %+v", pos["only"])
	}
	if len(CenteredSubtree(nil)) != 0 {
		t.Error("expected empty layout for empty forest")
	}
}

func TestRowPacked_LevelsCentered(t *testing.T) {
	items, _ := Flatten(scenarioForest())
	pos := RowPacked(items)

	tests := []struct {
		id   string
		x, y float64
	}{
		{"A", 0, 0},
		{"B", 360, -93},
		{"C", 360, 93},
		{"D", 720, -93},
		{"E", 720, 93},
	}
	for _, tt := range tests {
		if p := pos[tt.id]; !near(p.X, tt.x) || !near(p.Y, tt.y) {
			t.Errorf("%s: expected (%v,%v), got (%v,%v)", tt.id, tt.x, tt.y, p.X, p.Y)
		}
	}
}

func TestCompute_FiltersByConfidence(t *testing.T) {
	full := Compute(scenarioForest(), Options{Strategy: StrategySubtree})
	g := Compute(scenarioForest(), Options{Strategy: StrategySubtree, MinConfidence: 0.5})

	if len(full.Nodes) != 5 || len(full.Edges) != 4 {
		t.Fatalf("expected 5 nodes and 4 edges unfiltered, got %d and %d", len(full.Nodes), len(full.Edges))
	}

	ids := map[string]bool{}
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	if ids["D"] || len(g.Nodes) != 4 {
		t.Errorf("expected D filtered out, got %v", ids)
	}
	for _, e := range g.Edges {
		if e.Target == "D" || e.Source == "D" {
			t.Errorf("unexpected edge to filtered node: %s", e.ID)
		}
	}
	if len(g.Edges) != 3 {
		t.Errorf("expected 3 edges, got %d", len(g.Edges))
	}

	// Filtering does not move the survivors
	fe, _ := full.Node("E")
	ge, _ := g.Node("E")
	if fe.Position != ge.Position {
		t.Errorf("expected stable position for E, got %+v and %+v", fe.Position, ge.Position)
	}
	if len(g.Parents) != 5 {
		t.Errorf("expected parent map to cover every node, got %d", len(g.Parents))
	}
}

func TestCompute_FilteredParentDropsEdgeButKeepsChild(t *testing.T) {
	f := model.Forest{{ID: "p", Confidence: 0.1, Children: []*model.ClaimNode{{ID: "c", Confidence: 0.9}}}}
	g := Compute(f, Options{MinConfidence: 0.5})

	if len(g.Nodes) != 1 || g.Nodes[0].ID != "c" {
		t.Fatalf("expected only c, got %+v", g.Nodes)
	}
	if len(g.Edges) != 0 {
		t.Errorf("expected no edges, got %+v", g.Edges)
	}
}

func TestCompute_EdgeIDs(t *testing.T) {
	g := Compute(scenarioForest(), Options{Strategy: StrategyRows})
	want := map[string]bool{"A->B": true, "B->D": true, "B->E": true, "A->C": true}
	for _, e := range g.Edges {
		if !want[e.ID] {
			t.Errorf("unexpected edge %s", e.ID)
		}
		if e.ID != EdgeID(e.Source, e.Target) {
			t.Errorf("edge id %s does not match its endpoints", e.ID)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy(""); err != nil || s != StrategySubtree {
		t.Errorf("expected subtree default, got %q %v", s, err)
	}
	if s, err := ParseStrategy("rows"); err != nil || s != StrategyRows {
		t.Errorf("expected rows, got %q %v", s, err)
	}
	if _, err := ParseStrategy("radial"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
