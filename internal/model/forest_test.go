package model

import "testing"

func sampleForest() Forest {
	d := &ClaimNode{ID: "d", Confidence: 0.2}
	e := &ClaimNode{ID: "e", Confidence: 0.8}
	b := &ClaimNode{ID: "b", Confidence: 0.6, Children: []*ClaimNode{d, e}}
	c := &ClaimNode{ID: "c", Confidence: 0.5}
	a := &ClaimNode{ID: "a", Confidence: 0.9, Children: []*ClaimNode{b, c}}
	return Forest{a}
}

func TestForest_WalkOrder(t *testing.T) {
	var order []string
	sampleForest().Walk(func(n, _ *ClaimNode, _ int) bool {
		order = append(order, n.ID)
		return true
	})

	want := []string{"a", "b", "d", "e", "c"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestForest_WalkCycleGuard(t *testing.T) {
	a := &ClaimNode{ID: "a"}
	b := &ClaimNode{ID: "b", Children: []*ClaimNode{a}}
	a.Children = []*ClaimNode{b}

	count := Forest{a}.Count()
	if count != 2 {
		t.Errorf("expected 2 nodes, got %d", count)
	}
}

func TestForest_Update(t *testing.T) {
	f := sampleForest()
	updated := f.Update("e", func(n *ClaimNode) { n.Confidence = 0.1 })

	got, ok := updated.Find("e")
	if !ok || got.Confidence != 0.1 {
		t.Fatalf("expected patched e, got %+v", got)
	}

	orig, _ := f.Find("e")
	if orig.Confidence != 0.8 {
		t.Errorf("original forest was mutated: %v", orig.Confidence)
	}

	// c is off the patched path and must be shared
	oc, _ := f.Find("c")
	nc, _ := updated.Find("c")
	if oc != nc {
		t.Error("expected untouched subtree to be shared")
	}

	same := f.Update("missing", func(n *ClaimNode) { n.Confidence = 0 })
	if &same[0] != &f[0] {
		t.Error("expected unchanged forest for missing id")
	}
}

func TestForest_AppendChild(t *testing.T) {
	f := sampleForest()

	grown := f.AppendChild("c", &ClaimNode{ID: "f"})
	c, _ := grown.Find("c")
	if len(c.Children) != 1 || c.Children[0].ID != "f" {
		t.Fatalf("expected f under c, got %+v", c.Children)
	}
	if f.Count() != 5 || grown.Count() != 6 {
		t.Errorf("expected counts 5 and 6, got %d and %d", f.Count(), grown.Count())
	}

	root := f.AppendChild("", &ClaimNode{ID: "r"})
	if len(root) != 2 || len(f) != 1 {
		t.Errorf("expected new root appended, got %d roots", len(root))
	}

	if dup := f.AppendChild("c", &ClaimNode{ID: "d"}); dup.Count() != 5 {
		t.Error("expected duplicate id to be ignored")
	}
	if orphan := f.AppendChild("nope", &ClaimNode{ID: "z"}); orphan.Count() != 5 {
		t.Error("expected unknown parent to be ignored")
	}
}

func TestClaimNode_Validate(t *testing.T) {
	tests := []struct {
		name    string
		node    ClaimNode
		wantErr bool
	}{
		{"valid", ClaimNode{ID: "a", Confidence: 0.5, Importance: 1, NodeType: NodeTypeQuestion}, false},
		{"empty id", ClaimNode{Confidence: 0.5}, true},
		{"confidence high", ClaimNode{ID: "a", Confidence: 1.5}, true},
		{"importance negative", ClaimNode{ID: "a", Importance: -0.1}, true},
		{"unknown type", ClaimNode{ID: "a", NodeType: "rumour"}, true},
		{"no type", ClaimNode{ID: "a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.node.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Stream.MaxReconnectAttempts != 5 {
		t.Errorf("expected 5 reconnect attempts, got %d", cfg.Stream.MaxReconnectAttempts)
	}

	cfg.Layout.Strategy = "radial"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
