// Package repo caches claim nodes by id in immutable snapshots.
package repo

import (
	"sync"
	"sync/atomic"

	"github.com/ppiankov/claimgraph/internal/model"
)

// Patch holds the fields a merge may change. Nil fields are left as is.
type Patch struct {
	Claim         *string
	Description   *string
	Confidence    *float64
	Importance    *float64
	Status        *model.NodeStatus
	EvidenceCount *int
}

func (p Patch) apply(n model.ClaimNode) model.ClaimNode {
	if p.Claim != nil {
		n.Claim = *p.Claim
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Confidence != nil {
		n.Confidence = *p.Confidence
	}
	if p.Importance != nil {
		n.Importance = *p.Importance
	}
	if p.Status != nil {
		n.Status = *p.Status
	}
	if p.EvidenceCount != nil {
		n.EvidenceCount = *p.EvidenceCount
	}
	return n
}

// Snapshot is an immutable id -> node map. Every change returns a new
// Snapshot; a change that does nothing returns the receiver.
type Snapshot struct {
	nodes map[string]model.ClaimNode
}

var emptySnapshot = &Snapshot{nodes: map[string]model.ClaimNode{}}

// Empty returns the snapshot with no nodes
func Empty() *Snapshot {
	return emptySnapshot
}

func (s *Snapshot) Get(id string) (model.ClaimNode, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

func (s *Snapshot) Len() int {
	return len(s.nodes)
}

// Put returns a snapshot with node stored under its id
func (s *Snapshot) Put(node model.ClaimNode) *Snapshot {
	next := s.clone(1)
	next.nodes[node.ID] = node
	return next
}

// Merge returns a snapshot with patch applied to id. A missing id is a
// no-op and returns s itself.
func (s *Snapshot) Merge(id string, patch Patch) *Snapshot {
	cur, ok := s.nodes[id]
	if !ok {
		return s
	}
	next := s.clone(0)
	next.nodes[id] = patch.apply(cur)
	return next
}

// WithForest returns a snapshot that also holds every node of f. Nodes
// are stored without their children.
func (s *Snapshot) WithForest(f model.Forest) *Snapshot {
	next := s.clone(f.Count())
	f.Walk(func(n, _ *model.ClaimNode, _ int) bool {
		next.nodes[n.ID] = n.Shallow()
		return true
	})
	return next
}

func (s *Snapshot) clone(extra int) *Snapshot {
	nodes := make(map[string]model.ClaimNode, len(s.nodes)+extra)
	for id, n := range s.nodes {
		nodes[id] = n
	}
	return &Snapshot{nodes: nodes}
}

// Repository publishes the current Snapshot. Readers never block writers
// and always see a complete snapshot.
type Repository struct {
	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]
}

// New creates an empty repository
func New() *Repository {
	r := &Repository{}
	r.current.Store(Empty())
	return r
}

// Snapshot returns the current snapshot
func (r *Repository) Snapshot() *Snapshot {
	return r.current.Load()
}

func (r *Repository) Get(id string) (model.ClaimNode, bool) {
	return r.Snapshot().Get(id)
}

// Put stores or replaces a node
func (r *Repository) Put(node model.ClaimNode) {
	r.update(func(s *Snapshot) *Snapshot { return s.Put(node) })
}

// Merge patches a stored node. It reports whether the node existed.
func (r *Repository) Merge(id string, patch Patch) bool {
	changed := false
	r.update(func(s *Snapshot) *Snapshot {
		next := s.Merge(id, patch)
		changed = next != s
		return next
	})
	return changed
}

// IndexForest stores every node of the forest
func (r *Repository) IndexForest(f model.Forest) {
	r.update(func(s *Snapshot) *Snapshot { return s.WithForest(f) })
}

func (r *Repository) update(fn func(*Snapshot) *Snapshot) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.current.Store(fn(r.current.Load()))
}
