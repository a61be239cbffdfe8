package model

import (
	"errors"
	"fmt"
)

// ErrInvalidNode is returned when a node fails validation
var ErrInvalidNode = errors.New("invalid claim node")

// ClaimNode is a single claim in the research graph
type ClaimNode struct {
	ID            string       `json:"id"`
	Claim         string       `json:"claim"`                    // Short statement shown on the node
	Description   string       `json:"description,omitempty"`    // Longer free text, searchable
	Confidence    float64      `json:"confidence"`               // 0..1
	Importance    float64      `json:"importance"`               // 0..1
	NodeType      NodeType     `json:"node_type,omitempty"`      // Empty when the backend sent none
	Status        NodeStatus   `json:"status"`                   // active, archived, merged
	EvidenceCount int          `json:"evidence_count,omitempty"` // Number of attached evidence items
	Children      []*ClaimNode `json:"children,omitempty"`
}

// NodeType categorizes the role of a claim in the tree
type NodeType string

const (
	NodeTypeDirection  NodeType = "direction"  // Top-level research direction
	NodeTypeQuestion   NodeType = "question"   // Open question under a direction
	NodeTypeHypothesis NodeType = "hypothesis" // Candidate answer
	NodeTypeSupporting NodeType = "supporting" // Evidence-backed support
	NodeTypeOpposing   NodeType = "opposing"   // Evidence-backed counterpoint
)

// NodeStatus is the lifecycle state of a node
type NodeStatus string

const (
	NodeStatusActive   NodeStatus = "active"
	NodeStatusArchived NodeStatus = "archived"
	NodeStatusMerged   NodeStatus = "merged"
)

// HasChildren reports whether the node has at least one child
func (n *ClaimNode) HasChildren() bool {
	return n != nil && len(n.Children) > 0
}

// Validate checks ranges and required fields
func (n *ClaimNode) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidNode)
	}
	if n.Confidence < 0 || n.Confidence > 1 {
		return fmt.Errorf("%w: %s confidence %v out of range", ErrInvalidNode, n.ID, n.Confidence)
	}
	if n.Importance < 0 || n.Importance > 1 {
		return fmt.Errorf("%w: %s importance %v out of range", ErrInvalidNode, n.ID, n.Importance)
	}
	switch n.NodeType {
	case "", NodeTypeDirection, NodeTypeQuestion, NodeTypeHypothesis, NodeTypeSupporting, NodeTypeOpposing:
	default:
		return fmt.Errorf("%w: %s unknown node type %q", ErrInvalidNode, n.ID, n.NodeType)
	}
	return nil
}

// Shallow returns a copy of the node without its children
func (n *ClaimNode) Shallow() ClaimNode {
	c := *n
	c.Children = nil
	return c
}
