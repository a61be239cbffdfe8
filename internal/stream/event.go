// Package stream receives research events from the backend over a
// reconnecting channel.
package stream

import (
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// ErrMalformed wraps every inbound message that could not be decoded
var ErrMalformed = errors.New("malformed stream message")

// Event type names as sent by the backend
const (
	TypeCycleStarted       = "cycle.started"
	TypeCycleStep          = "cycle.step"
	TypeCycleCompleted     = "cycle.completed"
	TypeCycleFailed        = "cycle.failed"
	TypeAgentStarted       = "agent.started"
	TypeAgentCompleted     = "agent.completed"
	TypeNodeCreated        = "node.created"
	TypeNodeUpdated        = "node.updated"
	TypeSynthesisStarted   = "synthesis.started"
	TypeSynthesisCompleted = "synthesis.completed"
)

// Event is one decoded message from the event stream
type Event struct {
	Type        string
	Timestamp   time.Time
	WorkspaceID string
	Payload     Payload
	Seq         uint64 // Arrival order, assigned by the channel
}

// Payload is the typed data of an event. The set of implementations is
// closed; anything the client does not know decodes to Unknown.
type Payload interface {
	EventType() string
	payload()
}

type CycleStarted struct {
	CycleID     int    `json:"cycle_id"`
	FocusNodeID string `json:"focus_node_id,omitempty"`
	FocusClaim  string `json:"focus_claim,omitempty"`
}

type CycleStep struct {
	CycleID         int     `json:"cycle_id"`
	Step            string  `json:"step"`
	ProgressPercent float64 `json:"progress_percent"`
}

type CycleCompleted struct {
	CycleID         int     `json:"cycle_id"`
	FindingsCreated int     `json:"findings_created"`
	FindingsUpdated int     `json:"findings_updated"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type CycleFailed struct {
	CycleID      int    `json:"cycle_id"`
	ErrorMessage string `json:"error_message"`
	Step         string `json:"step,omitempty"`
}

type AgentStarted struct {
	CycleID int    `json:"cycle_id,omitempty"`
	Agent   string `json:"agent"`
	NodeID  string `json:"node_id,omitempty"`
}

type AgentCompleted struct {
	CycleID  int    `json:"cycle_id,omitempty"`
	Agent    string `json:"agent"`
	Findings int    `json:"findings,omitempty"`
}

type NodeCreated struct {
	CycleID    int     `json:"cycle_id,omitempty"`
	NodeID     string  `json:"node_id"`
	ParentID   string  `json:"parent_id,omitempty"` // Empty for a new root
	Claim      string  `json:"claim"`
	Confidence float64 `json:"confidence"`
	NodeType   string  `json:"node_type,omitempty"`
}

type NodeUpdated struct {
	NodeID        string  `json:"node_id"`
	OldConfidence float64 `json:"old_confidence"`
	NewConfidence float64 `json:"new_confidence"`
}

type SynthesisStarted struct {
	CycleID    int `json:"cycle_id,omitempty"`
	AgentCount int `json:"agent_count"`
}

type SynthesisCompleted struct {
	CycleID        int `json:"cycle_id,omitempty"`
	ConsensusCount int `json:"consensus_count"`
	DivergentCount int `json:"divergent_count"`
}

// Unknown carries an event type this client does not model
type Unknown struct {
	Type string
	Data json.RawMessage
}

func (CycleStarted) EventType() string       { return TypeCycleStarted }
func (CycleStep) EventType() string          { return TypeCycleStep }
func (CycleCompleted) EventType() string     { return TypeCycleCompleted }
func (CycleFailed) EventType() string        { return TypeCycleFailed }
func (AgentStarted) EventType() string       { return TypeAgentStarted }
func (AgentCompleted) EventType() string     { return TypeAgentCompleted }
func (NodeCreated) EventType() string        { return TypeNodeCreated }
func (NodeUpdated) EventType() string        { return TypeNodeUpdated }
func (SynthesisStarted) EventType() string   { return TypeSynthesisStarted }
func (SynthesisCompleted) EventType() string { return TypeSynthesisCompleted }
func (u Unknown) EventType() string          { return u.Type }

func (CycleStarted) payload()       {}
func (CycleStep) payload()          {}
func (CycleCompleted) payload()     {}
func (CycleFailed) payload()        {}
func (AgentStarted) payload()       {}
func (AgentCompleted) payload()     {}
func (NodeCreated) payload()        {}
func (NodeUpdated) payload()        {}
func (SynthesisStarted) payload()   {}
func (SynthesisCompleted) payload() {}
func (Unknown) payload()            {}

type envelope struct {
	Type        string          `json:"type"`
	Timestamp   string          `json:"timestamp"`
	WorkspaceID string          `json:"workspace_id"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// Decode parses one wire message. Unknown event types are accepted.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	payload, err := decodePayload(env.Type, env.Data)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s data: %v", ErrMalformed, env.Type, err)
	}

	return Event{
		Type:        env.Type,
		Timestamp:   parseTimestamp(env.Timestamp),
		WorkspaceID: env.WorkspaceID,
		Payload:     payload,
	}, nil
}

func decodePayload(eventType string, data json.RawMessage) (Payload, error) {
	switch eventType {
	case TypeCycleStarted:
		return decodeData[CycleStarted](data)
	case TypeCycleStep:
		return decodeData[CycleStep](data)
	case TypeCycleCompleted:
		return decodeData[CycleCompleted](data)
	case TypeCycleFailed:
		return decodeData[CycleFailed](data)
	case TypeAgentStarted:
		return decodeData[AgentStarted](data)
	case TypeAgentCompleted:
		return decodeData[AgentCompleted](data)
	case TypeNodeCreated:
		return decodeData[NodeCreated](data)
	case TypeNodeUpdated:
		return decodeData[NodeUpdated](data)
	case TypeSynthesisStarted:
		return decodeData[SynthesisStarted](data)
	case TypeSynthesisCompleted:
		return decodeData[SynthesisCompleted](data)
	default:
		return Unknown{Type: eventType, Data: data}, nil
	}
}

func decodeData[T Payload](data json.RawMessage) (Payload, error) {
	var p T
	if len(data) == 0 || string(data) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// Encode renders an event in wire form
func Encode(ev Event) ([]byte, error) {
	env := envelope{
		Type:        ev.Type,
		WorkspaceID: ev.WorkspaceID,
	}
	if !ev.Timestamp.IsZero() {
		env.Timestamp = ev.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	switch p := ev.Payload.(type) {
	case nil:
	case Unknown:
		env.Data = p.Data
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s data: %w", ev.Type, err)
		}
		env.Data = data
	}
	if env.Type == "" && ev.Payload != nil {
		env.Type = ev.Payload.EventType()
	}
	return json.Marshal(env)
}

// Backend timestamps are ISO-8601, sometimes without a zone
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
