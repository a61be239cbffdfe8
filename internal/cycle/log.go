package cycle

import "github.com/ppiankov/claimgraph/internal/stream"

// DefaultLogSize is how many events the log keeps
const DefaultLogSize = 100

// EventLog is an immutable newest-first list of events
type EventLog struct {
	entries []stream.Event
	limit   int
}

// NewEventLog creates an empty log holding at most limit events
func NewEventLog(limit int) EventLog {
	if limit <= 0 {
		limit = DefaultLogSize
	}
	return EventLog{limit: limit}
}

// Push returns a new log with ev in front, dropping the oldest entries
// beyond the limit
func (l EventLog) Push(ev stream.Event) EventLog {
	limit := l.limit
	if limit <= 0 {
		limit = DefaultLogSize
	}
	n := len(l.entries) + 1
	if n > limit {
		n = limit
	}
	entries := make([]stream.Event, n)
	entries[0] = ev
	copy(entries[1:], l.entries)
	return EventLog{entries: entries, limit: limit}
}

// Entries returns the events, newest first. The slice must not be modified.
func (l EventLog) Entries() []stream.Event {
	return l.entries
}

func (l EventLog) Len() int {
	return len(l.entries)
}

// Latest returns the most recent event
func (l EventLog) Latest() (stream.Event, bool) {
	if len(l.entries) == 0 {
		return stream.Event{}, false
	}
	return l.entries[0], true
}
