package cycle

import (
	"log/slog"
	"sync"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/stream"
)

// Snapshot is the reducer state at one point in time
type Snapshot struct {
	Status model.RunStatus
	Log    EventLog
}

// Store holds the run status and event log and applies events as they
// arrive. It is safe for concurrent use.
type Store struct {
	logger *slog.Logger

	mu        sync.RWMutex
	snap      Snapshot
	listeners []func(Snapshot, stream.Event)
}

// NewStore creates an idle store with an empty log of the given size
func NewStore(logSize int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger: logger,
		snap: Snapshot{
			Status: model.IdleStatus(),
			Log:    NewEventLog(logSize),
		},
	}
}

// Handle applies one event. It has the stream.Handler signature.
func (s *Store) Handle(ev stream.Event) {
	s.mu.Lock()
	prev := s.snap.Status
	next := Snapshot{
		Status: Reduce(prev, ev),
		Log:    s.snap.Log.Push(ev),
	}
	s.snap = next
	listeners := s.listeners
	s.mu.Unlock()

	if next.Status != prev {
		s.logger.Debug("run status changed",
			"event", ev.Type, "status", next.Status.State, "cycle", next.Status.CycleID, "step", next.Status.Step)
	}
	for _, fn := range listeners {
		fn(next, ev)
	}
}

// Attach subscribes the store to a channel
func (s *Store) Attach(ch *stream.Channel) (detach func()) {
	return ch.Subscribe(s.Handle)
}

// OnChange registers fn to be called after every applied event
func (s *Store) OnChange(fn func(Snapshot, stream.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners[:len(s.listeners):len(s.listeners)], fn)
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Status returns the current run status
func (s *Store) Status() model.RunStatus {
	return s.Snapshot().Status
}
