// Package cycle folds stream events into the current run status and a
// bounded, newest-first event log.
package cycle

import (
	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/stream"
)

// Reduce returns the run status after ev. A cycle.started always wins; the
// other cycle events only apply to the cycle currently running.
func Reduce(s model.RunStatus, ev stream.Event) model.RunStatus {
	switch p := ev.Payload.(type) {
	case stream.CycleStarted:
		return model.RunStatus{
			State:    model.RunRunning,
			CycleID:  p.CycleID,
			Step:     "started",
			Progress: 0,
		}
	case stream.CycleStep:
		if !s.Running() || s.CycleID != p.CycleID {
			return s
		}
		s.Step = p.Step
		s.Progress = clampProgress(p.ProgressPercent)
		return s
	case stream.CycleCompleted:
		if s.Running() && s.CycleID == p.CycleID {
			return model.IdleStatus()
		}
		return s
	case stream.CycleFailed:
		if s.Running() && s.CycleID == p.CycleID {
			return model.IdleStatus()
		}
		return s
	case stream.AgentStarted, stream.AgentCompleted,
		stream.NodeCreated, stream.NodeUpdated,
		stream.SynthesisStarted, stream.SynthesisCompleted,
		stream.Unknown, nil:
		return s
	default:
		return s
	}
}

// ChangesTree reports whether ev means the forest on the server changed
func ChangesTree(ev stream.Event) bool {
	switch ev.Payload.(type) {
	case stream.NodeCreated, stream.NodeUpdated, stream.CycleCompleted, stream.SynthesisCompleted:
		return true
	default:
		return false
	}
}

func clampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
