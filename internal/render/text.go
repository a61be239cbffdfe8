package render

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/stream"
)

// StatusLine is a one-line summary of the run status
func StatusLine(s model.RunStatus) string {
	if !s.Running() {
		return "idle"
	}
	return fmt.Sprintf("cycle %d running: %s (%.0f%%)", s.CycleID, s.Step, s.Progress)
}

// Describe summarizes an event for humans
func Describe(ev stream.Event) string {
	switch p := ev.Payload.(type) {
	case stream.CycleStarted:
		if p.FocusClaim != "" {
			return fmt.Sprintf("cycle %d started on %q", p.CycleID, p.FocusClaim)
		}
		return fmt.Sprintf("cycle %d started", p.CycleID)
	case stream.CycleStep:
		return fmt.Sprintf("cycle %d: %s %.0f%%", p.CycleID, p.Step, p.ProgressPercent)
	case stream.CycleCompleted:
		return fmt.Sprintf("cycle %d completed: %d created, %d updated, $%.2f, %.1fs",
			p.CycleID, p.FindingsCreated, p.FindingsUpdated, p.TotalCostUSD, p.DurationSeconds)
	case stream.CycleFailed:
		return fmt.Sprintf("cycle %d failed: %s", p.CycleID, p.ErrorMessage)
	case stream.AgentStarted:
		return fmt.Sprintf("agent %s started", p.Agent)
	case stream.AgentCompleted:
		return fmt.Sprintf("agent %s completed (%d findings)", p.Agent, p.Findings)
	case stream.NodeCreated:
		return fmt.Sprintf("node %s created: %q (%.2f)", p.NodeID, p.Claim, p.Confidence)
	case stream.NodeUpdated:
		return fmt.Sprintf("node %s confidence %.2f -> %.2f", p.NodeID, p.OldConfidence, p.NewConfidence)
	case stream.SynthesisStarted:
		return fmt.Sprintf("synthesis started with %d agents", p.AgentCount)
	case stream.SynthesisCompleted:
		return fmt.Sprintf("synthesis completed: %d consensus, %d divergent", p.ConsensusCount, p.DivergentCount)
	case stream.Unknown:
		return fmt.Sprintf("%s (unrecognized)", p.Type)
	default:
		return ev.Type
	}
}

// EventLog writes up to limit entries, newest first, as a table
func EventLog(w io.Writer, events []stream.Event, limit int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tDETAIL")
	for i, ev := range events {
		if limit > 0 && i >= limit {
			break
		}
		ts := "-"
		if !ev.Timestamp.IsZero() {
			ts = ev.Timestamp.Local().Format(time.TimeOnly)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ts, ev.Type, Describe(ev))
	}
	return tw.Flush()
}
