package model

// RunState is the coarse state of the research run
type RunState string

const (
	RunIdle    RunState = "idle"
	RunRunning RunState = "running"
)

// RunStatus summarizes the current research cycle.
// CycleID and Step are only meaningful while State is RunRunning.
type RunStatus struct {
	State    RunState `json:"status"`
	CycleID  int      `json:"cycle_id,omitempty"`
	Step     string   `json:"step,omitempty"`
	Progress float64  `json:"progress"` // 0..100
}

// IdleStatus is the status before any cycle starts and after one ends
func IdleStatus() RunStatus {
	return RunStatus{State: RunIdle}
}

// Running reports whether a cycle is in flight
func (s RunStatus) Running() bool {
	return s.State == RunRunning
}
