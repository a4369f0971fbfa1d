package await

import "encoding/json"

// RunState represents the lifecycle state of a run as reported by the
// platform.
type RunState string

const (
	// StateQueued means the run is waiting to be scheduled.
	StateQueued RunState = "queued"
	// StateRunning means the run is currently executing.
	StateRunning RunState = "running"
	// StateSucceeded means the run finished successfully.
	StateSucceeded RunState = "succeeded"
	// StateFailed means the run ended with an error.
	StateFailed RunState = "failed"
	// StateCancelled means the run was cancelled before finishing.
	StateCancelled RunState = "cancelled"
)

// Terminal reports whether no further state transition can occur.
func (s RunState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

// RunError carries the error payload the platform attaches to a failed
// run.
type RunError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// RunStatus is one observation of a run's state, as returned by a
// status source. Output is an opaque result locator present only for
// succeeded runs; Error is present only for failed ones.
type RunStatus struct {
	Identity Identity        `json:"identity"`
	State    RunState        `json:"state"`
	Output   json.RawMessage `json:"output,omitempty"`
	Error    *RunError       `json:"error,omitempty"`
}

// Terminal reports whether this observation is a final one.
func (r *RunStatus) Terminal() bool {
	return r != nil && r.State.Terminal()
}
