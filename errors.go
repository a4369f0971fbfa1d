package await

import (
	"errors"
	"fmt"
)

var (
	// ErrResultTimeout is returned by bounded result waits when the
	// future has not resolved within the given window. The future is
	// left untouched and keeps polling.
	ErrResultTimeout = errors.New("await: result wait timed out")

	// ErrInvalidIdentity is returned when a future is created for an
	// identity with a missing job or run ID.
	ErrInvalidIdentity = errors.New("await: invalid job/run identity")

	// ErrChannelClosed is returned by notification channels that have
	// been shut down.
	ErrChannelClosed = errors.New("await: notification channel closed")
)

// JobFailure reports that the platform itself ended the run in a failed
// or cancelled state. It is distinct from StatusUnavailable, which means
// the tracker lost the ability to find out.
type JobFailure struct {
	Identity Identity
	State    RunState
	Message  string
	Code     string
}

func (e *JobFailure) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("await: run %s ended %s", e.Identity, e.State)
	}
	return fmt.Sprintf("await: run %s ended %s: %s", e.Identity, e.State, e.Message)
}

// StatusUnavailable reports that the status source failed more
// consecutive times than the configured budget allows, so the run's
// true outcome is unknown.
type StatusUnavailable struct {
	Identity Identity
	Attempts int
	Err      error
}

func (e *StatusUnavailable) Error() string {
	return fmt.Sprintf("await: could not determine status of run %s after %d attempts: %v",
		e.Identity, e.Attempts, e.Err)
}

func (e *StatusUnavailable) Unwrap() error { return e.Err }
