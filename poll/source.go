package poll

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/await"
)

// StatusSource answers "is this run done, and what is its final state?".
// Implementations are typically remote API clients and must be safe for
// concurrent use by many schedulers at once.
type StatusSource interface {
	// GetStatus fetches the current state of a run. Recoverable faults
	// (network errors, 5xx responses) must be wrapped with [Transient]
	// so the scheduler retries them; any other error is treated as
	// permanent and ends tracking immediately.
	//
	// A (nil, nil) return is tolerated and treated as "not done yet".
	GetStatus(ctx context.Context, id await.Identity) (*await.RunStatus, error)

	// Cancel asks the platform to cancel the run. It returns false with
	// a nil error when the run already finished or is otherwise not
	// cancellable; that is an expected race, not a failure.
	Cancel(ctx context.Context, id await.Identity) (bool, error)
}

// TransientError marks a status fetch fault as retryable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("poll: transient fault: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so the scheduler will retry it. Returns nil for a
// nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
