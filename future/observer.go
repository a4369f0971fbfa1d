package future

import (
	"time"

	"github.com/xraph/await"
)

// Observer receives tracking lifecycle signals for metrics. Methods are
// called from the tracker's internal goroutines and must not block.
type Observer interface {
	// PollObserved is called after every successful status fetch with
	// the observed state and the interval planned before the next one.
	PollObserved(id await.Identity, state await.RunState, nextInterval time.Duration)

	// Woken is called when a push notification triggers an early poll.
	Woken(id await.Identity)

	// Resolved is called exactly once when the future reaches its
	// terminal outcome. err is nil for success, a JobFailure for
	// platform-reported failure, or a StatusUnavailable for a lost
	// status source.
	Resolved(id await.Identity, state await.RunState, err error)

	// CallbackFault is called when a registered completion callback
	// panics.
	CallbackFault(id await.Identity, recovered any)
}

type nopObserver struct{}

func (nopObserver) PollObserved(await.Identity, await.RunState, time.Duration) {}
func (nopObserver) Woken(await.Identity)                                       {}
func (nopObserver) Resolved(await.Identity, await.RunState, error)             {}
func (nopObserver) CallbackFault(await.Identity, any)                          {}
