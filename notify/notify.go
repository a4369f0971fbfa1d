package notify

import (
	"context"
	"time"

	"github.com/xraph/await"
)

// Event signals that the state of a run may have changed. State is
// advisory — whatever the transport happened to carry — and may be
// empty; the only guarantee is "check again now".
type Event struct {
	Identity await.Identity
	State    await.RunState
	At       time.Time
}

// Handler receives deliveries for one subscription. All fields are
// optional; nil funcs are skipped.
type Handler struct {
	// OnEvent is called for each event matching the subscribed
	// identity. It must not block.
	OnEvent func(Event)

	// OnDisconnect is called when the channel loses its upstream feed.
	// Subscribers should fall back to a shorter fixed polling cadence.
	OnDisconnect func()

	// OnReconnect is called when the feed recovers. Subscribers should
	// poll once immediately in case a completion was missed while down.
	OnReconnect func()
}

// Subscription is a handle to registered interest in one identity.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Unsubscribe removes the registration. Idempotent: always safe to
	// call multiple times.
	Unsubscribe()
}

// Channel is a push source of run events.
type Channel interface {
	// Subscribe registers interest in one run. An unavailable channel
	// returns an error; the caller then relies on polling alone.
	Subscribe(ctx context.Context, id await.Identity, h Handler) (Subscription, error)
}
