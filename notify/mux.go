package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.jetify.com/typeid/v2"

	"github.com/xraph/await"
)

// subPrefix is the TypeID prefix for subscription handles.
const subPrefix = "sub"

// Mux routes events published by an upstream feed to the subscribers
// interested in each identity. It implements Channel.
//
// Events for identities nobody is subscribed to are dropped. That is
// deliberate: a notification arriving before a subscription completes
// is a benign missed wakeup, recovered by the subscriber's next
// scheduled poll.
type Mux struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[await.Identity]map[string]*muxSub

	connected atomic.Bool
	closed    atomic.Bool
}

// MuxOption configures a Mux.
type MuxOption func(*Mux)

// WithMuxLogger sets the structured logger.
func WithMuxLogger(logger *slog.Logger) MuxOption {
	return func(m *Mux) { m.logger = logger }
}

// NewMux creates an empty mux. It starts in the connected state; a feed
// that has not come up yet should call MarkDisconnected first.
func NewMux(opts ...MuxOption) *Mux {
	m := &Mux{
		logger: slog.Default(),
		subs:   make(map[await.Identity]map[string]*muxSub),
	}
	m.connected.Store(true)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe implements Channel.
func (m *Mux) Subscribe(_ context.Context, id await.Identity, h Handler) (Subscription, error) {
	if m.closed.Load() {
		return nil, await.ErrChannelClosed
	}
	if !id.Valid() {
		return nil, await.ErrInvalidIdentity
	}

	tid, err := typeid.Generate(subPrefix)
	if err != nil {
		return nil, err
	}
	sub := &muxSub{
		id:       tid.String(),
		identity: id,
		handler:  h,
		mux:      m,
	}

	m.mu.Lock()
	byID, ok := m.subs[id]
	if !ok {
		byID = make(map[string]*muxSub)
		m.subs[id] = byID
	}
	byID[sub.id] = sub
	disconnected := !m.connected.Load()
	m.mu.Unlock()

	// Let a subscriber joining a down channel know right away so it can
	// pick the fallback cadence instead of the ceiling.
	if disconnected && h.OnDisconnect != nil {
		h.OnDisconnect()
	}
	return sub, nil
}

// Publish fans an event out to subscribers of its identity and returns
// the number of deliveries. Unknown identities deliver to zero
// subscribers.
func (m *Mux) Publish(ev Event) int {
	if m.closed.Load() {
		return 0
	}

	m.mu.RLock()
	byID := m.subs[ev.Identity]
	targets := make([]*muxSub, 0, len(byID))
	for _, sub := range byID {
		targets = append(targets, sub)
	}
	m.mu.RUnlock()

	n := 0
	for _, sub := range targets {
		if sub.handler.OnEvent != nil {
			sub.handler.OnEvent(ev)
			n++
		}
	}
	return n
}

// MarkDisconnected records that the upstream feed is down and notifies
// every subscriber.
func (m *Mux) MarkDisconnected() {
	if !m.connected.Swap(false) {
		return
	}
	for _, sub := range m.snapshot() {
		if sub.handler.OnDisconnect != nil {
			sub.handler.OnDisconnect()
		}
	}
}

// MarkConnected records that the upstream feed recovered and notifies
// every subscriber.
func (m *Mux) MarkConnected() {
	if m.connected.Swap(true) {
		return
	}
	for _, sub := range m.snapshot() {
		if sub.handler.OnReconnect != nil {
			sub.handler.OnReconnect()
		}
	}
}

// Connected reports whether the upstream feed is believed to be up.
func (m *Mux) Connected() bool {
	return m.connected.Load() && !m.closed.Load()
}

// Identities returns the identities with at least one subscriber.
// Feeds use this to resubscribe after a reconnect.
func (m *Mux) Identities() []await.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]await.Identity, 0, len(m.subs))
	for id := range m.subs {
		out = append(out, id)
	}
	return out
}

// Close drops all subscriptions. Further Subscribe calls fail and
// further Publish calls deliver nothing.
func (m *Mux) Close() {
	if m.closed.Swap(true) {
		return
	}
	m.mu.Lock()
	m.subs = make(map[await.Identity]map[string]*muxSub)
	m.mu.Unlock()
}

func (m *Mux) snapshot() []*muxSub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*muxSub
	for _, byID := range m.subs {
		for _, sub := range byID {
			out = append(out, sub)
		}
	}
	return out
}

func (m *Mux) remove(id await.Identity, subID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.subs[id]
	if !ok {
		return
	}
	delete(byID, subID)
	if len(byID) == 0 {
		delete(m.subs, id)
	}
}

type muxSub struct {
	id       string
	identity await.Identity
	handler  Handler
	mux      *Mux
	removed  atomic.Bool
}

func (s *muxSub) ID() string { return s.id }

func (s *muxSub) Unsubscribe() {
	if s.removed.Swap(true) {
		return
	}
	s.mux.remove(s.identity, s.id)
}
