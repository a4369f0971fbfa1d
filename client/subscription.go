package client

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xraph/await"
	"github.com/xraph/await/notify"
	"github.com/xraph/await/wire"
)

// Compile-time interface check: a Client is a notification channel.
var _ notify.Channel = (*Client)(nil)

// Subscribe implements notify.Channel. The first subscriber for a run
// registers interest with the platform; further subscribers share the
// server-side subscription through the mux.
func (c *Client) Subscribe(ctx context.Context, id await.Identity, h notify.Handler) (notify.Subscription, error) {
	if !id.Valid() {
		return nil, await.ErrInvalidIdentity
	}

	first := !c.watching(id)

	sub, err := c.mux.Subscribe(ctx, id, h)
	if err != nil {
		return nil, err
	}

	if first {
		if _, err := c.request(ctx, wire.MethodSubscribe, wire.SubscribeRequest{
			Channel: wire.RunChannel(id),
		}); err != nil {
			sub.Unsubscribe()
			return nil, err
		}
	}

	return &clientSub{client: c, identity: id, inner: sub}, nil
}

// watching reports whether the mux already has subscribers for id.
func (c *Client) watching(id await.Identity) bool {
	for _, existing := range c.mux.Identities() {
		if existing == id {
			return true
		}
	}
	return false
}

// clientSub pairs a mux subscription with the server-side registration
// it may be holding open.
type clientSub struct {
	client   *Client
	identity await.Identity
	inner    notify.Subscription
	released atomic.Bool
}

func (s *clientSub) ID() string { return s.inner.ID() }

// Unsubscribe drops the local subscription and, when it was the last
// one for the run, tells the platform to stop pushing events for it.
func (s *clientSub) Unsubscribe() {
	if s.released.Swap(true) {
		return
	}
	s.inner.Unsubscribe()

	if s.client.watching(s.identity) || s.client.closed.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.client.request(ctx, wire.MethodUnsubscribe, wire.UnsubscribeRequest{
		Channel: wire.RunChannel(s.identity),
	}); err != nil {
		s.client.logger.Warn("unsubscribe failed",
			slog.String("run", s.identity.String()),
			slog.String("error", err.Error()),
		)
	}
}
