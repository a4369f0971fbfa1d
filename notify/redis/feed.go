// Package redis bridges Redis Pub/Sub into a notify.Mux for deployments
// where run completion events arrive over Redis instead of a platform
// WebSocket. Producers publish one small JSON message per state change;
// the feed decodes each message and wakes the trackers watching that
// run.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	mux := notify.NewMux()
//	feed := redisnotify.NewFeed(client, mux)
//	feed.Start(ctx)
//	defer feed.Stop()
//
//	f, err := future.Track(ctx, source, identity, future.WithChannel(mux))
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/await"
	"github.com/xraph/await/backoff"
	"github.com/xraph/await/notify"
)

// DefaultPrefix namespaces the Pub/Sub channels the feed listens on.
const DefaultPrefix = "await:run:"

// runMessage is the JSON payload producers publish per state change.
type runMessage struct {
	JobID string         `json:"job_id"`
	RunID string         `json:"run_id"`
	State await.RunState `json:"state,omitempty"`
}

// Option configures the Feed.
type Option func(*Feed)

// WithPrefix overrides the channel prefix.
func WithPrefix(prefix string) Option {
	return func(f *Feed) { f.prefix = prefix }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Feed) { f.logger = l }
}

// WithRetry sets the delay strategy between resubscribe attempts after
// a dropped Pub/Sub connection.
func WithRetry(strategy backoff.Strategy) Option {
	return func(f *Feed) { f.retry = strategy }
}

// Feed pumps run events from Redis Pub/Sub into a notify.Mux. While the
// subscription is down the mux is marked disconnected so trackers fall
// back to their fixed polling cadence; on recovery they get an
// immediate confirming poll.
type Feed struct {
	client *goredis.Client
	mux    *notify.Mux
	prefix string
	logger *slog.Logger
	retry  backoff.Strategy

	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
}

// NewFeed creates a feed. The caller owns the Redis client lifecycle.
func NewFeed(client *goredis.Client, mux *notify.Mux, opts ...Option) *Feed {
	f := &Feed{
		client: client,
		mux:    mux,
		prefix: DefaultPrefix,
		logger: slog.Default(),
		retry:  backoff.NewExponentialWithJitter(time.Second, 30*time.Second),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Start begins consuming in a background goroutine. Calling Start more
// than once is a no-op.
func (f *Feed) Start(ctx context.Context) {
	if f.started.Swap(true) {
		return
	}
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	go f.run(ctx)
}

// Stop cancels the consumer and waits for it to drain.
func (f *Feed) Stop() {
	if !f.started.Load() || f.cancel == nil {
		return
	}
	f.cancel()
	<-f.done
}

func (f *Feed) run(ctx context.Context) {
	defer close(f.done)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		psub := f.client.PSubscribe(ctx, f.prefix+"*")
		// Wait for the subscription confirmation before declaring the
		// feed healthy. Message arrival cannot stand in for this: with
		// sparse events trackers would linger on the fallback cadence
		// long after the subscription recovered.
		_, err := psub.Receive(ctx)
		if err == nil {
			attempt = 0
			f.online()
			err = f.consume(ctx, psub)
		}
		_ = psub.Close()
		if ctx.Err() != nil {
			return
		}

		f.mux.MarkDisconnected()
		attempt++
		delay := f.retry.Delay(attempt)
		f.logger.Warn("run event feed lost, retrying",
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// online marks the mux connected once a subscription is confirmed.
func (f *Feed) online() {
	if !f.mux.Connected() {
		f.mux.MarkConnected()
	}
}

// consume receives messages until the subscription fails.
func (f *Feed) consume(ctx context.Context, psub *goredis.PubSub) error {
	for {
		msg, err := psub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		f.dispatch(msg.Payload)
	}
}

// dispatch decodes one message and publishes it to the mux. Malformed
// messages are logged and dropped; a missed wakeup only delays the next
// poll.
func (f *Feed) dispatch(payload string) {
	ev, err := DecodeEvent([]byte(payload))
	if err != nil {
		f.logger.Warn("run event feed: dropping message", slog.String("error", err.Error()))
		return
	}
	f.mux.Publish(ev)
}

// DecodeEvent parses a producer message into a notify.Event.
func DecodeEvent(payload []byte) (notify.Event, error) {
	var msg runMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return notify.Event{}, fmt.Errorf("await/redis: decode event: %w", err)
	}
	id := await.Identity{JobID: msg.JobID, RunID: msg.RunID}
	if !id.Valid() {
		return notify.Event{}, fmt.Errorf("await/redis: decode event: %w", await.ErrInvalidIdentity)
	}
	return notify.Event{Identity: id, State: msg.State, At: time.Now().UTC()}, nil
}

// EventChannel returns the Pub/Sub channel name for one run under the
// given prefix.
func EventChannel(prefix string, id await.Identity) string {
	return prefix + id.JobID + ":" + id.RunID
}

// PublishEvent is the producer half: it publishes one state change for
// a run. Job executors call this when a run reaches a new state.
func PublishEvent(ctx context.Context, client *goredis.Client, prefix string, id await.Identity, state await.RunState) error {
	if !id.Valid() {
		return await.ErrInvalidIdentity
	}
	payload, err := json.Marshal(runMessage{JobID: id.JobID, RunID: id.RunID, State: state})
	if err != nil {
		return fmt.Errorf("await/redis: encode event: %w", err)
	}
	if err := client.Publish(ctx, EventChannel(prefix, id), payload).Err(); err != nil {
		return fmt.Errorf("await/redis: publish event: %w", err)
	}
	return nil
}
