package future

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/await"
	"github.com/xraph/await/backoff"
	"github.com/xraph/await/notify"
	"github.com/xraph/await/poll"
)

// Future tracks one run to completion. Create it with Track; it begins
// tracking immediately and resolves exactly once.
type Future struct {
	identity await.Identity
	logger   *slog.Logger
	observer Observer

	p     *promise
	sched *poll.Scheduler
	last  atomic.Pointer[await.RunStatus]

	// mu guards the collaborator references, which are released on
	// resolution.
	mu      sync.Mutex
	source  poll.StatusSource
	channel notify.Channel
	sub     notify.Subscription
}

// Option configures a Future.
type Option func(*options)

type options struct {
	channel      notify.Channel
	cfg          await.PollConfig
	strategy     backoff.Strategy
	gate         *poll.Gate
	fetchTimeout time.Duration
	logger       *slog.Logger
	observer     Observer
}

// WithChannel attaches a push notification channel. Without one the
// future relies on polling alone.
func WithChannel(ch notify.Channel) Option {
	return func(o *options) { o.channel = ch }
}

// WithConfig overrides the polling cadence, failure budget and
// disconnected fallback.
func WithConfig(cfg await.PollConfig) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithBackoff overrides the interval strategy, taking precedence over
// the config's geometric cadence.
func WithBackoff(strategy backoff.Strategy) Option {
	return func(o *options) { o.strategy = strategy }
}

// WithGate attaches a shared poll-rate gate.
func WithGate(g *poll.Gate) Option {
	return func(o *options) { o.gate = g }
}

// WithFetchTimeout bounds each individual status fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) { o.fetchTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver attaches a tracking observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Track starts tracking a run and returns its future. The notification
// channel, when present, is subscribed before the first poll so a
// completion landing in between cannot be missed; a channel that fails
// to subscribe is logged and the future degrades to polling alone.
//
// ctx scopes the channel subscription only. Stopping the tracker is the
// future's own lifecycle: it tears itself down on resolution.
func Track(ctx context.Context, source poll.StatusSource, id await.Identity, opts ...Option) (*Future, error) {
	if source == nil {
		return nil, errors.New("future: nil status source")
	}
	if !id.Valid() {
		return nil, await.ErrInvalidIdentity
	}

	o := &options{
		cfg:      await.DefaultPollConfig(),
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}

	f := &Future{
		identity: id,
		logger:   o.logger,
		observer: o.observer,
		source:   source,
		channel:  o.channel,
	}
	f.p = newPromise(o.logger, func(recovered any) {
		f.observer.CallbackFault(id, recovered)
	})

	schedOpts := []poll.SchedulerOption{
		poll.WithConfig(o.cfg),
		poll.WithSchedulerLogger(o.logger),
	}
	if o.strategy != nil {
		schedOpts = append(schedOpts, poll.WithBackoff(o.strategy))
	}
	if o.gate != nil {
		schedOpts = append(schedOpts, poll.WithGate(o.gate))
	}
	if o.fetchTimeout > 0 {
		schedOpts = append(schedOpts, poll.WithFetchTimeout(o.fetchTimeout))
	}
	f.sched = poll.NewScheduler(source, id, schedOpts...)

	// Subscribe before the first poll. The other order can miss a
	// completion that lands after the poll and before the subscribe.
	if o.channel != nil {
		sub, err := o.channel.Subscribe(ctx, id, notify.Handler{
			OnEvent:      f.onEvent,
			OnDisconnect: f.onDisconnect,
			OnReconnect:  f.onReconnect,
		})
		if err != nil {
			o.logger.Warn("notification channel unavailable, polling only",
				slog.String("run", id.String()),
				slog.String("error", err.Error()),
			)
		} else {
			f.sub = sub
		}
	}

	f.sched.Start(f.onState, f.onFatal)
	return f, nil
}

// ── Public contract ─────────────────────────────────

// Identity returns the tracked (job, run) pair.
func (f *Future) Identity() await.Identity { return f.identity }

// Result blocks until the future resolves or ctx ends. It returns the
// final status for a successful run; for a failed or cancelled run it
// returns the final status together with a *await.JobFailure; for a
// lost status source it returns a *await.StatusUnavailable. A ctx
// deadline expiry yields await.ErrResultTimeout and leaves the future
// untouched and still tracking.
func (f *Future) Result(ctx context.Context) (*await.RunStatus, error) {
	return f.p.wait(ctx)
}

// ResultWithin is Result with a local wait bound.
func (f *Future) ResultWithin(d time.Duration) (*await.RunStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return f.p.wait(ctx)
}

// AddDoneCallback registers fn to run when the future resolves.
// Callbacks fire in registration order; registering on an already
// resolved future invokes fn on the calling goroutine before
// AddDoneCallback returns. A panicking callback is logged and isolated.
func (f *Future) AddDoneCallback(fn func(*Future)) {
	f.p.addCallback(func() { fn(f) })
}

// Cancel asks the platform to cancel the run. It returns true when the
// platform accepted the request; the CANCELLED state then arrives
// through the normal poll path. Cancelling a run that already finished
// is an expected race: Cancel returns false, never an error, and the
// recorded outcome is untouched. Idempotent.
func (f *Future) Cancel(ctx context.Context) bool {
	if f.p.resolved() {
		return false
	}

	f.mu.Lock()
	source := f.source
	f.mu.Unlock()
	if source == nil {
		return false
	}

	ok, err := source.Cancel(ctx, f.identity)
	if err != nil {
		f.logger.Warn("cancel request failed",
			slog.String("run", f.identity.String()),
			slog.String("error", err.Error()),
		)
		return false
	}
	if ok {
		// Confirm the cancellation promptly instead of waiting out the
		// current backoff interval.
		f.sched.Wake()
	}
	return ok
}

// Done reports whether the future has resolved.
func (f *Future) Done() bool { return f.p.resolved() }

// Running reports whether the future is still tracking.
func (f *Future) Running() bool { return !f.p.resolved() }

// Cancelled reports whether the run ended in the cancelled state.
func (f *Future) Cancelled() bool {
	status, _ := f.terminal()
	return status != nil && status.State == await.StateCancelled
}

// Succeeded reports whether the run finished with no error.
func (f *Future) Succeeded() bool {
	status, err := f.terminal()
	return status != nil && err == nil && status.State == await.StateSucceeded
}

// Failed reports whether the future resolved to a failure — either the
// platform reported one or the status source was lost.
func (f *Future) Failed() bool {
	status, _ := f.terminal()
	return status != nil && status.State == await.StateFailed
}

// State returns the most recently observed run state. Before the first
// observation it reports queued.
func (f *Future) State() await.RunState {
	if last := f.last.Load(); last != nil {
		return last.State
	}
	return await.StateQueued
}

// Interval returns the wait planned before the next poll. Read-only,
// exposed for observability and tests.
func (f *Future) Interval() time.Duration { return f.sched.Interval() }

// ── Tracking internals ──────────────────────────────

// onState is the single writer of terminal state. It runs on the poll
// scheduler's goroutine for every successful observation.
func (f *Future) onState(status *await.RunStatus) {
	f.last.Store(status)
	f.observer.PollObserved(f.identity, status.State, f.sched.Interval())
	if !status.Terminal() {
		return
	}

	var err error
	switch status.State {
	case await.StateFailed, await.StateCancelled:
		jf := &await.JobFailure{Identity: f.identity, State: status.State}
		if status.Error != nil {
			jf.Message = status.Error.Message
			jf.Code = status.Error.Code
		}
		err = jf
	}
	f.complete(status, err)
}

// onFatal ends tracking when the status source is lost. The future
// resolves into a failed-like state carrying the transport error, which
// callers can tell apart from a platform-reported failure with
// errors.As.
func (f *Future) onFatal(err error) {
	f.complete(&await.RunStatus{Identity: f.identity, State: await.StateFailed}, err)
}

func (f *Future) complete(status *await.RunStatus, err error) {
	first := f.p.resolve(status, err, f.teardown)
	if !first {
		// A concurrent detector got here first; this path is a no-op.
		return
	}
	f.last.Store(status)
	f.observer.Resolved(f.identity, status.State, err)
}

// teardown stops the poller, releases the subscription, and drops the
// collaborator references. Runs once, before callbacks fire.
func (f *Future) teardown() {
	f.sched.Stop()

	f.mu.Lock()
	sub := f.sub
	f.sub = nil
	f.source = nil
	f.channel = nil
	f.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (f *Future) terminal() (*await.RunStatus, error) {
	if !f.p.resolved() {
		return nil, nil
	}
	return f.p.outcome()
}

// onEvent handles a push delivery: never a state write, only an early
// confirming poll.
func (f *Future) onEvent(notify.Event) {
	if f.p.resolved() {
		return
	}
	f.observer.Woken(f.identity)
	f.sched.Wake()
}

func (f *Future) onDisconnect() {
	f.logger.Warn("notification channel disconnected, using fallback cadence",
		slog.String("run", f.identity.String()),
	)
	f.sched.SetFallback(true)
}

func (f *Future) onReconnect() {
	f.sched.SetFallback(false)
	// Poll once right away in case a completion event was missed while
	// the channel was down.
	f.sched.Wake()
}
