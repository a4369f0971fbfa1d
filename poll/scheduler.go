package poll

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/await"
	"github.com/xraph/await/backoff"
)

// Scheduler polls a StatusSource for one run until a terminal state is
// observed, a permanent error occurs, or Stop is called.
type Scheduler struct {
	source   StatusSource
	identity await.Identity
	cursor   *backoff.Cursor
	logger   *slog.Logger

	budget         int
	fallbackEvery  time.Duration
	pollOnCreation bool
	fetchTimeout   time.Duration
	gate           *Gate

	ctx      context.Context
	cancel   context.CancelFunc
	wake     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
	fallback atomic.Bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithConfig applies a PollConfig's cadence, budget and fallback values.
func WithConfig(cfg await.PollConfig) SchedulerOption {
	return func(s *Scheduler) {
		s.cursor = backoff.NewCursor(backoff.NewGeometric(cfg.Floor, cfg.Ceiling, cfg.Multiplier))
		s.budget = cfg.FailureBudget
		s.fallbackEvery = cfg.Disconnected
		s.pollOnCreation = cfg.PollOnCreation
	}
}

// WithBackoff overrides the interval strategy.
func WithBackoff(strategy backoff.Strategy) SchedulerOption {
	return func(s *Scheduler) { s.cursor = backoff.NewCursor(strategy) }
}

// WithFailureBudget sets how many consecutive transient fetch errors
// are tolerated before tracking ends with a StatusUnavailable error.
func WithFailureBudget(n int) SchedulerOption {
	return func(s *Scheduler) { s.budget = n }
}

// WithFetchTimeout bounds each individual status fetch. Zero disables
// the per-fetch deadline.
func WithFetchTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.fetchTimeout = d }
}

// WithGate attaches a shared poll-rate gate.
func WithGate(g *Gate) SchedulerOption {
	return func(s *Scheduler) { s.gate = g }
}

// WithSchedulerLogger sets the structured logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// NewScheduler creates an unstarted scheduler bound to one run.
func NewScheduler(source StatusSource, id await.Identity, opts ...SchedulerOption) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := await.DefaultPollConfig()
	s := &Scheduler{
		source:         source,
		identity:       id,
		cursor:         backoff.NewCursor(backoff.NewGeometric(cfg.Floor, cfg.Ceiling, cfg.Multiplier)),
		logger:         slog.Default(),
		budget:         cfg.FailureBudget,
		fallbackEvery:  cfg.Disconnected,
		pollOnCreation: cfg.PollOnCreation,
		ctx:            ctx,
		cancel:         cancel,
		wake:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the polling loop on its own goroutine. onState receives
// every successful observation, terminal or not; onFatal receives the
// single error that ends tracking early. Start is a no-op after the
// first call.
func (s *Scheduler) Start(onState func(*await.RunStatus), onFatal func(error)) {
	if s.started.Swap(true) {
		return
	}
	go s.run(onState, onFatal)
}

// Wake resets the interval to the floor and triggers an immediate
// confirming fetch. Safe to call from any goroutine, before Start, or
// after Stop; extra wakeups coalesce.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop ends the loop cooperatively. It cancels any in-flight fetch and
// never blocks. Idempotent.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(s.cancel)
}

// SetFallback switches between the backoff cadence and the fixed
// disconnected-channel cadence.
func (s *Scheduler) SetFallback(on bool) {
	s.fallback.Store(on)
}

// Interval returns the wait the scheduler plans before its next fetch.
// Exposed for observability and tests.
func (s *Scheduler) Interval() time.Duration {
	if s.fallback.Load() {
		return s.fallbackEvery
	}
	return s.cursor.Current()
}

func (s *Scheduler) run(onState func(*await.RunStatus), onFatal func(error)) {
	var delay time.Duration
	if !s.pollOnCreation {
		delay = s.nextDelay()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	consecutive := 0
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
			s.cursor.Reset()
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}

		if s.gate != nil {
			if err := s.gate.Wait(s.ctx); err != nil {
				return
			}
		}

		status, err := s.fetch()
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			if !IsTransient(err) {
				onFatal(err)
				return
			}
			consecutive++
			if consecutive > s.budget {
				onFatal(&await.StatusUnavailable{
					Identity: s.identity,
					Attempts: consecutive,
					Err:      err,
				})
				return
			}
			s.logger.Warn("transient status fetch fault",
				slog.String("run", s.identity.String()),
				slog.Int("consecutive", consecutive),
				slog.String("error", err.Error()),
			)
			timer.Reset(s.retryDelay())
			continue
		}
		consecutive = 0

		if status != nil {
			onState(status)
			if status.Terminal() {
				return
			}
		}
		timer.Reset(s.nextDelay())
	}
}

func (s *Scheduler) fetch() (*await.RunStatus, error) {
	ctx := s.ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.fetchTimeout)
		defer cancel()
	}
	return s.source.GetStatus(ctx, s.identity)
}

// nextDelay advances the backoff cursor; called after each non-terminal
// observation.
func (s *Scheduler) nextDelay() time.Duration {
	if s.fallback.Load() {
		return s.fallbackEvery
	}
	return s.cursor.Next()
}

// retryDelay does not advance: transient faults are retried at the
// current interval.
func (s *Scheduler) retryDelay() time.Duration {
	if s.fallback.Load() {
		return s.fallbackEvery
	}
	return s.cursor.Current()
}
