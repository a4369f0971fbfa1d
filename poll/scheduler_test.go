package poll_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/await"
	"github.com/xraph/await/backoff"
	"github.com/xraph/await/poll"
)

var testRun = await.Identity{JobID: "55", RunID: "2"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() await.PollConfig {
	return await.PollConfig{
		Floor:          2 * time.Millisecond,
		Ceiling:        20 * time.Millisecond,
		Multiplier:     2,
		FailureBudget:  5,
		Disconnected:   5 * time.Millisecond,
		PollOnCreation: true,
	}
}

// sequenceSource replays scripted (status, error) pairs, repeating the
// last one once the script runs out.
type sequenceSource struct {
	mu     sync.Mutex
	status []*await.RunStatus
	errs   []error
	calls  int
	polled chan struct{}
}

func newSequenceSource() *sequenceSource {
	return &sequenceSource{polled: make(chan struct{}, 64)}
}

func (s *sequenceSource) add(status *await.RunStatus, err error) *sequenceSource {
	s.status = append(s.status, status)
	s.errs = append(s.errs, err)
	return s
}

func (s *sequenceSource) GetStatus(context.Context, await.Identity) (*await.RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	select {
	case s.polled <- struct{}{}:
	default:
	}
	i := min(s.calls-1, len(s.status)-1)
	return s.status[i], s.errs[i]
}

func (s *sequenceSource) Cancel(context.Context, await.Identity) (bool, error) {
	return false, nil
}

func (s *sequenceSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func runningStatus() *await.RunStatus {
	return &await.RunStatus{Identity: testRun, State: await.StateRunning}
}

func succeededStatus() *await.RunStatus {
	return &await.RunStatus{Identity: testRun, State: await.StateSucceeded}
}

// collect gathers scheduler output until a terminal state or fatal
// error arrives.
type collect struct {
	mu     sync.Mutex
	states []await.RunState
	fatal  error
	done   chan struct{}
}

func newCollect() *collect {
	return &collect{done: make(chan struct{})}
}

func (c *collect) onState(status *await.RunStatus) {
	c.mu.Lock()
	c.states = append(c.states, status.State)
	terminal := status.Terminal()
	c.mu.Unlock()
	if terminal {
		close(c.done)
	}
}

func (c *collect) onFatal(err error) {
	c.mu.Lock()
	c.fatal = err
	c.mu.Unlock()
	close(c.done)
}

func (c *collect) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never finished")
	}
}

func TestScheduler_PollsUntilTerminal(t *testing.T) {
	src := newSequenceSource().
		add(runningStatus(), nil).
		add(runningStatus(), nil).
		add(succeededStatus(), nil)

	s := poll.NewScheduler(src, testRun,
		poll.WithConfig(fastConfig()),
		poll.WithSchedulerLogger(testLogger()),
	)
	c := newCollect()
	s.Start(c.onState, c.onFatal)
	c.wait(t)

	want := []await.RunState{await.StateRunning, await.StateRunning, await.StateSucceeded}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.states) != len(want) {
		t.Fatalf("observed %v, want %v", c.states, want)
	}
	for i, w := range want {
		if c.states[i] != w {
			t.Errorf("observation %d = %s, want %s", i, c.states[i], w)
		}
	}
	if src.callCount() != 3 {
		t.Errorf("fetch count = %d, want 3 (stop after terminal)", src.callCount())
	}
}

func TestScheduler_PlannedIntervalSequence(t *testing.T) {
	cfg := fastConfig()
	src := newSequenceSource().
		add(runningStatus(), nil).
		add(runningStatus(), nil).
		add(succeededStatus(), nil)

	s := poll.NewScheduler(src, testRun,
		poll.WithConfig(cfg),
		poll.WithSchedulerLogger(testLogger()),
	)

	// Record the delay the scheduler plans at each observation. At the
	// callback the cursor has not advanced yet, so Interval() is
	// exactly the wait about to be scheduled.
	var mu sync.Mutex
	var planned []time.Duration
	done := make(chan struct{})
	s.Start(func(status *await.RunStatus) {
		mu.Lock()
		if !status.Terminal() {
			planned = append(planned, s.Interval())
		}
		mu.Unlock()
		if status.Terminal() {
			close(done)
		}
	}, func(err error) {
		t.Errorf("unexpected fatal: %v", err)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never finished")
	}

	// RUNNING, RUNNING, SUCCEEDED with floor 2ms and multiplier 2:
	// waits of floor then 2*floor are attempted, then nothing.
	want := []time.Duration{cfg.Floor, 2 * cfg.Floor}
	mu.Lock()
	defer mu.Unlock()
	if len(planned) != len(want) {
		t.Fatalf("planned intervals %v, want %v", planned, want)
	}
	for i, w := range want {
		if planned[i] != w {
			t.Errorf("planned[%d] = %v, want %v", i, planned[i], w)
		}
	}
	if src.callCount() != 3 {
		t.Errorf("fetch count = %d, want 3 (no wait after terminal)", src.callCount())
	}
}

func TestScheduler_IntervalGrowsThenStops(t *testing.T) {
	cfg := fastConfig()
	src := newSequenceSource().add(runningStatus(), nil)

	s := poll.NewScheduler(src, testRun,
		poll.WithConfig(cfg),
		poll.WithSchedulerLogger(testLogger()),
	)
	defer s.Stop()

	// Before any observation the planned interval is the floor.
	if got := s.Interval(); got != cfg.Floor {
		t.Errorf("initial Interval() = %v, want the floor %v", got, cfg.Floor)
	}

	c := newCollect()
	s.Start(c.onState, c.onFatal)

	// Let several non-terminal observations accumulate.
	for range 3 {
		select {
		case <-src.polled:
		case <-time.After(2 * time.Second):
			t.Fatal("poll never happened")
		}
	}

	if got := s.Interval(); got <= cfg.Floor {
		t.Errorf("Interval() after 3 observations = %v, want growth beyond the floor", got)
	}
	if got := s.Interval(); got > cfg.Ceiling {
		t.Errorf("Interval() = %v exceeds the ceiling %v", got, cfg.Ceiling)
	}
}

func TestScheduler_WakeShortcutsBackoff(t *testing.T) {
	cfg := fastConfig()
	cfg.Floor = 500 * time.Millisecond
	cfg.Ceiling = time.Second

	src := newSequenceSource().add(runningStatus(), nil).add(succeededStatus(), nil)
	s := poll.NewScheduler(src, testRun,
		poll.WithConfig(cfg),
		poll.WithSchedulerLogger(testLogger()),
	)
	c := newCollect()
	s.Start(c.onState, c.onFatal)

	select {
	case <-src.polled:
	case <-time.After(2 * time.Second):
		t.Fatal("creation-time poll never happened")
	}

	start := time.Now()
	s.Wake()
	c.wait(t)

	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("wake-triggered poll took %v, want well under the 500ms floor", elapsed)
	}
	// The wake reset the cursor, so the planned interval is back at the
	// floor.
	if got := s.Interval(); got != cfg.Floor {
		t.Errorf("Interval() after wake = %v, want the floor", got)
	}
}

func TestScheduler_TransientFaultsWithinBudget(t *testing.T) {
	fault := poll.Transient(errors.New("i/o timeout"))
	src := newSequenceSource().
		add(nil, fault).
		add(nil, fault).
		add(nil, fault).
		add(succeededStatus(), nil)

	s := poll.NewScheduler(src, testRun,
		poll.WithConfig(fastConfig()),
		poll.WithFailureBudget(5),
		poll.WithSchedulerLogger(testLogger()),
	)
	c := newCollect()
	s.Start(c.onState, c.onFatal)
	c.wait(t)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fatal != nil {
		t.Fatalf("fatal = %v, want recovery within budget", c.fatal)
	}
	if len(c.states) != 1 || c.states[0] != await.StateSucceeded {
		t.Errorf("observations = %v, want one succeeded", c.states)
	}
}

func TestScheduler_BudgetExhaustionIsFatal(t *testing.T) {
	fault := poll.Transient(errors.New("i/o timeout"))
	src := newSequenceSource().add(nil, fault)

	s := poll.NewScheduler(src, testRun,
		poll.WithConfig(fastConfig()),
		poll.WithFailureBudget(2),
		poll.WithSchedulerLogger(testLogger()),
	)
	c := newCollect()
	s.Start(c.onState, c.onFatal)
	c.wait(t)

	c.mu.Lock()
	defer c.mu.Unlock()
	var su *await.StatusUnavailable
	if !errors.As(c.fatal, &su) {
		t.Fatalf("fatal = %v, want *await.StatusUnavailable", c.fatal)
	}
	if su.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", su.Attempts)
	}
	if src.callCount() != 3 {
		t.Errorf("fetch count = %d, want 3", src.callCount())
	}
}

func TestScheduler_NilStatusTreatedAsNotDone(t *testing.T) {
	// Spotty connectivity can yield a nil status with no error; that is
	// "not done yet", not a fault.
	src := newSequenceSource().add(nil, nil).add(succeededStatus(), nil)

	s := poll.NewScheduler(src, testRun,
		poll.WithConfig(fastConfig()),
		poll.WithSchedulerLogger(testLogger()),
	)
	c := newCollect()
	s.Start(c.onState, c.onFatal)
	c.wait(t)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fatal != nil {
		t.Fatalf("fatal = %v, want none", c.fatal)
	}
	if len(c.states) != 1 {
		t.Errorf("observations = %v, nil statuses must not be reported", c.states)
	}
}

func TestScheduler_StopIsCooperativeAndIdempotent(t *testing.T) {
	cfg := fastConfig()
	cfg.Floor = time.Hour // the loop would otherwise sleep forever
	cfg.PollOnCreation = true

	src := newSequenceSource().add(runningStatus(), nil)
	s := poll.NewScheduler(src, testRun,
		poll.WithConfig(cfg),
		poll.WithSchedulerLogger(testLogger()),
	)
	c := newCollect()
	s.Start(c.onState, c.onFatal)

	select {
	case <-src.polled:
	case <-time.After(2 * time.Second):
		t.Fatal("creation-time poll never happened")
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked")
	}

	calls := src.callCount()
	time.Sleep(20 * time.Millisecond)
	if src.callCount() != calls {
		t.Error("scheduler kept fetching after Stop")
	}
}

func TestScheduler_PollOnCreationFalseWaitsFirst(t *testing.T) {
	cfg := fastConfig()
	cfg.Floor = 100 * time.Millisecond
	cfg.Ceiling = 400 * time.Millisecond
	cfg.PollOnCreation = false

	src := newSequenceSource().add(succeededStatus(), nil)
	s := poll.NewScheduler(src, testRun,
		poll.WithConfig(cfg),
		poll.WithSchedulerLogger(testLogger()),
	)
	c := newCollect()
	start := time.Now()
	s.Start(c.onState, c.onFatal)
	c.wait(t)

	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("first poll after %v, want a full floor interval first", elapsed)
	}
}

func TestScheduler_FallbackCadenceOverridesBackoff(t *testing.T) {
	cfg := fastConfig()
	src := newSequenceSource().add(runningStatus(), nil)
	s := poll.NewScheduler(src, testRun,
		poll.WithConfig(cfg),
		poll.WithSchedulerLogger(testLogger()),
	)
	defer s.Stop()

	s.SetFallback(true)
	if got := s.Interval(); got != cfg.Disconnected {
		t.Errorf("Interval() with fallback = %v, want %v", got, cfg.Disconnected)
	}
	s.SetFallback(false)
	if got := s.Interval(); got != cfg.Floor {
		t.Errorf("Interval() without fallback = %v, want %v", got, cfg.Floor)
	}
}

func TestScheduler_CustomStrategyViaWithBackoff(t *testing.T) {
	src := newSequenceSource().add(runningStatus(), nil)
	s := poll.NewScheduler(src, testRun,
		poll.WithBackoff(backoff.NewConstant(7*time.Millisecond)),
		poll.WithSchedulerLogger(testLogger()),
	)
	defer s.Stop()

	if got := s.Interval(); got != 7*time.Millisecond {
		t.Errorf("Interval() = %v, want the constant strategy value", got)
	}
}

func TestGate_BoundsAggregateRate(t *testing.T) {
	g := poll.NewGate(1000, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	for range 3 {
		if err := g.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	// 3 tokens at 1000/s with burst 1: the 2nd and 3rd each wait ~1ms.
	if elapsed := time.Since(start); elapsed < time.Millisecond {
		t.Errorf("3 acquisitions took %v, want some throttling", elapsed)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	slow := poll.NewGate(0.001, 1)
	_ = slow.Wait(context.Background()) // consume the burst token
	if err := slow.Wait(cancelled); err == nil {
		t.Error("Wait with a cancelled context succeeded")
	}
}
