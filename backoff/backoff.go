// Package backoff provides pluggable delay strategies for polling and
// reconnection. Strategies are stateless and safe for concurrent use;
// Cursor adds the small amount of per-poller state the scheduler needs.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before attempt n (1-indexed).
type Strategy interface {
	// Delay returns how long to wait before attempt n. Attempt 1 is the
	// first wait after the loop starts.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Linear
// ──────────────────────────────────────────────────

// Linear increases the delay linearly with the attempt number.
// Delay = min(Initial * attempt, Max).
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear backoff strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * attempt, capped at Max.
func (l *Linear) Delay(attempt int) time.Duration {
	d := l.Initial * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Geometric
// ──────────────────────────────────────────────────

// Geometric grows the delay by a fixed ratio each attempt, starting at
// Floor and never exceeding Ceiling.
// Delay = min(Floor * Multiplier^(attempt-1), Ceiling).
//
// This is the poller's default cadence: short-running jobs get checked
// several times within the first few seconds, while long-running jobs
// settle at the ceiling.
type Geometric struct {
	Floor      time.Duration
	Ceiling    time.Duration
	Multiplier float64
}

// NewGeometric creates a geometric backoff strategy. A multiplier at or
// below 1 degenerates to a constant Floor delay.
func NewGeometric(floor, ceiling time.Duration, multiplier float64) *Geometric {
	return &Geometric{Floor: floor, Ceiling: ceiling, Multiplier: multiplier}
}

// Delay returns Floor * Multiplier^(attempt-1), capped at Ceiling.
func (g *Geometric) Delay(attempt int) time.Duration {
	if g.Multiplier <= 1 {
		return g.Floor
	}
	d := time.Duration(float64(g.Floor) * math.Pow(g.Multiplier, float64(attempt-1)))
	if g.Ceiling > 0 && (d > g.Ceiling || d < 0) {
		return g.Ceiling
	}
	return d
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && (d > e.Max || d < 0) {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * 2^(attempt-1), Max)].
// Jitter prevents a thundering herd when many trackers reconnect to the
// same endpoint at once.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the default polling cadence: geometric growth
// from 1s to a 15s ceiling, doubling per attempt.
func DefaultStrategy() Strategy {
	return NewGeometric(1*time.Second, 15*time.Second, 2)
}
