// Package observability records tracking lifecycle metrics via
// OpenTelemetry. Attach a Metrics to a tracker with
// future.WithObserver to count polls, wakeups, and resolutions across
// all tracked runs.
package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/await"
	"github.com/xraph/await/future"
)

// meterName is the instrumentation scope name for await metrics.
const meterName = "github.com/xraph/await"

// Compile-time interface check.
var _ future.Observer = (*Metrics)(nil)

// Metrics implements future.Observer on OTel instruments.
//
// Instruments:
//   - await.polls (Int64Counter): status fetches, with attributes
//     job_id and state
//   - await.poll.interval (Float64Histogram): planned delay before the
//     next poll, in seconds
//   - await.wakeups (Int64Counter): pushes that triggered an early poll
//   - await.resolutions (Int64Counter): terminal outcomes, with
//     attributes state and outcome ("ok", "failure", "unavailable")
//   - await.callback.faults (Int64Counter): completion callbacks that
//     panicked
type Metrics struct {
	polls       metric.Int64Counter
	interval    metric.Float64Histogram
	wakeups     metric.Int64Counter
	resolutions metric.Int64Counter
	faults      metric.Int64Counter
}

// NewMetrics builds a Metrics on the global OTel MeterProvider. With no
// provider configured the instruments are noops.
func NewMetrics() *Metrics {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter builds a Metrics on the provided meter. This
// variant allows injecting a specific MeterProvider for testing.
func NewMetricsWithMeter(meter metric.Meter) *Metrics {
	m := &Metrics{}
	var err error

	m.polls, err = meter.Int64Counter(
		"await.polls",
		metric.WithDescription("Total number of status fetches"),
		metric.WithUnit("{poll}"),
	)
	_ = err // noop fallback guaranteed by OTel API contract

	m.interval, err = meter.Float64Histogram(
		"await.poll.interval",
		metric.WithDescription("Planned delay before the next status fetch"),
		metric.WithUnit("s"),
	)
	_ = err

	m.wakeups, err = meter.Int64Counter(
		"await.wakeups",
		metric.WithDescription("Push notifications that triggered an early poll"),
		metric.WithUnit("{wakeup}"),
	)
	_ = err

	m.resolutions, err = meter.Int64Counter(
		"await.resolutions",
		metric.WithDescription("Futures that reached a terminal outcome"),
		metric.WithUnit("{resolution}"),
	)
	_ = err

	m.faults, err = meter.Int64Counter(
		"await.callback.faults",
		metric.WithDescription("Completion callbacks that panicked"),
		metric.WithUnit("{fault}"),
	)
	_ = err

	return m
}

// PollObserved implements future.Observer.
func (m *Metrics) PollObserved(id await.Identity, state await.RunState, nextInterval time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("job_id", id.JobID),
		attribute.String("state", string(state)),
	)
	m.polls.Add(ctx, 1, attrs)
	m.interval.Record(ctx, nextInterval.Seconds(), attrs)
}

// Woken implements future.Observer.
func (m *Metrics) Woken(id await.Identity) {
	m.wakeups.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("job_id", id.JobID),
	))
}

// Resolved implements future.Observer.
func (m *Metrics) Resolved(id await.Identity, state await.RunState, err error) {
	outcome := "ok"
	var unavailable *await.StatusUnavailable
	switch {
	case err == nil:
	case errors.As(err, &unavailable):
		outcome = "unavailable"
	default:
		outcome = "failure"
	}
	m.resolutions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("job_id", id.JobID),
		attribute.String("state", string(state)),
		attribute.String("outcome", outcome),
	))
}

// CallbackFault implements future.Observer.
func (m *Metrics) CallbackFault(id await.Identity, _ any) {
	m.faults.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("job_id", id.JobID),
	))
}
