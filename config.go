package await

import "time"

// PollConfig holds the polling cadence for one tracked run.
type PollConfig struct {
	// Floor is the initial interval between status fetches.
	Floor time.Duration

	// Ceiling caps interval growth.
	Ceiling time.Duration

	// Multiplier is the geometric growth factor applied after each
	// non-terminal observation.
	Multiplier float64

	// FailureBudget is how many consecutive transient fetch errors are
	// tolerated before the tracker gives up and reports the status as
	// unavailable.
	FailureBudget int

	// Disconnected is the fixed fallback cadence used while the push
	// channel is down. It must stay at or below Ceiling: with no
	// channel to deliver wakeups, polling is the only way a completion
	// gets noticed.
	Disconnected time.Duration

	// PollOnCreation controls whether the first fetch happens
	// immediately. When false, the poller waits one full Floor interval
	// before the first fetch.
	PollOnCreation bool
}

// DefaultPollConfig returns a PollConfig with sensible defaults.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Floor:          1 * time.Second,
		Ceiling:        15 * time.Second,
		Multiplier:     2,
		FailureBudget:  5,
		Disconnected:   5 * time.Second,
		PollOnCreation: true,
	}
}
