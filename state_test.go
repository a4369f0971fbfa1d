package await

import "testing"

func TestRunState_Terminal(t *testing.T) {
	tests := []struct {
		state RunState
		want  bool
	}{
		{StateQueued, false},
		{StateRunning, false},
		{StateSucceeded, true},
		{StateFailed, true},
		{StateCancelled, true},
		{RunState("unknown"), false},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("%q.Terminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestRunStatus_TerminalOnNil(t *testing.T) {
	var status *RunStatus
	if status.Terminal() {
		t.Error("nil status must not be terminal")
	}
	if !(&RunStatus{State: StateSucceeded}).Terminal() {
		t.Error("succeeded status must be terminal")
	}
}

func TestIdentity(t *testing.T) {
	id := Identity{JobID: "job-1", RunID: "run-1"}
	if id.String() != "job-1/run-1" {
		t.Errorf("String() = %q, want %q", id.String(), "job-1/run-1")
	}
	if !id.Valid() {
		t.Error("expected valid identity")
	}
	if (Identity{JobID: "job-1"}).Valid() {
		t.Error("identity without run ID must be invalid")
	}
	if (Identity{}).Valid() {
		t.Error("zero identity must be invalid")
	}
}

func TestDefaultPollConfig(t *testing.T) {
	cfg := DefaultPollConfig()
	if cfg.Floor <= 0 || cfg.Ceiling < cfg.Floor {
		t.Errorf("cadence bounds out of order: floor %v, ceiling %v", cfg.Floor, cfg.Ceiling)
	}
	if cfg.Multiplier <= 1 {
		t.Errorf("multiplier = %v, want > 1", cfg.Multiplier)
	}
	if cfg.FailureBudget <= 0 {
		t.Error("expected a positive failure budget")
	}
	if cfg.Disconnected <= 0 || cfg.Disconnected > cfg.Ceiling {
		t.Errorf("disconnected cadence = %v, must be within (0, %v]: without a channel, polling is the only wakeup",
			cfg.Disconnected, cfg.Ceiling)
	}
	if !cfg.PollOnCreation {
		t.Error("expected an immediate first poll by default")
	}
}
