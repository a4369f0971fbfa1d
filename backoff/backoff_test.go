package backoff_test

import (
	"testing"
	"time"

	"github.com/xraph/await/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestLinear_GrowsLinearlyAndCaps(t *testing.T) {
	l := backoff.NewLinear(time.Second, 3*time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
		{4, 3 * time.Second}, // capped
	}
	for _, tt := range tests {
		if got := l.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestGeometric_GrowsByMultiplier(t *testing.T) {
	g := backoff.NewGeometric(time.Second, 15*time.Second, 2)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 15 * time.Second}, // 16s capped at ceiling
		{6, 15 * time.Second},
	}
	for _, tt := range tests {
		if got := g.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestGeometric_MonotoneAndCapped(t *testing.T) {
	g := backoff.NewGeometric(250*time.Millisecond, 10*time.Second, 1.5)

	prev := time.Duration(0)
	for attempt := 1; attempt <= 50; attempt++ {
		d := g.Delay(attempt)
		if d < prev {
			t.Fatalf("Delay(%d) = %v decreased from %v", attempt, d, prev)
		}
		if d > 10*time.Second {
			t.Fatalf("Delay(%d) = %v exceeds ceiling", attempt, d)
		}
		prev = d
	}
	if prev != 10*time.Second {
		t.Errorf("delay settled at %v, want the ceiling", prev)
	}
}

func TestGeometric_MultiplierAtOneStaysAtFloor(t *testing.T) {
	g := backoff.NewGeometric(time.Second, time.Minute, 1)
	for attempt := 1; attempt <= 5; attempt++ {
		if got := g.Delay(attempt); got != time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, time.Second)
		}
	}
}

func TestExponential_DoublesEachAttempt(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},  // 1 * 2^0
		{2, 2 * time.Second},  // 1 * 2^1
		{3, 4 * time.Second},  // 1 * 2^2
		{4, 8 * time.Second},  // 1 * 2^3
		{5, 16 * time.Second}, // 1 * 2^4
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)

	if got := e.Delay(5); got != 10*time.Second {
		t.Errorf("Delay(5) = %v, want %v (capped at Max)", got, 10*time.Second)
	}
	if got := e.Delay(20); got != 10*time.Second {
		t.Errorf("Delay(20) = %v, want %v (capped at Max)", got, 10*time.Second)
	}
}

func TestExponentialWithJitter_WithinBounds(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, 10*time.Second)

	for attempt := 1; attempt <= 5; attempt++ {
		maxDelay := 10 * time.Second

		for range 100 {
			got := e.Delay(attempt)
			if got < 0 {
				t.Errorf("Delay(%d) = %v, should be >= 0", attempt, got)
			}
			if got > maxDelay {
				t.Errorf("Delay(%d) = %v, should be <= %v", attempt, got, maxDelay)
			}
		}
	}
}

func TestCursor_AdvancesThroughStrategy(t *testing.T) {
	cur := backoff.NewCursor(backoff.NewGeometric(time.Second, 15*time.Second, 2))

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := cur.Current(); got != w {
			t.Errorf("Current() before step %d = %v, want %v", i+1, got, w)
		}
		if got := cur.Next(); got != w {
			t.Errorf("Next() step %d = %v, want %v", i+1, got, w)
		}
	}
}

func TestCursor_ResetReturnsToFloor(t *testing.T) {
	cur := backoff.NewCursor(backoff.NewGeometric(time.Second, 15*time.Second, 2))

	cur.Next()
	cur.Next()
	cur.Next()
	if got := cur.Current(); got != 8*time.Second {
		t.Fatalf("Current() after 3 steps = %v, want %v", got, 8*time.Second)
	}

	cur.Reset()
	if got := cur.Next(); got != time.Second {
		t.Errorf("Next() after Reset = %v, want the floor %v", got, time.Second)
	}
}

func TestDefaultStrategy_StartsAtOneSecond(t *testing.T) {
	s := backoff.DefaultStrategy()
	if s == nil {
		t.Fatal("DefaultStrategy() returned nil")
	}
	if got := s.Delay(1); got != time.Second {
		t.Errorf("DefaultStrategy().Delay(1) = %v, want 1s", got)
	}
	if got := s.Delay(100); got != 15*time.Second {
		t.Errorf("DefaultStrategy().Delay(100) = %v, want the 15s ceiling", got)
	}
}
