package reporter

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// CycleTimer measures the wall-clock duration of the current work cycle and
// remembers how long the previous one took.
type CycleTimer struct {
	clock clockwork.Clock
	start *time.Time
	last  *float64
}

// NewCycleTimer returns a timer reading time from clock. A nil clock uses
// the real clock.
func NewCycleTimer(clock clockwork.Clock) *CycleTimer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CycleTimer{clock: clock}
}

// StartCycle records the current time as the start of a cycle.
func (t *CycleTimer) StartCycle() {
	now := t.clock.Now()
	t.start = &now
}

// StopCycle stores the elapsed time of the active cycle as the last
// duration and ends the cycle. Without an active cycle the last duration
// becomes unknown.
func (t *CycleTimer) StopCycle() {
	if d, ok := t.CurrentDuration(); ok {
		t.last = &d
	} else {
		t.last = nil
	}
	t.start = nil
}

// CurrentDuration returns the seconds elapsed since StartCycle. ok is false
// when no cycle is active.
func (t *CycleTimer) CurrentDuration() (seconds float64, ok bool) {
	if t.start == nil {
		return 0, false
	}
	return t.clock.Since(*t.start).Seconds(), true
}

// LastDuration returns the duration of the most recently completed cycle.
// ok is false until a cycle has completed.
func (t *CycleTimer) LastDuration() (seconds float64, ok bool) {
	if t.last == nil {
		return 0, false
	}
	return *t.last, true
}

// Active reports whether a cycle is in progress.
func (t *CycleTimer) Active() bool { return t.start != nil }

// statistics captures the timer as the snapshot's nullable fields.
func (t *CycleTimer) statistics() Statistics {
	var s Statistics
	if d, ok := t.CurrentDuration(); ok {
		s.CurrentCycleTime = &d
	}
	if d, ok := t.LastDuration(); ok {
		s.LastCycleTime = &d
	}
	return s
}
