package retry

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	serrors "git.home.luguber.info/inful/syncd/internal/errors"
	"git.home.luguber.info/inful/syncd/internal/logfields"
	"git.home.luguber.info/inful/syncd/internal/reporter"
)

// Sink repeats a failed write while the error is retryable and the policy
// allows another attempt. The same snapshot is written every time.
type Sink struct {
	name   string
	next   reporter.Sink
	policy Policy
	clock  clockwork.Clock
}

// SinkOption customizes a Sink.
type SinkOption func(*Sink)

// WithClock sets the clock used to wait between attempts.
func WithClock(c clockwork.Clock) SinkOption {
	return func(s *Sink) { s.clock = c }
}

// NewSink wraps next. name identifies the sink in logs.
func NewSink(name string, next reporter.Sink, policy Policy, opts ...SinkOption) *Sink {
	if next == nil {
		panic("retry: sink is required")
	}
	s := &Sink{name: name, next: next, policy: policy, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write implements reporter.Sink.
func (s *Sink) Write(snap reporter.Snapshot) error {
	err := s.next.Write(snap)
	for attempt := 1; err != nil && serrors.IsRetryable(err) && attempt <= s.policy.MaxRetries; attempt++ {
		delay := s.policy.Delay(attempt)
		slog.Debug("Retrying status write",
			logfields.Sink(s.name),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			logfields.Error(err))
		s.clock.Sleep(delay)
		err = s.next.Write(snap)
	}
	return err
}
