package reporter

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/syncd/internal/logfields"
	"git.home.luguber.info/inful/syncd/internal/metrics"
)

// ErrClosed is returned by every transition attempted after Close.
var ErrClosed = errors.New("reporter: closed")

// Reporter tracks the daemon's activity and publishes a snapshot to its
// sink after every transition. It is not safe for concurrent use; the
// daemon loop calls it sequentially.
type Reporter struct {
	sink     Sink
	clock    clockwork.Clock
	recorder metrics.Recorder

	timer  *CycleTimer
	status DaemonStatus
	repo   *RepoOutcome
	repos  []RepoOutcome
	closed bool
}

// Option customizes a Reporter.
type Option func(*Reporter)

// WithClock sets the clock used for cycle timing.
func WithClock(c clockwork.Clock) Option {
	return func(r *Reporter) { r.clock = c }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Reporter) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// New creates a Reporter writing to sink and publishes the initial
// "starting" snapshot. The returned Reporter is usable even when that first
// write fails. New panics if sink is nil.
func New(sink Sink, opts ...Option) (*Reporter, error) {
	if sink == nil {
		panic("reporter: sink is required")
	}
	r := &Reporter{
		sink:     sink,
		clock:    clockwork.NewRealClock(),
		recorder: metrics.NoopRecorder{},
		repos:    make([]RepoOutcome, 0),
		status:   StatusStarting,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.timer = NewCycleTimer(r.clock)
	return r, r.publish(StatusStarting)
}

// StartSleep ends the current cycle and reports that the daemon is sleeping.
// duration is the intended sleep length; it is informational only.
func (r *Reporter) StartSleep(duration time.Duration) error {
	if r.closed {
		return ErrClosed
	}
	r.timer.StopCycle()
	if last, ok := r.timer.LastDuration(); ok {
		r.recorder.ObserveCycleDuration(time.Duration(last * float64(time.Second)))
		slog.Info("Cycle finished", logfields.CycleSeconds(last), slog.Duration("sleep", duration))
	}
	return r.publish(StatusSleeping)
}

// UpdateSleep republishes the sleeping status, e.g. as a heartbeat while
// the daemon waits. remaining is informational only.
func (r *Reporter) UpdateSleep(remaining time.Duration) error {
	if r.closed {
		return ErrClosed
	}
	slog.Debug("Still sleeping", slog.Duration("remaining", remaining))
	return r.publish(StatusSleeping)
}

// FinishSleep starts a new cycle and reports the daemon idle.
func (r *Reporter) FinishSleep() error {
	if r.closed {
		return ErrClosed
	}
	r.timer.StartCycle()
	return r.publish(StatusIdle)
}

// StartRepo marks repository name as in flight. It panics if another
// repository is still in flight.
func (r *Reporter) StartRepo(name, humanName string) error {
	if r.closed {
		return ErrClosed
	}
	if r.repo != nil {
		panic("reporter: StartRepo(" + name + ") while " + r.repo.Name + " is still in flight")
	}
	r.repo = &RepoOutcome{Name: name, HumanName: humanName, Status: RepoUpdating}
	slog.Debug("Repository started", logfields.Repository(name), logfields.HumanName(humanName))
	return r.publish(StatusUpdating)
}

// FailRepo records the in-flight repository as failed. The daemon stays
// "updating" since the next repository usually follows immediately.
// It panics if no repository is in flight.
func (r *Reporter) FailRepo() error {
	if r.closed {
		return ErrClosed
	}
	r.completeRepo(RepoFailed)
	return r.publish(StatusUpdating)
}

// FinishRepo records the in-flight repository as ok and reports the daemon
// idle. It panics if no repository is in flight.
func (r *Reporter) FinishRepo() error {
	if r.closed {
		return ErrClosed
	}
	r.completeRepo(RepoOK)
	return r.publish(StatusIdle)
}

func (r *Reporter) completeRepo(status RepoStatus) {
	if r.repo == nil {
		panic("reporter: no repository in flight")
	}
	outcome := *r.repo
	outcome.Status = status
	r.repos = append(r.repos, outcome)
	r.repo = nil
	r.recorder.IncRepoOutcome(string(status))
	slog.Debug("Repository finished", logfields.Repository(outcome.Name), logfields.RepoStatus(string(status)))
}

// Close publishes the terminal "stopped" snapshot. Later transitions,
// including a second Close, return ErrClosed and publish nothing.
func (r *Reporter) Close() error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	return r.publish(StatusStopped)
}

// Status returns the most recently published daemon status.
func (r *Reporter) Status() DaemonStatus { return r.status }

// snapshot assembles the current state under the given status.
func (r *Reporter) snapshot(status DaemonStatus) Snapshot {
	s := Snapshot{
		Status:     status,
		Repos:      make([]RepoOutcome, len(r.repos)),
		Statistics: r.timer.statistics(),
	}
	copy(s.Repos, r.repos)
	if r.repo != nil {
		cur := *r.repo
		s.CurrentRepo = &cur
	}
	return s
}

// Snapshot returns a copy of the state as last published.
func (r *Reporter) Snapshot() Snapshot { return r.snapshot(r.status) }

func (r *Reporter) publish(status DaemonStatus) error {
	r.status = status
	snap := r.snapshot(status)
	r.recorder.SetDaemonStatus(string(status))

	start := time.Now()
	err := r.sink.Write(snap)
	r.recorder.ObserveSinkWrite(time.Since(start), err == nil)
	if err != nil {
		slog.Error("Failed to publish status", logfields.DaemonStatus(string(status)), logfields.Error(err))
		return err
	}
	slog.Debug("Status published", logfields.DaemonStatus(string(status)), slog.Int("repos", len(snap.Repos)))
	return nil
}
