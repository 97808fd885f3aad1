package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/syncd/internal/config"
	serrors "git.home.luguber.info/inful/syncd/internal/errors"
	"git.home.luguber.info/inful/syncd/internal/logfields"
	"git.home.luguber.info/inful/syncd/internal/metrics"
	"git.home.luguber.info/inful/syncd/internal/reporter"
)

const (
	cycleJobName     = "sync-cycle"
	heartbeatJobName = "sleep-heartbeat"
)

// Daemon owns the reporter and serializes every transition on it.
type Daemon struct {
	cfg       *config.Config
	reporter  *reporter.Reporter
	processor Processor
	recorder  metrics.Recorder
	clock     clockwork.Clock
	runID     string
	startedAt time.Time

	mu        sync.Mutex // guards reporter, scheduler and cycleJob
	scheduler *Scheduler
	cycleJob  uuid.UUID

	status      atomic.Value // reporter.DaemonStatus, readable without mu
	cycles      atomic.Int64
	lastCycleAt atomic.Int64 // unix millis of the last completed cycle
	lastFailed  atomic.Int64 // failed repositories in the last completed cycle
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithProcessor replaces the default GitProcessor.
func WithProcessor(p Processor) Option {
	return func(d *Daemon) { d.processor = p }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(d *Daemon) {
		if rec != nil {
			d.recorder = rec
		}
	}
}

// WithClock sets the clock used for scheduling and timing.
func WithClock(c clockwork.Clock) Option {
	return func(d *Daemon) { d.clock = c }
}

// WithRunID sets the identifier logged with every cycle.
func WithRunID(id string) Option {
	return func(d *Daemon) { d.runID = id }
}

// New creates a daemon driving r over the repositories in cfg.
func New(cfg *config.Config, r *reporter.Reporter, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, serrors.ConfigRequired("config")
	}
	if r == nil {
		return nil, serrors.InternalError("reporter is required", nil)
	}
	d := &Daemon{
		cfg:      cfg,
		reporter: r,
		recorder: metrics.NoopRecorder{},
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.processor == nil {
		d.processor = NewGitProcessor(cfg.Diff.MaxSize, d.recorder)
	}
	if d.runID == "" {
		d.runID = uuid.NewString()
	}
	d.startedAt = d.clock.Now()
	d.status.Store(r.Status())
	return d, nil
}

// RunID returns the identifier of this daemon run.
func (d *Daemon) RunID() string { return d.runID }

// Status returns the most recently published daemon status.
func (d *Daemon) Status() reporter.DaemonStatus {
	s, _ := d.status.Load().(reporter.DaemonStatus)
	return s
}

// Cycles returns the number of completed cycles.
func (d *Daemon) Cycles() int64 { return d.cycles.Load() }

// RunCycle processes every configured repository once and then reports
// the daemon sleeping until the next scheduled cycle. Cancelling ctx skips
// the remaining repositories. Sink failures are logged by the reporter and
// do not interrupt the cycle; only reporter.ErrClosed is returned.
func (d *Daemon) RunCycle(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	slog.Info("Cycle starting", logfields.RunID(d.runID), slog.Int("repositories", len(d.cfg.Daemon.Repositories)))
	if err := d.transition(d.reporter.FinishSleep()); err != nil {
		return err
	}

	var failed int64
	for _, repo := range d.cfg.Daemon.Repositories {
		if ctx.Err() != nil {
			slog.Warn("Cycle interrupted", logfields.RunID(d.runID), logfields.Repository(repo.Name))
			break
		}
		if err := d.transition(d.reporter.StartRepo(repo.Name, repo.HumanName)); err != nil {
			return err
		}

		start := d.clock.Now()
		procErr := d.process(ctx, repo)
		d.recorder.ObserveRepoDuration(repo.Name, d.clock.Since(start), procErr == nil)

		if procErr != nil {
			failed++
			slog.Warn("Repository update failed", logfields.Repository(repo.Name), logfields.Error(procErr))
			if err := d.transition(d.reporter.FailRepo()); err != nil {
				return err
			}
			continue
		}
		if err := d.transition(d.reporter.FinishRepo()); err != nil {
			return err
		}
	}

	if err := d.transition(d.reporter.StartSleep(d.untilNextCycle())); err != nil {
		return err
	}
	d.cycles.Add(1)
	d.lastFailed.Store(failed)
	d.lastCycleAt.Store(d.clock.Now().UnixMilli())
	return nil
}

// Heartbeat refreshes the sleeping status. It does nothing while a cycle
// is running or before the first cycle has completed.
func (d *Daemon) Heartbeat() error {
	if !d.mu.TryLock() {
		return nil
	}
	defer d.mu.Unlock()
	if d.reporter.Status() != reporter.StatusSleeping {
		return nil
	}
	return d.transition(d.reporter.UpdateSleep(d.untilNextCycle()))
}

// Run schedules the cycle (first run immediately) and the heartbeat, and
// blocks until ctx is cancelled. It then waits for a running cycle to
// finish and publishes the final "stopped" status.
func (d *Daemon) Run(ctx context.Context) error {
	sched, err := NewScheduler(d.clock)
	if err != nil {
		return err
	}

	cycleJob, err := sched.ScheduleEvery(cycleJobName, d.cfg.CycleInterval(), func() {
		if err := d.RunCycle(ctx); err != nil {
			slog.Error("Cycle aborted", logfields.RunID(d.runID), logfields.Error(err))
		}
	}, gocron.WithStartAt(gocron.WithStartImmediately()))
	if err != nil {
		return err
	}
	if _, err := sched.ScheduleEvery(heartbeatJobName, d.cfg.HeartbeatInterval(), func() {
		if err := d.Heartbeat(); err != nil {
			slog.Debug("Heartbeat not published", logfields.Error(err))
		}
	}); err != nil {
		return err
	}

	d.mu.Lock()
	d.scheduler = sched
	d.cycleJob = cycleJob
	d.mu.Unlock()

	slog.Info("Daemon started",
		logfields.RunID(d.runID),
		slog.Duration("interval", d.cfg.CycleInterval()),
		slog.Duration("heartbeat", d.cfg.HeartbeatInterval()))
	sched.Start(ctx)

	<-ctx.Done()

	stopErr := sched.Stop(context.Background())
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scheduler = nil
	closeErr := d.transition(d.reporter.Close())
	if errors.Is(closeErr, reporter.ErrClosed) {
		closeErr = nil
	}
	slog.Info("Daemon stopped", logfields.RunID(d.runID), slog.Int64("cycles", d.cycles.Load()))
	return errors.Join(stopErr, closeErr)
}

// process runs the processor, turning a panic into a failed repository.
func (d *Daemon) process(ctx context.Context, repo config.Repository) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = serrors.InternalError(fmt.Sprintf("processor panicked on %s: %v", repo.Name, r), nil)
		}
	}()
	return d.processor.Process(ctx, repo)
}

// transition records the published status and filters reporter errors:
// sink failures are already logged, so only ErrClosed stops the caller.
func (d *Daemon) transition(err error) error {
	d.status.Store(d.reporter.Status())
	if errors.Is(err, reporter.ErrClosed) {
		return err
	}
	return nil
}

// untilNextCycle is the time left before the cycle job fires again.
// Callers hold mu.
func (d *Daemon) untilNextCycle() time.Duration {
	if d.scheduler != nil {
		if next, err := d.scheduler.NextRun(d.cycleJob); err == nil {
			if remaining := next.Sub(d.clock.Now()); remaining > 0 {
				return remaining
			}
		}
	}
	return d.cfg.CycleInterval()
}
