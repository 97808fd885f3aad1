package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/syncd/internal/logfields"
)

// ErrJobNotFound is returned by NextRun for an unknown job ID.
var ErrJobNotFound = errors.New("scheduler: job not found")

// Scheduler wraps gocron scheduler for managing periodic tasks.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a new scheduler instance. A nil clock means the
// real clock.
func NewScheduler(clock clockwork.Clock) (*Scheduler, error) {
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
	}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Starting scheduler", slog.Int("jobs", len(s.scheduler.Jobs())))
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Scheduler) Stop(ctx context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleEvery runs task every interval. A run that is still executing
// when the next one is due pushes that run back instead of overlapping.
func (s *Scheduler) ScheduleEvery(name string, interval time.Duration, task func(), opts ...gocron.JobOption) (uuid.UUID, error) {
	if interval <= 0 {
		return uuid.Nil, fmt.Errorf("invalid interval for %s: %s", name, interval)
	}
	id := uuid.New()
	opts = append([]gocron.JobOption{
		gocron.WithName(name),
		gocron.WithIdentifier(id),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}, opts...)

	if _, err := s.scheduler.NewJob(gocron.DurationJob(interval), gocron.NewTask(task), opts...); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create %s job: %w", name, err)
	}
	slog.Debug("Scheduled job", logfields.JobName(name), slog.Duration("interval", interval))
	return id, nil
}

// NextRun returns when the job runs next.
func (s *Scheduler) NextRun(id uuid.UUID) (time.Time, error) {
	for _, job := range s.scheduler.Jobs() {
		if job.ID() == id {
			return job.NextRun()
		}
	}
	return time.Time{}, ErrJobNotFound
}
