package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/syncd/internal/config"
	"git.home.luguber.info/inful/syncd/internal/daemon"
	"git.home.luguber.info/inful/syncd/internal/eventstore"
	"git.home.luguber.info/inful/syncd/internal/logfields"
	"git.home.luguber.info/inful/syncd/internal/metrics"
	"git.home.luguber.info/inful/syncd/internal/natsink"
	"git.home.luguber.info/inful/syncd/internal/reporter"
	"git.home.luguber.info/inful/syncd/internal/retry"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Once bool `help:"Run a single cycle and exit"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	applyLogging(cfg, root.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunDaemon(ctx, cfg, d.Once)
}

// RunDaemon wires the sinks, reporter and daemon described by cfg and runs
// until ctx is cancelled (or after one cycle when once is set).
func RunDaemon(ctx context.Context, cfg *config.Config, once bool) (err error) {
	runID := uuid.NewString()
	slog.Info("Starting daemon mode", logfields.RunID(runID), slog.Int("repositories", len(cfg.Daemon.Repositories)))

	reg := daemon.NewRegistry()
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Monitoring.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder(reg)
	}

	sinks, err := buildSinks(cfg, runID)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sinks.close())
	}()

	rep, err := reporter.New(sinks.sink, reporter.WithRecorder(recorder))
	if err != nil {
		slog.Warn("Initial status not published", logfields.Error(err))
	}
	dmn, err := daemon.New(cfg, rep, daemon.WithRecorder(recorder), daemon.WithRunID(runID))
	if err != nil {
		return err
	}

	if once {
		if err := dmn.RunCycle(ctx); err != nil {
			return err
		}
		if err := rep.Close(); err != nil && !errors.Is(err, reporter.ErrClosed) {
			slog.Warn("Final status not published", logfields.Error(err))
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dmn.Run(gctx) })
	if cfg.Monitoring.Metrics.Enabled {
		admin := daemon.NewAdminServer(cfg.Monitoring.Metrics, reg, sinks.mirror, dmn)
		g.Go(func() error { return admin.Serve(gctx, nil) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}
	slog.Info("Daemon stopped successfully")
	return nil
}

// sinkSet is the composed sink plus what it holds open.
type sinkSet struct {
	sink    reporter.MultiSink
	mirror  *reporter.SharedMap
	closers []func() error
}

func (s *sinkSet) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// buildSinks assembles the file sink and every optional sink enabled in cfg.
// Writes to the optional sinks are retried on transient failures.
func buildSinks(cfg *config.Config, runID string) (*sinkSet, error) {
	set := &sinkSet{}
	policy := retry.FromConfig(cfg.Status.Retry)
	set.sink = append(set.sink, reporter.NewFileSink(cfg.Status.File, reporter.WithLockTimeout(cfg.StatusLockTimeout())))
	slog.Info("Publishing status", logfields.Sink("file"), logfields.Path(cfg.Status.File))

	if cfg.Status.Memory {
		set.mirror = reporter.NewSharedMap()
		set.sink = append(set.sink, reporter.NewMemorySink(set.mirror))
		slog.Info("Publishing status", logfields.Sink("memory"))
	}

	if cfg.History.Enabled {
		store, err := eventstore.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, errors.Join(err, set.close())
		}
		set.closers = append(set.closers, store.Close)
		set.sink = append(set.sink, retry.NewSink("history", eventstore.NewHistorySink(store, runID), policy))
		slog.Info("Publishing status", logfields.Sink("history"), logfields.Path(cfg.History.Path))
	}

	if cfg.Events.Enabled {
		client, err := natsink.Connect(cfg.Events)
		if err != nil {
			return nil, errors.Join(err, set.close())
		}
		set.closers = append(set.closers, client.Close)
		set.sink = append(set.sink, retry.NewSink("nats", client.Sink(), policy))
		slog.Info("Publishing status", logfields.Sink("nats"), logfields.URL(cfg.Events.NATSURL))
	}
	return set, nil
}
