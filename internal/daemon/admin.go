package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/syncd/internal/config"
	"git.home.luguber.info/inful/syncd/internal/logfields"
	"git.home.luguber.info/inful/syncd/internal/metrics"
	"git.home.luguber.info/inful/syncd/internal/reporter"
)

// NewRegistry returns a Prometheus registry with the Go runtime and
// process collectors registered.
func NewRegistry() *prom.Registry {
	reg := prom.NewRegistry()
	reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return reg
}

// AdminServer exposes metrics, the in-memory status mirror and health.
type AdminServer struct {
	cfg    config.MonitoringMetrics
	reg    *prom.Registry
	mirror *reporter.SharedMap
	daemon *Daemon
	server *http.Server
}

// NewAdminServer builds the admin server. mirror and d may be nil; the
// corresponding routes then answer 404.
func NewAdminServer(cfg config.MonitoringMetrics, reg *prom.Registry, mirror *reporter.SharedMap, d *Daemon) *AdminServer {
	return &AdminServer{cfg: cfg, reg: reg, mirror: mirror, daemon: d}
}

// Handler returns the admin routes.
func (s *AdminServer) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.reg != nil {
		mux.Handle(s.cfg.Path, metrics.HTTPHandler(s.reg))
	}
	if s.mirror != nil {
		mux.HandleFunc("/status", s.handleStatus)
	}
	if s.daemon != nil {
		mux.HandleFunc("/healthz", s.daemon.HealthHandler)
	}
	return mux
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc := s.mirror.Copy()
	w.Header().Set("Content-Type", "application/json")
	if len(doc) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		slog.Error("Failed to write status response", logfields.Error(err))
	}
}

// Serve listens on ln (or the configured address when ln is nil) until ctx
// is cancelled, then shuts down gracefully.
func (s *AdminServer) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if ln != nil {
			err = s.server.Serve(ln)
		} else {
			err = s.server.ListenAndServe()
		}
		errCh <- err
	}()
	slog.Info("Admin server listening", slog.String("addr", s.cfg.Addr), slog.String("metrics_path", s.cfg.Path))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
