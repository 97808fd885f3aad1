package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/syncd/internal/logfields"
	"git.home.luguber.info/inful/syncd/internal/reporter"
)

// HealthStatus represents the overall health of the daemon
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status       HealthStatus `json:"status"`
	Message      string       `json:"message,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
	Uptime       string       `json:"uptime"`
	RunID        string       `json:"run_id"`
	DaemonStatus string       `json:"daemon_status"`
	Cycles       int64        `json:"cycles"`
	LastCycle    *time.Time   `json:"last_cycle,omitempty"`
	LastFailed   int64        `json:"last_failed"`
}

// Health summarizes the daemon without waiting for a running cycle.
// A stopped daemon is unhealthy; one whose last cycle completed more than
// two intervals ago, or that saw repository failures, is degraded.
func (d *Daemon) Health() HealthResponse {
	now := d.clock.Now()
	resp := HealthResponse{
		Status:       HealthStatusHealthy,
		Timestamp:    now,
		Uptime:       now.Sub(d.startedAt).Truncate(time.Second).String(),
		RunID:        d.runID,
		DaemonStatus: string(d.Status()),
		Cycles:       d.cycles.Load(),
		LastFailed:   d.lastFailed.Load(),
	}

	since := now.Sub(d.startedAt)
	if ms := d.lastCycleAt.Load(); ms != 0 {
		last := time.UnixMilli(ms)
		resp.LastCycle = &last
		since = now.Sub(last)
	}
	stale := 2 * d.cfg.CycleInterval()

	switch {
	case d.Status() == reporter.StatusStopped:
		resp.Status = HealthStatusUnhealthy
		resp.Message = "daemon stopped"
	case since > stale:
		resp.Status = HealthStatusDegraded
		resp.Message = "no cycle completed in " + stale.String()
	case resp.LastFailed > 0:
		resp.Status = HealthStatusDegraded
		resp.Message = "repositories failed in last cycle"
	}
	return resp
}

// HealthHandler serves Health as JSON; unhealthy maps to 503.
func (d *Daemon) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := d.Health()
	w.Header().Set("Content-Type", "application/json")
	if resp.Status == HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to write health response", logfields.Error(err))
	}
}
