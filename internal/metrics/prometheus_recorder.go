package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	mu            sync.Mutex
	lastStatus    string
	daemonStatus  *prom.GaugeVec
	repoOutcomes  *prom.CounterVec
	cycleDuration prom.Histogram
	lastCycle     prom.Gauge
	sinkDuration  *prom.HistogramVec
	repoDuration  *prom.HistogramVec
	diffSize      *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.daemonStatus = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "syncd",
			Name:      "daemon_status",
			Help:      "Current daemon status (1 for the active status, 0 otherwise)",
		}, []string{"status"})
		pr.repoOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "syncd",
			Name:      "repo_outcomes_total",
			Help:      "Repository outcomes by final status",
		}, []string{"outcome"})
		pr.cycleDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "syncd",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of completed update cycles",
			Buckets:   prom.ExponentialBuckets(1, 2, 12),
		})
		pr.lastCycle = prom.NewGauge(prom.GaugeOpts{
			Namespace: "syncd",
			Name:      "last_cycle_duration_seconds",
			Help:      "Duration of the most recently completed cycle",
		})
		pr.sinkDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "syncd",
			Name:      "status_write_duration_seconds",
			Help:      "Time spent publishing a status snapshot",
			Buckets:   prom.DefBuckets,
		}, []string{"result"})
		pr.repoDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "syncd",
			Name:      "repo_update_duration_seconds",
			Help:      "Duration of individual repository updates",
			Buckets:   prom.DefBuckets,
		}, []string{"repo", "result"})
		pr.diffSize = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "syncd",
			Name:      "diff_size_bytes",
			Help:      "Size of raw diffs produced per repository",
			Buckets:   prom.ExponentialBuckets(256, 4, 10),
		}, []string{"repo"})
		reg.MustRegister(pr.daemonStatus, pr.repoOutcomes, pr.cycleDuration, pr.lastCycle, pr.sinkDuration, pr.repoDuration, pr.diffSize)
	})
	return pr
}

func (p *PrometheusRecorder) SetDaemonStatus(status string) {
	if p == nil || p.daemonStatus == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastStatus != "" && p.lastStatus != status {
		p.daemonStatus.WithLabelValues(p.lastStatus).Set(0)
	}
	p.daemonStatus.WithLabelValues(status).Set(1)
	p.lastStatus = status
}

func (p *PrometheusRecorder) IncRepoOutcome(outcome string) {
	if p == nil || p.repoOutcomes == nil {
		return
	}
	p.repoOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveCycleDuration(d time.Duration) {
	if p == nil || p.cycleDuration == nil {
		return
	}
	p.cycleDuration.Observe(d.Seconds())
	p.lastCycle.Set(d.Seconds())
}

func (p *PrometheusRecorder) ObserveSinkWrite(d time.Duration, success bool) {
	if p == nil || p.sinkDuration == nil {
		return
	}
	p.sinkDuration.WithLabelValues(string(ResultFor(success))).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRepoDuration(repo string, d time.Duration, success bool) {
	if p == nil || p.repoDuration == nil {
		return
	}
	p.repoDuration.WithLabelValues(repo, string(ResultFor(success))).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveDiffSize(repo string, bytes int) {
	if p == nil || p.diffSize == nil {
		return
	}
	p.diffSize.WithLabelValues(repo).Observe(float64(bytes))
}
