package metrics

import "time"

// ResultLabel enumerates operation result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// ResultFor maps a success flag onto a ResultLabel.
func ResultFor(success bool) ResultLabel {
	if success {
		return ResultSuccess
	}
	return ResultFailed
}

// Recorder defines observability hooks for the reporter and the daemon loop.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	SetDaemonStatus(status string)
	IncRepoOutcome(outcome string) // outcome: ok|failed
	ObserveCycleDuration(d time.Duration)
	ObserveSinkWrite(d time.Duration, success bool)
	ObserveRepoDuration(repo string, d time.Duration, success bool)
	ObserveDiffSize(repo string, bytes int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) SetDaemonStatus(string)                          {}
func (NoopRecorder) IncRepoOutcome(string)                           {}
func (NoopRecorder) ObserveCycleDuration(time.Duration)              {}
func (NoopRecorder) ObserveSinkWrite(time.Duration, bool)            {}
func (NoopRecorder) ObserveRepoDuration(string, time.Duration, bool) {}
func (NoopRecorder) ObserveDiffSize(string, int)                     {}
