package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID        = "run_id"
	KeyJobName      = "job_name"
	KeyDaemonStatus = "daemon_status"
	KeyRepoStatus   = "repo_status"
	KeyRepo         = "repository"
	KeyHumanName    = "human_name"
	KeySink         = "sink"
	KeyPath         = "path"
	KeyRevision     = "revision"
	KeyDurationMS   = "duration_ms"
	KeyCycleSeconds = "cycle_seconds"
	KeySizeBytes    = "size_bytes"
	KeyURL          = "url"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr          { return slog.String(KeyRunID, id) }
func JobName(n string) slog.Attr         { return slog.String(KeyJobName, n) }
func DaemonStatus(s string) slog.Attr    { return slog.String(KeyDaemonStatus, s) }
func RepoStatus(s string) slog.Attr      { return slog.String(KeyRepoStatus, s) }
func Repository(r string) slog.Attr      { return slog.String(KeyRepo, r) }
func HumanName(n string) slog.Attr       { return slog.String(KeyHumanName, n) }
func Sink(name string) slog.Attr         { return slog.String(KeySink, name) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Revision(r string) slog.Attr        { return slog.String(KeyRevision, r) }
func DurationMS(ms float64) slog.Attr    { return slog.Float64(KeyDurationMS, ms) }
func CycleSeconds(s float64) slog.Attr   { return slog.Float64(KeyCycleSeconds, s) }
func SizeBytes(n int) slog.Attr          { return slog.Int(KeySizeBytes, n) }
func URL(u string) slog.Attr             { return slog.String(KeyURL, u) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
