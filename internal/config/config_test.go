package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "git.home.luguber.info/inful/syncd/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syncd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "daemon:\n"+
		"  interval: 2m\n"+
		"  heartbeat: 10s\n"+
		"  repositories:\n"+
		"    - name: service-api\n"+
		"      path: /srv/repos/service-api\n"+
		"    - name: docs\n"+
		"      human_name: Documentation\n"+
		"      path: /srv/repos/docs\n"+
		"      base: origin/main\n"+
		"      head: feature\n"+
		"status:\n"+
		"  file: /var/run/syncd/status.json\n"+
		"  lock_timeout: 2s\n"+
		"  memory: true\n"+
		"history:\n"+
		"  enabled: true\n"+
		"  path: /var/lib/syncd/history.db\n"+
		"monitoring:\n"+
		"  metrics:\n"+
		"    enabled: true\n"+
		"  logging:\n"+
		"    level: DEBUG\n"+
		"    format: json\n"+
		"diff:\n"+
		"  max_size: 4096\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.CycleInterval())
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, 2*time.Second, cfg.StatusLockTimeout())
	require.Len(t, cfg.Daemon.Repositories, 2)

	api := cfg.Daemon.Repositories[0]
	assert.Equal(t, "Service Api", api.HumanName)
	assert.Equal(t, DefaultBase, api.Base)
	assert.Equal(t, DefaultHead, api.Head)

	docs := cfg.Daemon.Repositories[1]
	assert.Equal(t, "Documentation", docs.HumanName)
	assert.Equal(t, "origin/main", docs.Base)
	assert.Equal(t, "feature", docs.Head)

	assert.True(t, cfg.Status.Memory)
	assert.Equal(t, "/var/run/syncd/status.json", cfg.Status.File)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, LogLevelDebug, cfg.Monitoring.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Monitoring.Logging.Format)
	assert.Equal(t, DefaultMetricsPath, cfg.Monitoring.Metrics.Path)
	assert.Equal(t, 4096, cfg.Diff.MaxSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, serrors.IsCategory(err, serrors.CategoryConfig))
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("SYNCD_TEST_STATUS", "/tmp/from-env.json")
	cfg, err := Parse([]byte("status:\n  file: ${SYNCD_TEST_STATUS}\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.json", cfg.Status.File)
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("SYNCD_TEST_FILE=/from/dotenv.json\nSYNCD_TEST_KEEP=dotenv\n"), 0o600))
	t.Setenv("SYNCD_TEST_KEEP", "process")
	t.Setenv("SYNCD_TEST_FILE", "")
	require.NoError(t, os.Unsetenv("SYNCD_TEST_FILE"))

	path := writeConfig(t, "status:\n  file: ${SYNCD_TEST_FILE}\nevents:\n  key: ${SYNCD_TEST_KEEP}\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv.json", cfg.Status.File)
	assert.Equal(t, "process", cfg.Events.Key)
}

func TestParseEmptyDocumentUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, defaultInterval, cfg.CycleInterval())
	assert.Equal(t, DefaultStatusFile, cfg.Status.File)
	assert.Zero(t, cfg.StatusLockTimeout())
	assert.Empty(t, cfg.Daemon.Repositories)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("status:\n  fil: typo.json\n"))
	require.Error(t, err)
	assert.True(t, serrors.IsCategory(err, serrors.CategoryConfig))
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"bad interval", "daemon:\n  interval: soon\n", "daemon.interval"},
		{"zero interval", "daemon:\n  interval: 0s\n", "daemon.interval"},
		{"heartbeat exceeds interval", "daemon:\n  interval: 10s\n  heartbeat: 1m\n", "daemon.heartbeat"},
		{"missing name", "daemon:\n  repositories:\n    - path: /x\n", "daemon.repositories[0].name"},
		{"missing path", "daemon:\n  repositories:\n    - name: a\n", "daemon.repositories[0].path"},
		{"duplicate name", "daemon:\n  repositories:\n    - name: a\n      path: /a\n    - name: a\n      path: /b\n", "daemon.repositories[1].name"},
		{"negative lock timeout", "status:\n  lock_timeout: -1s\n", "status.lock_timeout"},
		{"unknown backoff", "status:\n  retry:\n    backoff: random\n", "status.retry.backoff"},
		{"retry initial exceeds max", "status:\n  retry:\n    initial: 5s\n    max: 1s\n", "status.retry.initial"},
		{"retry count", "status:\n  retry:\n    max_retries: -2\n", "status.retry.max_retries"},
		{"bad nats url", "events:\n  enabled: true\n  nats_url: http://localhost\n", "events.nats_url"},
		{"bad bucket", "events:\n  enabled: true\n  bucket: a.b\n", "events.bucket"},
		{"relative metrics path", "monitoring:\n  metrics:\n    enabled: true\n    path: metrics\n", "monitoring.metrics.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			se, ok := serrors.As(err)
			require.True(t, ok, "expected SyncdError, got %T", err)
			assert.Equal(t, serrors.CategoryValidation, se.Category)
			assert.Equal(t, tt.field, se.Context["field"])
		})
	}
}

func TestRetryDefaultsAndOverrides(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, RetryBackoffLinear, cfg.Status.Retry.Backoff)
	assert.Equal(t, 200*time.Millisecond, cfg.Status.Retry.InitialDelay())
	assert.Equal(t, 2*time.Second, cfg.Status.Retry.MaxDelay())
	assert.Equal(t, DefaultRetries, cfg.Status.Retry.MaxRetries)

	cfg, err = Parse([]byte("status:\n  retry:\n    backoff: Exponential\n    initial: 1s\n    max: 8s\n    max_retries: -1\n"))
	require.NoError(t, err)
	assert.Equal(t, RetryBackoffExponential, cfg.Status.Retry.Backoff)
	assert.Equal(t, time.Second, cfg.Status.Retry.InitialDelay())
	assert.Equal(t, -1, cfg.Status.Retry.MaxRetries)
}

func TestNormalizeUnknownLogSettings(t *testing.T) {
	cfg := &Config{Monitoring: MonitoringConfig{Logging: MonitoringLogging{Level: "verbose", Format: "Text"}}}
	res := NormalizeConfig(cfg)
	assert.Equal(t, LogLevelInfo, cfg.Monitoring.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Monitoring.Logging.Format)
	assert.Len(t, res.Warnings, 2)
}

func TestHumanName(t *testing.T) {
	cases := map[string]string{
		"web-frontend":  "Web Frontend",
		"service_api":   "Service Api",
		"docs":          "Docs",
		"org/repo.name": "Org Repo Name",
		"":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, HumanName(in), in)
	}
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncd.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false), "refuses to overwrite without force")
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Daemon.Repositories, 2)
	assert.Equal(t, "Service Api", cfg.Daemon.Repositories[0].HumanName)
	assert.True(t, cfg.Status.Memory)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.SlogLevel().String())
	assert.Equal(t, "WARN", LogLevelWarn.SlogLevel().String())
	assert.Equal(t, "INFO", LogLevel("").SlogLevel().String())
}
