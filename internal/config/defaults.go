package config

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	defaultInterval  = 5 * time.Minute
	defaultHeartbeat = 30 * time.Second

	DefaultStatusFile    = "syncd-status.json"
	DefaultHistoryPath   = "syncd-history.db"
	DefaultNATSURL       = "nats://127.0.0.1:4222"
	DefaultEventsBucket  = "syncd"
	DefaultEventsKey     = "status"
	DefaultEventsSubject = "syncd.status"
	DefaultMetricsAddr   = ":9464"
	DefaultMetricsPath   = "/metrics"
	DefaultMaxDiffSize   = 1 << 20
	DefaultRetryInitial  = "200ms"
	DefaultRetryMax      = "2s"
	DefaultRetries       = 2
	DefaultBase          = "main"
	DefaultHead          = "HEAD"
)

var titleCaser = cases.Title(language.English)

// HumanName derives a display name from a repository name, e.g.
// "web-frontend" becomes "Web Frontend".
func HumanName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == '/' || r == ' '
	})
	return titleCaser.String(strings.Join(words, " "))
}

// applyDefaults fills every unset field.
func applyDefaults(c *Config) {
	if c.Daemon.Interval == "" {
		c.Daemon.Interval = defaultInterval.String()
	}
	if c.Daemon.Heartbeat == "" {
		c.Daemon.Heartbeat = defaultHeartbeat.String()
	}
	for i := range c.Daemon.Repositories {
		r := &c.Daemon.Repositories[i]
		if r.HumanName == "" {
			r.HumanName = HumanName(r.Name)
		}
		if r.Base == "" {
			r.Base = DefaultBase
		}
		if r.Head == "" {
			r.Head = DefaultHead
		}
	}

	if c.Status.File == "" {
		c.Status.File = DefaultStatusFile
	}

	if c.Status.Retry.Backoff == "" {
		c.Status.Retry.Backoff = RetryBackoffLinear
	}
	if c.Status.Retry.Initial == "" {
		c.Status.Retry.Initial = DefaultRetryInitial
	}
	if c.Status.Retry.Max == "" {
		c.Status.Retry.Max = DefaultRetryMax
	}
	if c.Status.Retry.MaxRetries == 0 {
		c.Status.Retry.MaxRetries = DefaultRetries
	}

	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath
	}

	if c.Events.NATSURL == "" {
		c.Events.NATSURL = DefaultNATSURL
	}
	if c.Events.Bucket == "" {
		c.Events.Bucket = DefaultEventsBucket
	}
	if c.Events.Key == "" {
		c.Events.Key = DefaultEventsKey
	}
	if c.Events.Subject == "" {
		c.Events.Subject = DefaultEventsSubject
	}

	if c.Monitoring.Metrics.Addr == "" {
		c.Monitoring.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Monitoring.Metrics.Path == "" {
		c.Monitoring.Metrics.Path = DefaultMetricsPath
	}
	if c.Monitoring.Logging.Level == "" {
		c.Monitoring.Logging.Level = LogLevelInfo
	}
	if c.Monitoring.Logging.Format == "" {
		c.Monitoring.Logging.Format = LogFormatText
	}

	if c.Diff.MaxSize == 0 {
		c.Diff.MaxSize = DefaultMaxDiffSize
	}
}
