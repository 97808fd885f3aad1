package config

import (
	"fmt"
	"strings"
)

// NormalizationResult captures adjustments & warnings from normalization pass.
type NormalizationResult struct{ Warnings []string }

// NormalizeConfig canonicalizes enumerated and bounded fields prior to
// default application. It mutates c in place.
func NormalizeConfig(c *Config) *NormalizationResult {
	res := &NormalizationResult{}
	normalizeMonitoring(&c.Monitoring, res)
	normalizeRepositories(c.Daemon.Repositories)
	if b := RetryBackoffMode(strings.ToLower(strings.TrimSpace(string(c.Status.Retry.Backoff)))); b != c.Status.Retry.Backoff {
		res.Warnings = append(res.Warnings, warnChanged("status.retry.backoff", c.Status.Retry.Backoff, b))
		c.Status.Retry.Backoff = b
	}
	if c.Diff.MaxSize < 0 {
		res.Warnings = append(res.Warnings, warnChanged("diff.max_size", c.Diff.MaxSize, 0))
		c.Diff.MaxSize = 0
	}
	return res
}

func normalizeMonitoring(m *MonitoringConfig, res *NormalizationResult) {
	if lvl := NormalizeLogLevel(string(m.Logging.Level)); lvl != "" {
		if m.Logging.Level != lvl {
			res.Warnings = append(res.Warnings, warnChanged("monitoring.logging.level", m.Logging.Level, lvl))
			m.Logging.Level = lvl
		}
	} else if strings.TrimSpace(string(m.Logging.Level)) != "" {
		res.Warnings = append(res.Warnings, warnUnknown("monitoring.logging.level", string(m.Logging.Level), string(LogLevelInfo)))
		m.Logging.Level = LogLevelInfo
	}
	if f := NormalizeLogFormat(string(m.Logging.Format)); f != "" {
		if m.Logging.Format != f {
			res.Warnings = append(res.Warnings, warnChanged("monitoring.logging.format", m.Logging.Format, f))
			m.Logging.Format = f
		}
	} else if strings.TrimSpace(string(m.Logging.Format)) != "" {
		res.Warnings = append(res.Warnings, warnUnknown("monitoring.logging.format", string(m.Logging.Format), string(LogFormatText)))
		m.Logging.Format = LogFormatText
	}
}

func normalizeRepositories(repos []Repository) {
	for i := range repos {
		r := &repos[i]
		r.Name = strings.TrimSpace(r.Name)
		r.HumanName = strings.TrimSpace(r.HumanName)
		r.Base = strings.TrimSpace(r.Base)
		r.Head = strings.TrimSpace(r.Head)
	}
}

func warnChanged(field string, from, to any) string {
	return fmt.Sprintf("normalized %s from '%v' to '%v'", field, from, to)
}

func warnUnknown(field, value, def string) string {
	return fmt.Sprintf("unknown %s '%s', defaulting to %s", field, value, def)
}
