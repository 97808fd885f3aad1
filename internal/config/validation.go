package config

import (
	"fmt"
	"strings"
	"time"

	serrors "git.home.luguber.info/inful/syncd/internal/errors"
)

// Validate checks a defaulted configuration. The first problem found is
// returned as a validation-category error naming the offending field.
func Validate(c *Config) error {
	validators := []func(*Config) error{
		validateDaemon,
		validateRepositories,
		validateStatus,
		validateHistory,
		validateEvents,
		validateMonitoring,
	}
	for _, v := range validators {
		if err := v(c); err != nil {
			return err
		}
	}
	return nil
}

func validateDaemon(c *Config) error {
	interval, err := positiveDuration("daemon.interval", c.Daemon.Interval)
	if err != nil {
		return err
	}
	heartbeat, err := positiveDuration("daemon.heartbeat", c.Daemon.Heartbeat)
	if err != nil {
		return err
	}
	if heartbeat > interval {
		return serrors.ValidationFailed("daemon.heartbeat", fmt.Sprintf("heartbeat %s exceeds interval %s", heartbeat, interval))
	}
	return nil
}

func validateRepositories(c *Config) error {
	seen := make(map[string]struct{}, len(c.Daemon.Repositories))
	for i, r := range c.Daemon.Repositories {
		field := fmt.Sprintf("daemon.repositories[%d]", i)
		if r.Name == "" {
			return serrors.ValidationFailed(field+".name", "name is required")
		}
		if _, dup := seen[r.Name]; dup {
			return serrors.ValidationFailed(field+".name", fmt.Sprintf("duplicate repository name %q", r.Name))
		}
		seen[r.Name] = struct{}{}
		if strings.TrimSpace(r.Path) == "" {
			return serrors.ValidationFailed(field+".path", "path is required")
		}
	}
	return nil
}

func validateStatus(c *Config) error {
	if c.Status.LockTimeout != "" {
		d, err := time.ParseDuration(c.Status.LockTimeout)
		if err != nil {
			return serrors.ValidationFailed("status.lock_timeout", err.Error())
		}
		if d < 0 {
			return serrors.ValidationFailed("status.lock_timeout", "must not be negative")
		}
	}
	return validateRetry(c.Status.Retry)
}

func validateRetry(r RetryConfig) error {
	switch r.Backoff {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
	default:
		return serrors.ValidationFailed("status.retry.backoff", fmt.Sprintf("unknown backoff %q", r.Backoff))
	}
	initial, err := positiveDuration("status.retry.initial", r.Initial)
	if err != nil {
		return err
	}
	maxDelay, err := positiveDuration("status.retry.max", r.Max)
	if err != nil {
		return err
	}
	if initial > maxDelay {
		return serrors.ValidationFailed("status.retry.initial", fmt.Sprintf("initial %s exceeds max %s", initial, maxDelay))
	}
	if r.MaxRetries < -1 {
		return serrors.ValidationFailed("status.retry.max_retries", "must be -1 or greater")
	}
	return nil
}

func validateHistory(c *Config) error {
	if c.History.Enabled && c.History.Path == "" {
		return serrors.ValidationFailed("history.path", "path is required when history is enabled")
	}
	return nil
}

func validateEvents(c *Config) error {
	if !c.Events.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.Events.NATSURL, "nats://") && !strings.HasPrefix(c.Events.NATSURL, "tls://") {
		return serrors.ValidationFailed("events.nats_url", fmt.Sprintf("unsupported url %q", c.Events.NATSURL))
	}
	if strings.ContainsAny(c.Events.Bucket, " .*>") {
		return serrors.ValidationFailed("events.bucket", fmt.Sprintf("invalid bucket name %q", c.Events.Bucket))
	}
	if strings.ContainsAny(c.Events.Key, " *>") {
		return serrors.ValidationFailed("events.key", fmt.Sprintf("invalid key %q", c.Events.Key))
	}
	return nil
}

func validateMonitoring(c *Config) error {
	if c.Monitoring.Metrics.Enabled && !strings.HasPrefix(c.Monitoring.Metrics.Path, "/") {
		return serrors.ValidationFailed("monitoring.metrics.path", "path must start with /")
	}
	return nil
}

func positiveDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, serrors.ValidationFailed(field, err.Error())
	}
	if d <= 0 {
		return 0, serrors.ValidationFailed(field, "must be positive")
	}
	return d, nil
}
