package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *SyncdError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *SyncdError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *SyncdError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Snapshot persistence errors

// IOError reports a failed status persistence step. Lock contention and
// transient disk errors are retryable from the daemon loop's point of view.
func IOError(op, path string, cause error) *SyncdError {
	return WrapRetryable(cause, CategoryIO, SeverityError, "status "+op+" failed").
		WithContext("op", op).
		WithContext("path", path)
}

// Git errors

func GitError(repo string, cause error) *SyncdError {
	return Wrap(cause, CategoryGit, SeverityError, "repository update failed").
		WithContext("repository", repo)
}

// Event publication errors

func EventPublishError(target string, cause error) *SyncdError {
	return WrapRetryable(cause, CategoryEvent, SeverityWarning, "snapshot publication failed").
		WithContext("target", target)
}

// Internal errors

func InternalError(message string, cause error) *SyncdError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
