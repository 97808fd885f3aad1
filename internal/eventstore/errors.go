package eventstore

// Sentinel errors for history store operations. Callers wrap the
// underlying cause with fmt.Errorf("%w: %w", sentinel, err).

import (
	serrors "git.home.luguber.info/inful/syncd/internal/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = serrors.New(serrors.CategoryIO, serrors.SeverityFatal, "could not open history database")

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = serrors.New(serrors.CategoryIO, serrors.SeverityFatal, "failed to initialize history schema")

	// ErrAppendFailed indicates appending a record failed, e.g. while the
	// database is locked by another writer.
	ErrAppendFailed = &serrors.SyncdError{
		Category:  serrors.CategoryIO,
		Severity:  serrors.SeverityWarning,
		Message:   "failed to append snapshot to history",
		Retryable: true,
	}

	// ErrQueryFailed indicates querying records failed.
	ErrQueryFailed = serrors.New(serrors.CategoryIO, serrors.SeverityError, "failed to query history")
)
