package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	serrors "git.home.luguber.info/inful/syncd/internal/errors"
	"git.home.luguber.info/inful/syncd/internal/logfields"
)

const defaultLockRetry = 50 * time.Millisecond

// FileSink writes each snapshot as a JSON document to a file, holding an
// exclusive advisory lock on "<path>.lock" for the whole write. The
// document is written to a temporary file and renamed over the target.
type FileSink struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	lockRetry   time.Duration
	perm        os.FileMode
}

// FileSinkOption customizes a FileSink.
type FileSinkOption func(*FileSink)

// WithLockTimeout bounds how long Write waits for the lock. Zero (the
// default) waits indefinitely.
func WithLockTimeout(d time.Duration) FileSinkOption {
	return func(s *FileSink) { s.lockTimeout = d }
}

// WithLockRetry sets the polling interval used while waiting with a timeout.
func WithLockRetry(d time.Duration) FileSinkOption {
	return func(s *FileSink) {
		if d > 0 {
			s.lockRetry = d
		}
	}
}

// WithFileMode sets the permissions of the published document.
func WithFileMode(perm os.FileMode) FileSinkOption {
	return func(s *FileSink) { s.perm = perm }
}

// NewFileSink returns a sink publishing to path.
func NewFileSink(path string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{
		path:      path,
		lockPath:  LockPath(path),
		lockRetry: defaultLockRetry,
		perm:      0o644,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LockPath returns the advisory lock file guarding the document at path.
func LockPath(path string) string { return path + ".lock" }

// Path returns the published document path.
func (s *FileSink) Path() string { return s.path }

// Write implements Sink.
func (s *FileSink) Write(snap Snapshot) (err error) {
	mustValidate(snap)

	lock := flock.New(s.lockPath)
	if err := s.acquire(lock); err != nil {
		return serrors.IOError("lock", s.lockPath, err)
	}
	defer func() {
		if uerr := lock.Unlock(); uerr != nil {
			slog.Error("Failed to release status lock", logfields.Path(s.lockPath), logfields.Error(uerr))
			if err == nil {
				err = serrors.IOError("unlock", s.lockPath, uerr)
			}
		}
	}()

	data, err := json.Marshal(snap)
	if err != nil {
		return serrors.IOError("encode", s.path, err)
	}
	if err := writeFileAtomic(s.path, data, s.perm); err != nil {
		return serrors.IOError("write", s.path, err)
	}
	return nil
}

func (s *FileSink) acquire(lock *flock.Flock) error {
	if s.lockTimeout <= 0 {
		return lock.Lock()
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, s.lockRetry)
	if err != nil {
		return err
	}
	if !locked {
		return fmt.Errorf("lock not acquired within %s", s.lockTimeout)
	}
	return nil
}

// writeFileAtomic replaces path with data via a temporary file in the same
// directory, so the target is always either the old or the new document.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		committed = true
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true
	return nil
}

// ReadSnapshotFile reads and validates the document at path while holding
// the shared side of the sink's lock. The lock file is opened read-only;
// when it is missing or not readable the document is read without it,
// since writers always rename complete documents into place.
func ReadSnapshotFile(path string) (Snapshot, error) {
	lockPath := LockPath(path)
	lock := flock.New(lockPath, flock.SetFlag(os.O_RDONLY))
	switch err := lock.RLock(); {
	case err == nil:
		defer func() { _ = lock.Unlock() }()
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		slog.Debug("Reading status without lock", logfields.Path(lockPath), logfields.Error(err))
	default:
		return Snapshot{}, serrors.IOError("lock", lockPath, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, serrors.IOError("read", path, err)
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return Snapshot{}, serrors.Wrap(err, serrors.CategoryValidation, serrors.SeverityError, "malformed status document").
			WithContext("path", path)
	}
	return snap, nil
}
