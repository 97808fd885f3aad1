package git

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Typed git errors enabling structured classification without string parsing upstream.
type NotFoundError struct {
	Op, Path string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no repository at %s: %v", e.Op, e.Path, e.Err)
}
func (e *NotFoundError) Unwrap() error { return e.Err }

type RevisionError struct {
	Path, Revision string
	Err            error
}

func (e *RevisionError) Error() string {
	return fmt.Sprintf("resolve %q in %s: %v", e.Revision, e.Path, e.Err)
}
func (e *RevisionError) Unwrap() error { return e.Err }

// DiffTooLargeError reports that even the tightest rendering of a diff
// exceeded the configured limit.
type DiffTooLargeError struct {
	Base, Head string
	Size, Max  int
}

func (e *DiffTooLargeError) Error() string {
	return fmt.Sprintf("diff %s...%s is %d bytes, limit is %d", e.Base, e.Head, e.Size, e.Max)
}

// NoMergeBaseError reports unrelated histories.
type NoMergeBaseError struct {
	Base, Head string
}

func (e *NoMergeBaseError) Error() string {
	return fmt.Sprintf("no common ancestor between %s and %s", e.Base, e.Head)
}

// classifyOpenError wraps repository-open failures into typed variants when possible.
func classifyOpenError(path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return &NotFoundError{Op: "open", Path: path, Err: err}
	}
	return fmt.Errorf("open repository %s: %w", path, err)
}

func classifyRevisionError(path, rev string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		err = fmt.Errorf("unknown revision: %w", err)
	}
	return &RevisionError{Path: path, Revision: rev, Err: err}
}
