package git

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repo is an opened local repository.
type Repo struct {
	path string
	repo *git.Repository
}

// OpenRepo opens the repository containing path. Parent directories are
// searched for the .git directory.
func OpenRepo(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", path, err)
	}
	r, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, classifyOpenError(abs, err)
	}
	return &Repo{path: abs, repo: r}, nil
}

// Path returns the absolute path the repository was opened from.
func (r *Repo) Path() string { return r.path }

// ResolveCommit resolves a revision (branch, tag, full or abbreviated hash,
// or an expression such as HEAD~1) to its commit.
func (r *Repo) ResolveCommit(rev string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, classifyRevisionError(r.path, rev, err)
	}
	c, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, classifyRevisionError(r.path, rev, err)
	}
	return c, nil
}

// HeadCommit returns the hash HEAD points at.
func (r *Repo) HeadCommit() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", classifyRevisionError(r.path, "HEAD", err)
	}
	return ref.Hash().String(), nil
}
