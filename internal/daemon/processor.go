package daemon

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/syncd/internal/config"
	serrors "git.home.luguber.info/inful/syncd/internal/errors"
	"git.home.luguber.info/inful/syncd/internal/git"
	"git.home.luguber.info/inful/syncd/internal/logfields"
	"git.home.luguber.info/inful/syncd/internal/metrics"
)

// Processor updates one repository. A non-nil error marks the repository
// failed for the current cycle.
type Processor interface {
	Process(ctx context.Context, repo config.Repository) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, repo config.Repository) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, repo config.Repository) error { return f(ctx, repo) }

// GitProcessor computes the base...head diff of a local working copy.
type GitProcessor struct {
	maxSize  int
	recorder metrics.Recorder
}

// NewGitProcessor returns a processor bounding diffs to maxSize bytes.
func NewGitProcessor(maxSize int, recorder metrics.Recorder) *GitProcessor {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &GitProcessor{maxSize: maxSize, recorder: recorder}
}

// Process implements Processor.
func (p *GitProcessor) Process(ctx context.Context, repo config.Repository) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := git.OpenRepo(repo.Path)
	if err != nil {
		return serrors.GitError(repo.Name, err)
	}
	d, err := git.MakeRawDiff(r, repo.Base, repo.Head, p.maxSize)
	if err != nil {
		return serrors.GitError(repo.Name, err)
	}
	p.recorder.ObserveDiffSize(repo.Name, d.Size())
	slog.Info("Repository diff computed",
		logfields.Repository(repo.Name),
		logfields.Revision(d.Head),
		slog.String("merge_base", d.MergeBase),
		slog.Int("files", len(d.Files)),
		logfields.SizeBytes(d.Size()))
	return nil
}
