package git

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5/plumbing/format/diff"

	"git.home.luguber.info/inful/syncd/internal/logfields"
)

// DefaultMaxDiffSize bounds raw diffs when no limit is configured.
const DefaultMaxDiffSize = 1 << 20

// Context widths tried in order until the rendered diff fits.
var contextSteps = []int{diff.DefaultContextLines, 1, 0}

// FileStat summarizes the changes to one file.
type FileStat struct {
	Name      string
	Additions int
	Deletions int
}

// RawDiff is a unified diff of head against its merge base with base.
type RawDiff struct {
	Base         string
	Head         string
	MergeBase    string
	ContextLines int
	Files        []FileStat
	Diff         string
}

// Size returns the length of the rendered diff in bytes.
func (d *RawDiff) Size() int { return len(d.Diff) }

// MakeRawDiff renders the changes introduced on head since it forked from
// base (the three-dot range base...head). When the diff exceeds maxSize the
// surrounding context is reduced; if even a context-free diff is too large
// a *DiffTooLargeError is returned. maxSize <= 0 means DefaultMaxDiffSize.
func MakeRawDiff(repo *Repo, base, head string, maxSize int) (*RawDiff, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxDiffSize
	}
	baseCommit, err := repo.ResolveCommit(base)
	if err != nil {
		return nil, err
	}
	headCommit, err := repo.ResolveCommit(head)
	if err != nil {
		return nil, err
	}

	bases, err := baseCommit.MergeBase(headCommit)
	if err != nil {
		return nil, fmt.Errorf("merge base %s...%s: %w", base, head, err)
	}
	if len(bases) == 0 {
		return nil, &NoMergeBaseError{Base: base, Head: head}
	}
	fork := bases[0]

	patch, err := fork.Patch(headCommit)
	if err != nil {
		return nil, fmt.Errorf("patch %s...%s: %w", base, head, err)
	}

	var size int
	for _, ctx := range contextSteps {
		var buf bytes.Buffer
		if err := diff.NewUnifiedEncoder(&buf, ctx).Encode(patch); err != nil {
			return nil, fmt.Errorf("encode diff: %w", err)
		}
		size = buf.Len()
		if size > maxSize {
			slog.Debug("Diff exceeds limit, reducing context",
				logfields.Path(repo.Path()),
				logfields.SizeBytes(size),
				slog.Int("context_lines", ctx))
			continue
		}

		stats := patch.Stats()
		files := make([]FileStat, 0, len(stats))
		for _, s := range stats {
			files = append(files, FileStat{Name: s.Name, Additions: s.Addition, Deletions: s.Deletion})
		}
		return &RawDiff{
			Base:         baseCommit.Hash.String(),
			Head:         headCommit.Hash.String(),
			MergeBase:    fork.Hash.String(),
			ContextLines: ctx,
			Files:        files,
			Diff:         buf.String(),
		}, nil
	}
	return nil, &DiffTooLargeError{Base: base, Head: head, Size: size, Max: maxSize}
}
