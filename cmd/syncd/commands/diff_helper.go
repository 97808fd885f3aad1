package commands

import (
	"fmt"
	"log/slog"

	serrors "git.home.luguber.info/inful/syncd/internal/errors"
	"git.home.luguber.info/inful/syncd/internal/git"
	"git.home.luguber.info/inful/syncd/internal/logfields"
)

// DiffHelperCmd implements the 'diff-helper' command.
type DiffHelperCmd struct {
	Base    string `arg:"" help:"Revision the changes are compared against"`
	Head    string `arg:"" help:"Revision carrying the changes" default:"HEAD"`
	Repo    string `short:"r" help:"Path inside the repository" default:"." type:"path"`
	MaxSize int    `help:"Maximum diff size in bytes (defaults to diff.max_size)"`
	Stat    bool   `help:"Print per-file change counts instead of the diff"`
}

func (d *DiffHelperCmd) Run(g *Global, root *CLI) error {
	maxSize := d.MaxSize
	if maxSize <= 0 {
		cfg, err := loadConfigOrDefault(root.Config)
		if err != nil {
			return err
		}
		maxSize = cfg.Diff.MaxSize
	}

	repo, err := git.OpenRepo(d.Repo)
	if err != nil {
		return serrors.GitError(d.Repo, err)
	}
	raw, err := git.MakeRawDiff(repo, d.Base, d.Head, maxSize)
	if err != nil {
		return serrors.GitError(repo.Path(), err)
	}
	slog.Debug("Diff computed",
		logfields.Path(repo.Path()),
		logfields.Revision(raw.MergeBase),
		slog.Int("context_lines", raw.ContextLines),
		logfields.SizeBytes(raw.Size()))

	out := g.out()
	if d.Stat {
		for _, f := range raw.Files {
			fmt.Fprintf(out, "%d\t%d\t%s\n", f.Additions, f.Deletions, f.Name)
		}
		return nil
	}
	_, err = fmt.Fprint(out, raw.Diff)
	return err
}
