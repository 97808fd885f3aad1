package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/syncd/internal/logfields"
	"git.home.luguber.info/inful/syncd/internal/render"
	"git.home.luguber.info/inful/syncd/internal/reporter"
	"git.home.luguber.info/inful/syncd/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Format   string        `short:"f" help:"Output format (json, text, markdown, html)" default:"text" enum:"json,text,markdown,html"`
	File     string        `help:"Status file to follow (defaults to status.file from the configuration)" type:"path"`
	Debounce time.Duration `help:"Coalesce changes arriving within this window" default:"100ms"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return w.run(ctx, g, root)
}

func (w *WatchCmd) run(ctx context.Context, g *Global, root *CLI) error {
	format, err := render.ParseFormat(w.Format)
	if err != nil {
		return err
	}
	path := w.File
	if path == "" {
		cfg, err := loadConfigOrDefault(root.Config)
		if err != nil {
			return err
		}
		path = cfg.Status.File
	}

	out := g.out()
	opts := render.Options{Color: colorFor(g)}
	watcher, err := watch.NewStatusWatcher(path, func(snap reporter.Snapshot) {
		if err := render.Render(out, snap, format, opts); err != nil {
			slog.Error("Failed to render status", logfields.Error(err))
			return
		}
		if format == render.FormatText {
			fmt.Fprintln(out, "---")
		}
	}, watch.WithDebounce(w.Debounce))
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}
