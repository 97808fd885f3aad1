package commands

import (
	"context"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"git.home.luguber.info/inful/syncd/internal/config"
	serrors "git.home.luguber.info/inful/syncd/internal/errors"
	"git.home.luguber.info/inful/syncd/internal/natsink"
	"git.home.luguber.info/inful/syncd/internal/render"
	"git.home.luguber.info/inful/syncd/internal/reporter"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	Format string `short:"f" help:"Output format (json, text, markdown, html)" default:"text" enum:"json,text,markdown,html"`
	File   string `help:"Status file to read (defaults to status.file from the configuration)" type:"path"`
	Source string `help:"Where to read the status from" default:"file" enum:"file,nats"`
}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	format, err := render.ParseFormat(s.Format)
	if err != nil {
		return err
	}
	cfg, err := loadConfigOrDefault(root.Config)
	if err != nil {
		return err
	}

	var snap reporter.Snapshot
	switch s.Source {
	case "nats":
		snap, err = latestFromNATS(cfg.Events)
	default:
		path := s.File
		if path == "" {
			path = cfg.Status.File
		}
		snap, err = reporter.ReadSnapshotFile(path)
	}
	if err != nil {
		return err
	}
	return render.Render(g.out(), snap, format, render.Options{Color: colorFor(g)})
}

func latestFromNATS(cfg config.EventsConfig) (reporter.Snapshot, error) {
	cfg.Enabled = true
	client, err := natsink.Connect(cfg)
	if err != nil {
		return reporter.Snapshot{}, serrors.Wrap(err, serrors.CategoryEvent, serrors.SeverityError, "NATS connection failed").
			WithContext("url", cfg.NATSURL)
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, ok, err := client.Sink().Latest(ctx)
	if err != nil {
		return reporter.Snapshot{}, err
	}
	if !ok {
		return reporter.Snapshot{}, serrors.New(serrors.CategoryEvent, serrors.SeverityError, "no status published yet").
			WithContext("bucket", cfg.Bucket).
			WithContext("key", cfg.Key)
	}
	return snap, nil
}

// colorFor enables colors only when writing to a terminal.
func colorFor(g *Global) bool {
	f, ok := g.out().(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
