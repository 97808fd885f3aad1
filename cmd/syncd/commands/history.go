package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	serrors "git.home.luguber.info/inful/syncd/internal/errors"
	"git.home.luguber.info/inful/syncd/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit  int    `short:"n" help:"Number of entries to show" default:"20"`
	Cycles bool   `help:"Summarize completed cycles instead of listing snapshots"`
	RunID  string `name:"run" help:"Only show snapshots from this daemon run"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfigOrDefault(root.Config)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.History.Path); err != nil {
		return serrors.IOError("open", cfg.History.Path, err)
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if h.Cycles {
		return h.printCycles(ctx, g.out(), store)
	}
	return h.printRecords(ctx, g.out(), store)
}

func (h *HistoryCmd) printRecords(ctx context.Context, out io.Writer, store eventstore.Store) error {
	var (
		records []eventstore.Record
		err     error
	)
	if h.RunID != "" {
		records, err = store.GetByRunID(ctx, h.RunID)
		if len(records) > h.Limit && h.Limit > 0 {
			records = records[len(records)-h.Limit:]
		}
	} else {
		records, err = store.Recent(ctx, h.Limit)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRUN\tSTATUS\tCURRENT\tREPOS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Format(time.RFC3339), shortID(r.RunID), r.Status,
			orDash(r.Metadata["current_repo"]), orDash(r.Metadata["repos"]))
	}
	return tw.Flush()
}

func (h *HistoryCmd) printCycles(ctx context.Context, out io.Writer, store eventstore.Store) error {
	p := eventstore.NewCycleHistoryProjection(store, h.Limit)
	if err := p.Rebuild(ctx); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN\tSTATUS\tDURATION\tOK\tFAILED")
	for _, c := range p.GetActiveCycles() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", c.StartedAt.Format(time.RFC3339), shortID(c.RunID), c.Status, "-", c.OK, c.Failed)
	}
	for _, c := range p.GetHistory() {
		duration := "-"
		if c.Duration != nil {
			duration = strconv.FormatFloat(*c.Duration, 'f', 2, 64) + "s"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", c.StartedAt.Format(time.RFC3339), shortID(c.RunID), c.Status, duration, c.OK, c.Failed)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
