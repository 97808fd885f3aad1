// Package render formats status snapshots for people and programs.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	serrors "git.home.luguber.info/inful/syncd/internal/errors"
	"git.home.luguber.info/inful/syncd/internal/reporter"
)

// Format selects an output representation.
type Format string

const (
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatJSON, FormatText, FormatMarkdown, FormatHTML}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if string(f) == strings.ToLower(strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", serrors.ValidationFailed("format", fmt.Sprintf("unsupported format %q", s))
}

// Options tune the human-readable formats.
type Options struct {
	Color bool // ANSI colors in text output
}

// Render writes snap to w in the given format.
func Render(w io.Writer, snap reporter.Snapshot, f Format, opts Options) error {
	switch f {
	case FormatJSON:
		return JSON(w, snap)
	case FormatText:
		return Text(w, snap, opts)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(snap))
		return err
	case FormatHTML:
		return HTML(w, snap)
	default:
		return serrors.ValidationFailed("format", fmt.Sprintf("unsupported format %q", f))
	}
}

// JSON writes the status document with indentation.
func JSON(w io.Writer, snap reporter.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Text writes a short summary followed by the repository outcomes.
func Text(w io.Writer, snap reporter.Snapshot, opts Options) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Status:\t%s\n", paint(string(snap.Status), daemonColor(snap.Status), opts))
	if snap.CurrentRepo != nil {
		fmt.Fprintf(tw, "Current:\t%s (%s)\n", snap.CurrentRepo.HumanName, snap.CurrentRepo.Name)
	}
	fmt.Fprintf(tw, "Current cycle:\t%s\n", seconds(snap.Statistics.CurrentCycleTime))
	fmt.Fprintf(tw, "Last cycle:\t%s\n", seconds(snap.Statistics.LastCycleTime))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(snap.Repos) == 0 {
		_, err := fmt.Fprintln(w, "No repositories processed yet.")
		return err
	}
	ok, failed := Counts(snap)
	fmt.Fprintf(w, "\nRepositories (%d ok, %d failed):\n", ok, failed)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range snap.Repos {
		// status last: escape codes would skew the column widths
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.Name, r.HumanName, paint(string(r.Status), repoColor(r.Status), opts))
	}
	return tw.Flush()
}

// Markdown returns the snapshot as a markdown document with a table of
// repository outcomes.
func Markdown(snap reporter.Snapshot) string {
	var b strings.Builder
	b.WriteString("# syncd status\n\n")
	fmt.Fprintf(&b, "- **Status:** %s\n", snap.Status)
	if snap.CurrentRepo != nil {
		fmt.Fprintf(&b, "- **Current repository:** %s\n", escapeCell(snap.CurrentRepo.HumanName))
	}
	fmt.Fprintf(&b, "- **Current cycle:** %s\n", seconds(snap.Statistics.CurrentCycleTime))
	fmt.Fprintf(&b, "- **Last cycle:** %s\n\n", seconds(snap.Statistics.LastCycleTime))

	if len(snap.Repos) == 0 {
		b.WriteString("No repositories processed yet.\n")
		return b.String()
	}
	b.WriteString("| # | Repository | Name | Status |\n")
	b.WriteString("|---|---|---|---|\n")
	for i, r := range snap.Repos {
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, escapeCell(r.HumanName), escapeCell(r.Name), r.Status)
	}
	return b.String()
}

// HTML renders the markdown form to an HTML fragment.
func HTML(w io.Writer, snap reporter.Snapshot) error {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(snap)), &buf); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Counts returns how many recorded outcomes are ok and failed.
func Counts(snap reporter.Snapshot) (ok, failed int) {
	for _, r := range snap.Repos {
		switch r.Status {
		case reporter.RepoOK:
			ok++
		case reporter.RepoFailed:
			failed++
		}
	}
	return ok, failed
}

func seconds(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64) + "s"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func paint(s string, attr color.Attribute, opts Options) string {
	c := color.New(attr)
	if opts.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

func daemonColor(s reporter.DaemonStatus) color.Attribute {
	switch s {
	case reporter.StatusUpdating:
		return color.FgCyan
	case reporter.StatusSleeping, reporter.StatusIdle:
		return color.FgGreen
	case reporter.StatusStopped:
		return color.FgRed
	default:
		return color.FgYellow
	}
}

func repoColor(s reporter.RepoStatus) color.Attribute {
	switch s {
	case reporter.RepoOK:
		return color.FgGreen
	case reporter.RepoFailed:
		return color.FgRed
	default:
		return color.FgCyan
	}
}
