package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/syncd/internal/config"
)

// Global carries state shared by every command.
type Global struct {
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"syncd.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Daemon     DaemonCmd     `cmd:"" help:"Run the repository update loop and publish its status"`
	Status     StatusCmd     `cmd:"" help:"Show the current daemon status"`
	Watch      WatchCmd      `cmd:"" help:"Follow the status file and print every change"`
	History    HistoryCmd    `cmd:"" help:"List recorded status history"`
	DiffHelper DiffHelperCmd `cmd:"" name:"diff-helper" help:"Print the raw diff of HEAD against its merge base with BASE"`
	Init       InitCmd       `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	setupLogging(level, config.LogFormatText)
	return nil
}

// setupLogging installs the default logger on stderr.
func setupLogging(level slog.Level, format config.LogFormat) {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// applyLogging reconfigures logging from the loaded file. --verbose wins.
func applyLogging(cfg *config.Config, verbose bool) {
	level := cfg.Monitoring.Logging.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	setupLogging(level, cfg.Monitoring.Logging.Format)
}

// loadConfigOrDefault loads path, falling back to defaults when the file
// does not exist. Read-only commands work without a configuration file.
func loadConfigOrDefault(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Debug("No configuration file, using defaults", slog.String("path", path))
		return config.Default(), nil
	}
	return config.Load(path)
}
