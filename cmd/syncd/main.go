package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/syncd/cmd/syncd/commands"
	serrors "git.home.luguber.info/inful/syncd/internal/errors"
	"git.home.luguber.info/inful/syncd/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("syncd"),
		kong.Description("Repository sync daemon with status reporting"),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	if err := parser.Run(&commands.Global{Out: os.Stdout}, cli); err != nil {
		serrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
