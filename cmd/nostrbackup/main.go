package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/nostrbackup/cmd/nostrbackup/commands"
	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
	"git.home.luguber.info/inful/nostrbackup/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("nostrbackup"),
		kong.Description("Back up and restore Nostr events across many relays."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := parser.Run(&commands.Global{Out: os.Stdout}, cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
