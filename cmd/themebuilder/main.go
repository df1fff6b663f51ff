package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/themebuilder/cmd/themebuilder/commands"
	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{}
	parser := kong.Parse(cli,
		kong.Name("themebuilder"),
		kong.Description("Build every theme of an Angular workspace and compose per-tenant outputs."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)

	err := parser.Run(global, cli)
	if err != nil {
		logger := global.Logger
		if logger == nil {
			logger = slog.Default()
		}
		errors.NewCLIErrorAdapter(cli.Verbose, logger).HandleError(err)
	}
}
