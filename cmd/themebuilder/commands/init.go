package commands

import (
	"fmt"

	"git.home.luguber.info/inful/themebuilder/internal/config"
	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	w := g.stdout()
	_, _ = fmt.Fprintf(w, "Writing configuration to %s\n", root.Config)
	if err := config.Init(root.Config, i.Force); err != nil {
		return errors.ConfigError("initialization failed").
			WithCause(err).
			WithContext("path", root.Config).
			Build()
	}
	_, _ = fmt.Fprintln(w, "initialized successfully")
	return nil
}
