package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/themebuilder/internal/markup"
	"git.home.luguber.info/inful/themebuilder/internal/settings"
	"git.home.luguber.info/inful/themebuilder/internal/theme"
)

// ThemesCmd implements the 'themes' command.
type ThemesCmd struct{}

func (c *ThemesCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	catalog, err := theme.Discover(cfg.ThemesPath(), cfg.Themes.Principal)
	if err != nil {
		return err
	}

	w := g.stdout()
	for _, id := range catalog.IDs() {
		t, _ := catalog.Get(id)
		role := "tenant"
		if t.Principal {
			role = "principal"
		}
		_, _ = fmt.Fprintf(w, "%-24s %-9s%s\n", id, role, themeFiles(t.Dir))
	}
	return nil
}

// themeFiles lists which optional inputs a theme directory provides.
func themeFiles(dir string) string {
	var out string
	for _, base := range []string{settings.FileName, markup.SettingsFileName} {
		if path, ok := settings.FindFile(filepath.Join(dir, base)); ok {
			out += " " + filepath.Base(path)
		}
	}
	return out
}
