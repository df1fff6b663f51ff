package settings

import (
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
)

// FileName is the base name of every deployment settings file.
const FileName = "deployment-settings"

// Merger resolves the deployment settings of a theme.
type Merger struct {
	// Root is the workspace root holding projects/.
	Root string
	// ThemesDir holds one directory per theme.
	ThemesDir string
	// Principal is the principal theme, which only gets infrastructure defaults.
	Principal string
	// RequireInfra makes a missing infrastructure file an error.
	RequireInfra bool
}

// InfraBase returns the infrastructure defaults file of project, without extension.
func (m *Merger) InfraBase(project string) string {
	return filepath.Join(m.Root, "projects", project, "docker", FileName)
}

// ThemeBase returns the settings file of theme, without extension.
func (m *Merger) ThemeBase(theme string) string {
	return filepath.Join(m.ThemesDir, theme, FileName)
}

// Merge returns the deployment settings of theme for project.
func (m *Merger) Merge(theme, project string) (map[string]any, error) {
	infra, found, err := LoadFile(m.InfraBase(project))
	if err != nil {
		return nil, err
	}
	if !found {
		if m.RequireInfra {
			return nil, errors.PreconditionError("infrastructure deployment settings not found").
				WithContext("project", project).
				WithContext("path", m.InfraBase(project)).
				Build()
		}
		slog.Debug("No infrastructure deployment settings", logfields.Project(project))
	}

	if theme == m.Principal {
		return Merge(infra), nil
	}

	themed, _, err := LoadFile(m.ThemeBase(theme))
	if err != nil {
		return nil, err
	}
	defaults, err := section(themed, "defaultSettings", m.ThemeBase(theme))
	if err != nil {
		return nil, err
	}
	apps, err := section(themed, "appsSettings", m.ThemeBase(theme))
	if err != nil {
		return nil, err
	}
	app, err := section(apps, project, m.ThemeBase(theme))
	if err != nil {
		return nil, err
	}
	return Merge(infra, defaults, app), nil
}

func section(tree map[string]any, key, path string) (map[string]any, error) {
	v, ok := tree[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.ConfigError("settings section must be a mapping").
			WithContext("key", key).
			WithContext("path", path).
			Build()
	}
	return m, nil
}
