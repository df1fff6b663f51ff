package ngconfig

import (
	"log/slog"

	"git.home.luguber.info/inful/themebuilder/internal/logfields"
)

// Synthesize makes sure the configuration at path has a build entry for every
// tenant of project. The file is rewritten only when an entry was added.
// Calling it again with the same tenants is a no-op.
func Synthesize(path, project string, tenants []string) ([]string, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	added, err := doc.AddEntries(project, tenants)
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		slog.Debug("Build configuration already has all theme entries", logfields.Project(project), logfields.Count(len(tenants)))
		return nil, nil
	}
	if err := doc.Save(); err != nil {
		return nil, err
	}
	for _, theme := range added {
		slog.Info("Added build configuration", logfields.Project(project), logfields.Theme(theme))
	}
	return added, nil
}
