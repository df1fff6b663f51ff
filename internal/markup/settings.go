package markup

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/settings"
)

// SettingsFileName is the base name of build settings files.
const SettingsFileName = "build-settings"

// HeadTag is one element of the document head. Tags sharing an ID override
// each other field by field.
type HeadTag struct {
	ID    string `yaml:"id" json:"id"`
	Tag   string `yaml:"tag,omitempty" json:"tag,omitempty"`
	Order *int   `yaml:"order,omitempty" json:"order,omitempty"`
}

// BodySettings controls the document body.
type BodySettings struct {
	// Template is a text/template rendered inside <body>.
	Template string `yaml:"template,omitempty" json:"template,omitempty"`
}

// HTMLSettings is the html section of a build settings file.
type HTMLSettings struct {
	Head []HeadTag     `yaml:"head" json:"head"`
	Body BodySettings `yaml:"body" json:"body"`
}

// BuildSettings describes how the entry document is generated.
type BuildSettings struct {
	HTML HTMLSettings `yaml:"html" json:"html"`
}

// DefaultBodyTemplate mounts the application and loads its scripts.
const DefaultBodyTemplate = `<app-root></app-root>
{{- range .Scripts}}
<script src="{{.}}" defer></script>
{{- end}}`

func order(n int) *int { return &n }

// DefaultBuildSettings returns the built-in head tags and body.
func DefaultBuildSettings() BuildSettings {
	return BuildSettings{HTML: HTMLSettings{
		Head: []HeadTag{
			{ID: "charset", Tag: `<meta charset="utf-8" />`, Order: order(1)},
			{ID: "base", Tag: `<base href="/" />`, Order: order(2)},
			{ID: "title", Tag: `<title>Forgerock App</title>`, Order: order(3)},
			{ID: "viewport", Tag: `<meta name="viewport" content="width=device-width, initial-scale=1.0, minimum-scale=1.0, maximum-scale=1.0, user-scalable=no, viewport-fit=cover" />`},
		},
		Body: BodySettings{Template: DefaultBodyTemplate},
	}}
}

// Merge returns base with override applied. Head tags with a known ID are
// updated in place; new IDs are appended in override order.
func (base BuildSettings) Merge(override BuildSettings) BuildSettings {
	head := make([]HeadTag, len(base.HTML.Head))
	copy(head, base.HTML.Head)
	index := make(map[string]int, len(head))
	for i, tag := range head {
		if tag.ID != "" {
			index[tag.ID] = i
		}
	}
	for _, tag := range override.HTML.Head {
		i, ok := index[tag.ID]
		if !ok || tag.ID == "" {
			if tag.ID != "" {
				index[tag.ID] = len(head)
			}
			head = append(head, tag)
			continue
		}
		if tag.Tag != "" {
			head[i].Tag = tag.Tag
		}
		if tag.Order != nil {
			head[i].Order = tag.Order
		}
	}

	body := base.HTML.Body
	if override.HTML.Body.Template != "" {
		body.Template = override.HTML.Body.Template
	}
	return BuildSettings{HTML: HTMLSettings{Head: head, Body: body}}
}

// LoadBuildSettings layers the project and theme build settings files over
// the defaults. Missing files are skipped.
func LoadBuildSettings(root, themesDir, project, theme string) (BuildSettings, error) {
	result := DefaultBuildSettings()
	for _, base := range []string{
		filepath.Join(root, "projects", project, SettingsFileName),
		filepath.Join(themesDir, theme, SettingsFileName),
	} {
		path, ok := settings.FindFile(base)
		if !ok {
			continue
		}
		layer, err := decodeBuildSettings(path)
		if err != nil {
			return BuildSettings{}, err
		}
		result = result.Merge(layer)
	}
	return result, nil
}

// decodeBuildSettings reads a YAML or JSON build settings file; JSON is
// decoded as YAML.
func decodeBuildSettings(path string) (BuildSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BuildSettings{}, errors.FileSystemError("build settings file cannot be read").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	var bs BuildSettings
	if err := yaml.Unmarshal(data, &bs); err != nil {
		return BuildSettings{}, errors.ConfigError("build settings file is not a valid document").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return bs, nil
}
