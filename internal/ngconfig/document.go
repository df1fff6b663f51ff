// Package ngconfig reads and extends the workspace's global build
// configuration (angular.json).
package ngconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

const applicationProjectType = "application"

// Document is a parsed global build configuration. Fields the pipeline does
// not understand are kept as they were read.
type Document struct {
	path string
	root map[string]any
}

// Load parses the configuration at path. Comments and trailing commas are accepted.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.PreconditionError("build configuration file cannot be read").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return Parse(path, raw)
}

// Parse parses raw as the configuration stored at path.
func Parse(path string, raw []byte) (*Document, error) {
	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, errors.ConfigError("build configuration is not valid JSON").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.UseNumber()
	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return nil, errors.ConfigError("build configuration must be a JSON object").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	if root == nil {
		root = map[string]any{}
	}
	return &Document{path: path, root: root}, nil
}

// Path returns where the document was read from.
func (d *Document) Path() string { return d.path }

// Projects returns the project names, sorted.
func (d *Document) Projects() []string {
	projects, _ := d.root["projects"].(map[string]any)
	names := make([]string, 0, len(projects))
	for name := range projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// project returns the named application project.
func (d *Document) project(name string) (map[string]any, error) {
	projects, _ := d.root["projects"].(map[string]any)
	p, ok := projects[name].(map[string]any)
	if !ok {
		return nil, errors.PreconditionError("project not found in build configuration").
			WithContext("project", name).
			WithContext("path", d.path).
			Build()
	}
	if kind, _ := p["projectType"].(string); kind != applicationProjectType {
		return nil, errors.PreconditionError("project is not an application").
			WithContext("project", name).
			WithContext("project_type", kind).
			Build()
	}
	return p, nil
}

// configurations returns the build configurations object of a project,
// creating the intermediate objects when absent.
func configurations(project map[string]any) map[string]any {
	node := project
	for _, key := range []string{"architect", "build", "configurations"} {
		next, ok := node[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[key] = next
		}
		node = next
	}
	return node
}

// Configurations returns the names of the build configurations of project, sorted.
func (d *Document) Configurations(project string) ([]string, error) {
	p, err := d.project(project)
	if err != nil {
		return nil, err
	}
	existing, _ := p["architect"].(map[string]any)
	build, _ := existing["build"].(map[string]any)
	configs, _ := build["configurations"].(map[string]any)
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// AddEntries inserts an entry for every theme that has none and returns the
// themes that were added. Existing entries are left untouched.
func (d *Document) AddEntries(project string, themes []string) ([]string, error) {
	p, err := d.project(project)
	if err != nil {
		return nil, err
	}
	configs := configurations(p)
	var added []string
	for _, theme := range themes {
		if _, exists := configs[theme]; exists {
			continue
		}
		configs[theme] = NewEntry(project, theme).tree()
		added = append(added, theme)
	}
	return added, nil
}

// Marshal renders the document as indented JSON.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("encode build configuration: %w", err)
	}
	return buf.Bytes(), nil
}

// Save atomically replaces the file the document was read from.
func (d *Document) Save() error {
	data, err := d.Marshal()
	if err != nil {
		return errors.InternalError("failed to encode build configuration").WithCause(err).Build()
	}
	if err := atomic.WriteFile(d.path, bytes.NewReader(data)); err != nil {
		return errors.FileSystemError("failed to write build configuration").
			WithCause(err).
			WithContext("path", d.path).
			Build()
	}
	return nil
}
