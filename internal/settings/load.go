package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

// Extensions are tried in order when looking up a settings file by base name.
var Extensions = []string{".json", ".yaml", ".yml"}

// FindFile returns the first existing file named base plus one of Extensions.
func FindFile(base string) (string, bool) {
	for _, ext := range Extensions {
		path := base + ext
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// LoadFile reads the settings file at base (without extension) into a tree.
// found is false when no file exists.
func LoadFile(base string) (tree map[string]any, found bool, err error) {
	path, ok := FindFile(base)
	if !ok {
		return nil, false, nil
	}
	tree, err = Decode(path)
	return tree, true, err
}

// Decode reads a JSON or YAML file into a tree.
func Decode(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileSystemError("settings file cannot be read").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	var tree map[string]any
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &tree)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&tree)
	}
	if err != nil {
		return nil, errors.ConfigError("settings file is not a valid document").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return normalize(tree).(map[string]any), nil
}

// normalize turns YAML's map[any]any nodes into map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}

// Encode renders doc as indented JSON.
func Encode(doc map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, errors.InternalError("failed to encode deployment settings").WithCause(err).Build()
	}
	return buf.Bytes(), nil
}
