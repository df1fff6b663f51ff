// Package manifest reads the asset manifest (stats file) emitted by the
// principal build.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// StylesChunk is the chunk holding the global stylesheet.
const StylesChunk = "styles"

// Asset is one emitted file.
type Asset struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ChunkFiles is the list of files emitted for a chunk. The stats file
// encodes a single file as a bare string.
type ChunkFiles []string

// UnmarshalJSON accepts either a string or a list of strings.
func (c *ChunkFiles) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*c = ChunkFiles{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("chunk files must be a string or a list of strings: %w", err)
	}
	*c = list
	return nil
}

// Primary returns the first file that is not a source map.
func (c ChunkFiles) Primary() (string, bool) {
	for _, f := range c {
		if !strings.HasSuffix(f, ".map") {
			return f, true
		}
	}
	return "", false
}

// ChunkMap maps chunk names to the file each was emitted as.
type ChunkMap map[string]string

// Names returns the chunk names, sorted.
func (m ChunkMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AssetManifest is the subset of the stats file the pipeline needs.
type AssetManifest struct {
	Assets            []Asset               `json:"assets"`
	AssetsByChunkName map[string]ChunkFiles `json:"assetsByChunkName"`
}

// FromJSON deserializes a manifest from JSON.
func FromJSON(data []byte) (*AssetManifest, error) {
	var m AssetManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}

// Load reads the manifest at path.
func Load(path string) (*AssetManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return FromJSON(data)
}

// Chunks returns the primary file of every chunk.
func (m *AssetManifest) Chunks() ChunkMap {
	chunks := make(ChunkMap, len(m.AssetsByChunkName))
	for name, files := range m.AssetsByChunkName {
		if f, ok := files.Primary(); ok {
			chunks[name] = f
		}
	}
	return chunks
}

// StylesFile returns the file emitted for the styles chunk.
func (m *AssetManifest) StylesFile() (string, bool) {
	files, ok := m.AssetsByChunkName[StylesChunk]
	if !ok {
		return "", false
	}
	return files.Primary()
}

// TotalSize sums the sizes of all assets.
func (m *AssetManifest) TotalSize() int64 {
	var total int64
	for _, a := range m.Assets {
		total += a.Size
	}
	return total
}
