package ngconfig

import "path"

// Entry is the build configuration injected for a tenant theme.
type Entry struct {
	Main                     string                   `json:"main"`
	Polyfills                string                   `json:"polyfills"`
	StylePreprocessorOptions StylePreprocessorOptions `json:"stylePreprocessorOptions"`
	Optimization             bool                     `json:"optimization"`
	OutputHashing            string                   `json:"outputHashing"`
	SourceMap                bool                     `json:"sourceMap"`
	ExtractCSS               bool                     `json:"extractCss"`
	NamedChunks              bool                     `json:"namedChunks"`
	AOT                      bool                     `json:"aot"`
	ExtractLicenses          bool                     `json:"extractLicenses"`
	VendorChunk              bool                     `json:"vendorChunk"`
	BuildOptimizer           bool                     `json:"buildOptimizer"`
}

// StylePreprocessorOptions lists the SCSS include paths of an entry.
type StylePreprocessorOptions struct {
	IncludePaths []string `json:"includePaths"`
}

// NewEntry derives the configuration entry for theme in project.
// Paths are workspace relative and always use forward slashes.
func NewEntry(project, theme string) Entry {
	entrypoint := path.Join("projects", project, "src", "index.build.ts")
	return Entry{
		Main:      entrypoint,
		Polyfills: entrypoint,
		StylePreprocessorOptions: StylePreprocessorOptions{
			IncludePaths: []string{
				path.Join("themes", theme, "apps", project, "scss"),
				path.Join("themes", theme, "scss"),
				path.Join("utils", "scss"),
				path.Join("projects", project, "src", "scss"),
			},
		},
		Optimization:  true,
		OutputHashing: "none",
		ExtractCSS:    true,
	}
}

// tree converts the entry to the generic form stored in the document.
func (e Entry) tree() map[string]any {
	includes := make([]any, len(e.StylePreprocessorOptions.IncludePaths))
	for i, p := range e.StylePreprocessorOptions.IncludePaths {
		includes[i] = p
	}
	return map[string]any{
		"main":      e.Main,
		"polyfills": e.Polyfills,
		"stylePreprocessorOptions": map[string]any{
			"includePaths": includes,
		},
		"optimization":    e.Optimization,
		"outputHashing":   e.OutputHashing,
		"sourceMap":       e.SourceMap,
		"extractCss":      e.ExtractCSS,
		"namedChunks":     e.NamedChunks,
		"aot":             e.AOT,
		"extractLicenses": e.ExtractLicenses,
		"vendorChunk":     e.VendorChunk,
		"buildOptimizer":  e.BuildOptimizer,
	}
}
