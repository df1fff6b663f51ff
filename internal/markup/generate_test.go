package markup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/manifest"
)

var chunks = manifest.ChunkMap{
	"main":      "main.js",
	"polyfills": "polyfills.js",
	"runtime":   "runtime.js",
	"styles":    "styles.css",
	"lazy":      "lazy.js",
}

const viewport = `<meta name="viewport" content="width=device-width, initial-scale=1.0, minimum-scale=1.0, maximum-scale=1.0, user-scalable=no, viewport-fit=cover" />`

func TestGenerate_Defaults(t *testing.T) {
	got, err := Generate("app", "forgerock", DefaultBuildSettings(), chunks)
	require.NoError(t, err)

	want := `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <base href="/" />
    <title>Forgerock App</title>
    ` + viewport + `
    <link rel="stylesheet" href="styles.css" />
  </head>
  <body>
    <app-root></app-root>
    <script src="runtime.js" defer></script>
    <script src="polyfills.js" defer></script>
    <script src="main.js" defer></script>
    <script src="lazy.js" defer></script>
  </body>
</html>
`
	require.Equal(t, want, got)
}

func TestGenerate_IsDeterministic(t *testing.T) {
	first, err := Generate("app", "acme", DefaultBuildSettings(), chunks)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Generate("app", "acme", DefaultBuildSettings(), chunks)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestGenerate_OrderIsStableForUnorderedTags(t *testing.T) {
	bs := BuildSettings{HTML: HTMLSettings{
		Head: []HeadTag{
			{ID: "z", Tag: `<meta name="z" />`},
			{ID: "b", Tag: `<meta name="b" />`, Order: order(2)},
			{ID: "y", Tag: `<meta name="y" />`},
			{ID: "a", Tag: `<meta name="a" />`, Order: order(1)},
		},
		Body: BodySettings{Template: "<main></main>"},
	}}

	got, err := Generate("app", "acme", bs, manifest.ChunkMap{})
	require.NoError(t, err)
	require.Equal(t, `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta name="a" />
    <meta name="b" />
    <meta name="z" />
    <meta name="y" />
  </head>
  <body>
    <main></main>
  </body>
</html>
`, got)
}

func TestMerge_OverridesByID(t *testing.T) {
	override := BuildSettings{HTML: HTMLSettings{
		Head: []HeadTag{
			{ID: "title", Tag: "<title>Acme</title>"},
			{ID: "base", Order: order(10)},
			{ID: "icon", Tag: `<link rel="icon" href="favicon.ico" />`, Order: order(4)},
		},
	}}

	merged := DefaultBuildSettings().Merge(override)
	require.Len(t, merged.HTML.Head, 5)
	require.Equal(t, "<title>Acme</title>", merged.HTML.Head[2].Tag)
	require.Equal(t, 3, *merged.HTML.Head[2].Order)
	require.Equal(t, `<base href="/" />`, merged.HTML.Head[1].Tag)
	require.Equal(t, 10, *merged.HTML.Head[1].Order)
	require.Equal(t, "icon", merged.HTML.Head[4].ID)
	require.Equal(t, DefaultBodyTemplate, merged.HTML.Body.Template)

	got, err := Generate("app", "acme", merged, manifest.ChunkMap{})
	require.NoError(t, err)
	require.Regexp(t, `(?s)charset.*Acme.*favicon.*base href.*viewport`, got)
}

func TestMerge_DoesNotModifyBase(t *testing.T) {
	base := DefaultBuildSettings()
	_ = base.Merge(BuildSettings{HTML: HTMLSettings{Head: []HeadTag{{ID: "title", Tag: "<title>X</title>"}}}})
	require.Equal(t, "<title>Forgerock App</title>", base.HTML.Head[2].Tag)
}

func TestGenerate_BodyTemplateData(t *testing.T) {
	bs := DefaultBuildSettings()
	bs.HTML.Body.Template = `<div data-theme="{{.Theme}}" data-project="{{.Project}}"></div><script src="{{index .Chunks "main"}}"></script>{{.Styles}}`

	got, err := Generate("app", "acme", bs, chunks)
	require.NoError(t, err)
	require.Contains(t, got, `<div data-theme="acme" data-project="app"></div><script src="main.js"></script>styles.css`)
}

func TestGenerate_InvalidTemplate(t *testing.T) {
	bs := DefaultBuildSettings()
	bs.HTML.Body.Template = "{{.Nope"
	_, err := Generate("app", "acme", bs, chunks)
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestGenerate_InvalidHeadTag(t *testing.T) {
	bs := DefaultBuildSettings().Merge(BuildSettings{HTML: HTMLSettings{
		Head: []HeadTag{{ID: "broken", Tag: "just text"}},
	}})
	_, err := Generate("app", "acme", bs, chunks)
	require.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestValidateTag(t *testing.T) {
	require.NoError(t, ValidateTag(`<meta charset="utf-8" />`))
	require.NoError(t, ValidateTag(`<title>App</title>`))
	require.NoError(t, ValidateTag(`<script src="a.js"></script>`))
	require.Error(t, ValidateTag(`plain`))
	require.Error(t, ValidateTag(`</head>`))
	require.Error(t, ValidateTag(``))
}

func TestScripts_Order(t *testing.T) {
	got := Scripts(manifest.ChunkMap{
		"main":    "main.js",
		"vendor":  "vendor.js",
		"styles":  "styles.js",
		"b-chunk": "b.js",
		"a-chunk": "a.js",
		"css":     "extra.css",
	})
	require.Equal(t, []string{"vendor.js", "main.js", "a.js", "b.js"}, got)
}

func TestLoadBuildSettings_Layers(t *testing.T) {
	root := t.TempDir()
	themes := filepath.Join(root, "themes")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "projects", "app"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(themes, "acme"), 0o750))

	require.NoError(t, os.WriteFile(filepath.Join(root, "projects", "app", "build-settings.json"),
		[]byte(`{"html": {"head": [{"id": "title", "tag": "<title>App</title>"}]}}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(themes, "acme", "build-settings.yaml"), []byte(`
html:
  head:
    - id: title
      tag: <title>Acme App</title>
    - id: theme-color
      tag: <meta name="theme-color" content="#ff0000" />
  body:
    template: <acme-root></acme-root>
`), 0o600))

	bs, err := LoadBuildSettings(root, themes, "app", "acme")
	require.NoError(t, err)
	require.Equal(t, "<title>Acme App</title>", bs.HTML.Head[2].Tag)
	require.Equal(t, "theme-color", bs.HTML.Head[4].ID)
	require.Equal(t, "<acme-root></acme-root>", bs.HTML.Body.Template)

	principal, err := LoadBuildSettings(root, themes, "app", "forgerock")
	require.NoError(t, err)
	require.Equal(t, "<title>App</title>", principal.HTML.Head[2].Tag)
	require.Equal(t, DefaultBodyTemplate, principal.HTML.Body.Template)
}
