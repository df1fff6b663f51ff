// Package markup renders the HTML entry document of a theme build.
package markup

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/manifest"
)

// scriptOrder lists the chunks loaded before all others, in order.
var scriptOrder = []string{"runtime", "polyfills", "vendor", "main"}

// BodyData is the data the body template is rendered with.
type BodyData struct {
	Project string
	Theme   string
	Chunks  manifest.ChunkMap
	Scripts []string
	Styles  string
}

// Generate renders the entry document for theme. The output depends only on
// its arguments.
func Generate(project, theme string, bs BuildSettings, chunks manifest.ChunkMap) (string, error) {
	head, err := orderedHead(bs.HTML.Head)
	if err != nil {
		return "", err
	}

	data := BodyData{
		Project: project,
		Theme:   theme,
		Chunks:  chunks,
		Scripts: Scripts(chunks),
		Styles:  chunks[manifest.StylesChunk],
	}
	tmpl, err := template.New("body").Option("missingkey=zero").Parse(bs.HTML.Body.Template)
	if err != nil {
		return "", errors.ConfigError("body template is invalid").
			WithCause(err).
			WithContext("theme", theme).
			Build()
	}
	var body strings.Builder
	if err := tmpl.Execute(&body, data); err != nil {
		return "", errors.ConfigError("body template failed to render").
			WithCause(err).
			WithContext("theme", theme).
			Build()
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n  <head>\n")
	for _, tag := range head {
		writeIndented(&b, tag.Tag, "    ")
	}
	if data.Styles != "" {
		fmt.Fprintf(&b, "    <link rel=\"stylesheet\" href=\"%s\" />\n", html.EscapeString(data.Styles))
	}
	b.WriteString("  </head>\n  <body>\n")
	writeIndented(&b, body.String(), "    ")
	b.WriteString("  </body>\n</html>\n")
	return b.String(), nil
}

// orderedHead validates the tags and sorts them by ascending order; tags
// without an order follow in their declared sequence.
func orderedHead(tags []HeadTag) ([]HeadTag, error) {
	out := make([]HeadTag, 0, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag.Tag) == "" {
			continue
		}
		if err := ValidateTag(tag.Tag); err != nil {
			return nil, errors.ValidationError("head tag is not valid markup").
				WithCause(err).
				WithContext("id", tag.ID).
				Build()
		}
		out = append(out, tag)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Order, out[j].Order
		switch {
		case a != nil && b != nil:
			return *a < *b
		case a != nil:
			return true
		default:
			return false
		}
	})
	return out, nil
}

// ValidateTag checks that s is an HTML fragment starting with an element.
func ValidateTag(s string) error {
	z := html.NewTokenizer(strings.NewReader(s))
	sawElement := false
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				if !sawElement {
					return fmt.Errorf("no element in %q", s)
				}
				return nil
			}
			return z.Err()
		case html.TextToken:
			if !sawElement && strings.TrimSpace(string(z.Text())) != "" {
				return fmt.Errorf("text outside of an element in %q", s)
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			sawElement = true
		case html.EndTagToken:
			if !sawElement {
				return fmt.Errorf("unexpected end tag in %q", s)
			}
		}
	}
}

// Scripts returns the JavaScript files to load: runtime, polyfills, vendor
// and main first, then the remaining chunks by name.
func Scripts(chunks manifest.ChunkMap) []string {
	var scripts []string
	seen := map[string]bool{manifest.StylesChunk: true}
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		if f, ok := chunks[name]; ok && strings.HasSuffix(f, ".js") {
			scripts = append(scripts, f)
		}
	}
	for _, name := range scriptOrder {
		add(name)
	}
	for _, name := range chunks.Names() {
		add(name)
	}
	return scripts
}

func writeIndented(b *strings.Builder, text, indent string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteString("\n")
	}
}
