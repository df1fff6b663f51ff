// Package theme discovers the themes a workspace defines.
//
// Every directory under the themes directory is a theme; its name is the
// theme identifier. One theme is the principal: it is built first and its
// output is the base every tenant theme is composed onto.
package theme

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
)

// Theme is one theme directory.
type Theme struct {
	ID        string
	Dir       string
	Principal bool
}

// Catalog is the set of themes found in a themes directory.
type Catalog struct {
	Dir       string
	Principal Theme
	Tenants   []Theme // sorted by ID
}

// Discover lists the theme directories under dir. Hidden directories are
// skipped. The principal must be present.
func Discover(dir, principal string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.PreconditionError("themes directory cannot be read").
			WithCause(err).
			WithContext("path", dir).
			Build()
	}

	c := &Catalog{Dir: dir}
	found := false
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !IsKebab(name) {
			slog.Warn("Theme directory name is not kebab-case", logfields.Theme(name), logfields.Path(filepath.Join(dir, name)))
		}
		t := Theme{ID: name, Dir: filepath.Join(dir, name)}
		if name == principal {
			t.Principal = true
			c.Principal = t
			found = true
			continue
		}
		c.Tenants = append(c.Tenants, t)
	}

	if !found {
		return nil, errors.PreconditionError("principal theme not found").
			WithContext("theme", principal).
			WithContext("path", dir).
			Build()
	}
	sort.Slice(c.Tenants, func(i, j int) bool { return c.Tenants[i].ID < c.Tenants[j].ID })
	return c, nil
}

// IsKebab reports whether id is a lower kebab-case identifier.
func IsKebab(id string) bool {
	return id != "" && strcase.ToKebab(id) == id
}

// IDs returns the build order: the principal followed by the tenants.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Tenants)+1)
	ids = append(ids, c.Principal.ID)
	return append(ids, c.TenantIDs()...)
}

// TenantIDs returns the tenant identifiers, sorted.
func (c *Catalog) TenantIDs() []string {
	ids := make([]string, 0, len(c.Tenants))
	for _, t := range c.Tenants {
		ids = append(ids, t.ID)
	}
	return ids
}

// Get returns the theme with the given id.
func (c *Catalog) Get(id string) (Theme, bool) {
	if id == c.Principal.ID {
		return c.Principal, true
	}
	for _, t := range c.Tenants {
		if t.ID == id {
			return t, true
		}
	}
	return Theme{}, false
}

// Select returns a catalog restricted to the named tenants. The principal is
// always kept. An empty selection keeps every tenant.
func (c *Catalog) Select(ids []string) (*Catalog, error) {
	if len(ids) == 0 {
		return c, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := c.Get(id); !ok {
			return nil, errors.PreconditionError("unknown theme").
				WithContext("theme", id).
				WithContext("path", c.Dir).
				Build()
		}
		want[id] = true
	}
	out := &Catalog{Dir: c.Dir, Principal: c.Principal}
	for _, t := range c.Tenants {
		if want[t.ID] {
			out.Tenants = append(out.Tenants, t)
		}
	}
	return out, nil
}
