package theme

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

func makeThemes(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, name), 0o750))
	}
	return dir
}

func TestDiscover_PrincipalFirstTenantsSorted(t *testing.T) {
	dir := makeThemes(t, "globex", "forgerock", "acme", ".git")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o600))

	c, err := Discover(dir, "forgerock")
	require.NoError(t, err)
	require.Equal(t, []string{"forgerock", "acme", "globex"}, c.IDs())
	require.Equal(t, []string{"acme", "globex"}, c.TenantIDs())
	require.True(t, c.Principal.Principal)
	require.Equal(t, filepath.Join(dir, "acme"), c.Tenants[0].Dir)
}

func TestDiscover_PrincipalOnly(t *testing.T) {
	c, err := Discover(makeThemes(t, "forgerock"), "forgerock")
	require.NoError(t, err)
	require.Equal(t, []string{"forgerock"}, c.IDs())
	require.Empty(t, c.TenantIDs())
}

func TestDiscover_MissingPrincipal(t *testing.T) {
	_, err := Discover(makeThemes(t, "acme"), "forgerock")
	require.Error(t, err)
	require.True(t, errors.IsPrecondition(err))
}

func TestDiscover_MissingDirectory(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), "forgerock")
	require.True(t, errors.IsPrecondition(err))
}

func TestDiscover_NonKebabNameStillUsed(t *testing.T) {
	c, err := Discover(makeThemes(t, "forgerock", "BigCorp"), "forgerock")
	require.NoError(t, err)
	require.Equal(t, []string{"BigCorp"}, c.TenantIDs())
}

func TestIsKebab(t *testing.T) {
	require.True(t, IsKebab("acme"))
	require.True(t, IsKebab("acme-corp"))
	require.False(t, IsKebab("AcmeCorp"))
	require.False(t, IsKebab("acme_corp"))
	require.False(t, IsKebab(""))
}

func TestSelect(t *testing.T) {
	c, err := Discover(makeThemes(t, "forgerock", "acme", "globex", "initech"), "forgerock")
	require.NoError(t, err)

	sub, err := c.Select([]string{"initech", "acme"})
	require.NoError(t, err)
	require.Equal(t, []string{"forgerock", "acme", "initech"}, sub.IDs())

	all, err := c.Select(nil)
	require.NoError(t, err)
	require.Len(t, all.Tenants, 3)

	_, err = c.Select([]string{"umbrella"})
	require.True(t, errors.IsPrecondition(err))
}

func TestGet(t *testing.T) {
	c, err := Discover(makeThemes(t, "forgerock", "acme"), "forgerock")
	require.NoError(t, err)

	th, ok := c.Get("forgerock")
	require.True(t, ok)
	require.True(t, th.Principal)

	_, ok = c.Get("missing")
	require.False(t, ok)
}
