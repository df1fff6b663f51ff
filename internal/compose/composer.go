// Package compose assembles tenant output directories from the principal
// build plus each tenant's own assets and stylesheet.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/manifest"
)

const tempSuffix = "-temp"

// Composer overlays tenant artifacts onto a copy of the principal output.
// All paths are relative to the root of FS.
type Composer struct {
	FS               billy.Filesystem
	DistDir          string
	ThemesDir        string
	Principal        string
	StatsFile        string
	TenantStylesheet string
}

// Result describes one composed tenant output.
type Result struct {
	Theme      string
	Dir        string
	Files      int
	Bytes      int64
	AssetFiles int
	Stylesheet string
}

// OutputDir returns the output directory of theme.
func (c *Composer) OutputDir(theme string) string {
	return path.Join(c.DistDir, theme)
}

// ManifestPath returns where the principal build writes its manifest.
func (c *Composer) ManifestPath() string {
	return path.Join(c.OutputDir(c.Principal), c.StatsFile)
}

// LoadManifest reads the principal build's manifest.
func (c *Composer) LoadManifest() (*manifest.AssetManifest, error) {
	data, err := util.ReadFile(c.FS, c.ManifestPath())
	if err != nil {
		return nil, errors.MissingArtifactError("principal build manifest not found").
			WithCause(err).
			WithContext("path", c.ManifestPath()).
			Build()
	}
	m, err := manifest.FromJSON(data)
	if err != nil {
		return nil, errors.ValidationError("principal build manifest is invalid").
			WithCause(err).
			WithContext("path", c.ManifestPath()).
			Build()
	}
	return m, nil
}

// Compose turns the tenant's raw build into a copy of the principal output
// carrying the tenant's assets and compiled stylesheet.
func (c *Composer) Compose(ctx context.Context, tenant, project string, m *manifest.AssetManifest) (Result, error) {
	principalDir := c.OutputDir(c.Principal)
	tenantDir := c.OutputDir(tenant)
	tempDir := tenantDir + tempSuffix
	res := Result{Theme: tenant, Dir: tenantDir}

	if err := c.require(principalDir, "principal build output not found"); err != nil {
		return res, err
	}
	if err := c.require(c.ManifestPath(), "principal build manifest not found"); err != nil {
		return res, err
	}
	if err := c.require(tenantDir, "tenant build output not found"); err != nil {
		return res, err
	}
	if err := c.require(path.Join(tenantDir, c.TenantStylesheet), "tenant stylesheet not found"); err != nil {
		return res, err
	}
	stylesFile, ok := m.StylesFile()
	if !ok {
		return res, errors.MissingArtifactError("manifest has no styles chunk").
			WithContext("path", c.ManifestPath()).
			Build()
	}
	res.Stylesheet = stylesFile

	if err := ctx.Err(); err != nil {
		return res, err
	}

	if err := util.RemoveAll(c.FS, tempDir); err != nil {
		return res, c.fsError("failed to remove stale temporary directory", tempDir, err)
	}
	if err := c.FS.Rename(tenantDir, tempDir); err != nil {
		return res, c.fsError("failed to move tenant build aside", tenantDir, err)
	}

	copied, err := copyDir(c.FS, principalDir, tenantDir, func(rel string) bool {
		return rel == c.StatsFile
	})
	if err != nil {
		return res, c.fsError("failed to copy principal build", principalDir, err)
	}
	res.Files, res.Bytes = copied.Files, copied.Bytes

	assets, err := c.overlayAssets(tenant, project, tenantDir)
	if err != nil {
		return res, err
	}
	res.AssetFiles = assets.Files

	if err := ctx.Err(); err != nil {
		return res, err
	}

	src := path.Join(tempDir, c.TenantStylesheet)
	dst := path.Join(tenantDir, stylesFile)
	info, err := c.FS.Stat(src)
	if err != nil {
		return res, c.fsError("failed to stat tenant stylesheet", src, err)
	}
	if _, err := copyFile(c.FS, src, dst, info.Mode()); err != nil {
		return res, c.fsError("failed to replace stylesheet", dst, err)
	}

	if err := util.RemoveAll(c.FS, tempDir); err != nil {
		return res, c.fsError("failed to remove temporary directory", tempDir, err)
	}

	slog.Info("Composed tenant output",
		logfields.Theme(tenant),
		logfields.Path(tenantDir),
		logfields.Count(res.Files),
		slog.Int("assets", res.AssetFiles),
		slog.String("size", humanize.Bytes(uint64(res.Bytes))))
	return res, nil
}

// overlayAssets copies the theme's assets, then its application-specific
// assets, over the output's assets directory.
func (c *Composer) overlayAssets(tenant, project, tenantDir string) (copyStats, error) {
	var stats copyStats
	dst := path.Join(tenantDir, "assets")
	for _, src := range []string{
		path.Join(c.ThemesDir, tenant, "assets"),
		path.Join(c.ThemesDir, tenant, "apps", project, "assets"),
	} {
		ok, err := exists(c.FS, src)
		if err != nil {
			return stats, c.fsError("failed to stat theme assets", src, err)
		}
		if !ok {
			slog.Debug("No theme assets", logfields.Theme(tenant), logfields.Path(src))
			continue
		}
		copied, err := copyDir(c.FS, src, dst, nil)
		stats.add(copied)
		if err != nil {
			return stats, c.fsError("failed to overlay theme assets", src, err)
		}
	}
	return stats, nil
}

// WriteFile writes an output file of theme, replacing any existing file.
func (c *Composer) WriteFile(theme, name string, data []byte) error {
	p := path.Join(c.OutputDir(theme), name)
	if err := util.WriteFile(c.FS, p, data, 0o644); err != nil {
		return c.fsError("failed to write output file", p, err)
	}
	return nil
}

func (c *Composer) require(p, message string) error {
	ok, err := exists(c.FS, p)
	if err != nil {
		return c.fsError(fmt.Sprintf("failed to check %s", p), p, err)
	}
	if !ok {
		return errors.MissingArtifactError(message).WithContext("path", p).Build()
	}
	return nil
}

func (c *Composer) fsError(message, p string, err error) error {
	return errors.FileSystemError(message).WithCause(err).WithContext("path", p).Build()
}
