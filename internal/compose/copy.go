package compose

import (
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
)

// copyStats counts what a copy wrote.
type copyStats struct {
	Files int
	Bytes int64
}

func (s *copyStats) add(o copyStats) {
	s.Files += o.Files
	s.Bytes += o.Bytes
}

// copyDir copies src into dst recursively, overwriting files that exist in
// both. skip is consulted with paths relative to src.
func copyDir(fs billy.Filesystem, src, dst string, skip func(rel string) bool) (copyStats, error) {
	return copyTree(fs, src, dst, "", skip)
}

func copyTree(fs billy.Filesystem, src, dst, rel string, skip func(string) bool) (copyStats, error) {
	var stats copyStats

	srcInfo, err := fs.Stat(src)
	if err != nil {
		return stats, err
	}
	if err := fs.MkdirAll(dst, srcInfo.Mode().Perm()|0o700); err != nil {
		return stats, err
	}

	entries, err := fs.ReadDir(src)
	if err != nil {
		return stats, err
	}
	for _, entry := range entries {
		childRel := path.Join(rel, entry.Name())
		if skip != nil && skip(childRel) {
			continue
		}
		srcPath := fs.Join(src, entry.Name())
		dstPath := fs.Join(dst, entry.Name())

		if entry.IsDir() {
			sub, err := copyTree(fs, srcPath, dstPath, childRel, skip)
			stats.add(sub)
			if err != nil {
				return stats, err
			}
			continue
		}
		n, err := copyFile(fs, srcPath, dstPath, entry.Mode())
		if err != nil {
			return stats, err
		}
		stats.Files++
		stats.Bytes += n
	}
	return stats, nil
}

// copyFile copies a single file from src to dst, replacing dst.
func copyFile(fs billy.Filesystem, src, dst string, mode os.FileMode) (int64, error) {
	srcFile, err := fs.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	if err := fs.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	dstFile, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dstFile, srcFile)
	if closeErr := dstFile.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

func exists(fs billy.Filesystem, name string) (bool, error) {
	_, err := fs.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}
