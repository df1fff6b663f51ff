package git

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "angular.json"), []byte("{}"), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("angular.json")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir, hash.String()
}

func TestReadProvenance(t *testing.T) {
	dir, commit := initRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "themes", "acme"), 0o750))

	p, err := ReadProvenance(filepath.Join(dir, "themes"))
	require.NoError(t, err)
	require.Equal(t, commit, p.Commit)
	require.Equal(t, "master", p.Branch)
}

func TestReadProvenance_IgnoresWorktreeChanges(t *testing.T) {
	dir, commit := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "angular.json"), []byte(`{"changed": true}`), 0o600))

	p, err := ReadProvenance(dir)
	require.NoError(t, err)
	require.Equal(t, Provenance{Commit: commit, Branch: "master"}, p)
}

func TestReadProvenance_NotRepository(t *testing.T) {
	_, err := ReadProvenance(t.TempDir())
	require.True(t, errors.Is(err, ErrNotRepository))
}
