package git

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Provenance identifies the workspace revision.
type Provenance struct {
	Commit string
	Branch string // empty on a detached HEAD
}

// ErrNotRepository is returned when path is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// ReadProvenance resolves HEAD of the repository containing path.
func ReadProvenance(path string) (Provenance, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Provenance{}, ErrNotRepository
		}
		return Provenance{}, fmt.Errorf("open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return Provenance{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	p := Provenance{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		p.Branch = head.Name().Short()
	}

	return p, nil
}
