// Package provenance resolves the git commit a build ran against, for
// inclusion in a pipe's build metadata record. Git versioning is treated as
// best-effort: a repository that can't be opened or has no commits yields
// MissingGitVersioning rather than failing the build.
package provenance

import (
	"github.com/go-git/go-git/v5"
	"github.com/pkg/errors"

	"github.com/j-helland/warp/internal/werrors"
)

// CommitHash returns the short hash of HEAD in the git repository rooted at
// or above dir. Returns werrors.MissingGitVersioning (wrapped) if dir is
// not inside a git repository or has no commits yet -- callers should warn
// and continue rather than fail the build on this error.
func CommitHash(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", errors.Wrapf(werrors.MissingGitVersioning, "opening git repository at %s: %v", dir, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", errors.Wrapf(werrors.MissingGitVersioning, "resolving HEAD at %s: %v", dir, err)
	}

	hash := head.Hash().String()
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return hash, nil
}
