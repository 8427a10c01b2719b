package worktree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Mic92/nix-review/internal/model"
)

// Worktree is an ephemeral checkout bound to one change under review.
// It owns a detached Git worktree directory plus the cache subdirectory
// that contains it. The checkout stays alive until Remove is called.
type Worktree struct {
	// Name is the unique identifier the worktree was acquired under,
	// e.g. "pr-12345" or "rev-abc123de".
	Name string

	// Dir is the absolute path to the checkout.
	Dir string

	repoRoot string
	cacheDir string
	removed  bool
}

// RepoRoot returns the absolute path to the top-level directory of the
// Git repository containing the given path.
//
// Uses `git rev-parse --show-toplevel`, which works for both the main
// working directory and worktrees.
func RepoRoot(path string) (string, error) {
	output, err := runGit(path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// ResolveCommit resolves a ref/branch/tag name to a full commit hash via
// `git rev-parse --verify`. The ref must verify; failure is returned as-is
// and is fatal to the caller.
func ResolveCommit(repoPath, ref string) (string, error) {
	output, err := runGit(repoPath, "rev-parse", "--verify", ref)
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("cannot resolve %q to a commit", ref), err)
	}
	return strings.TrimSpace(output), nil
}

// Create materializes a new detached worktree for repoRoot under
// cacheRoot/<name>/nixpkgs. A stale directory from a previous run with
// the same name is removed first, so worktree identities are fresh per run.
func Create(repoRoot, cacheRoot, name string) (*Worktree, error) {
	cacheDir := filepath.Join(cacheRoot, name)
	dir := filepath.Join(cacheDir, "nixpkgs")

	// A leftover checkout from an interrupted run would make
	// `git worktree add` fail, so clear it out up front.
	if _, err := os.Stat(dir); err == nil {
		_, _ = runGit(repoRoot, "worktree", "remove", "--force", dir)
		if err := os.RemoveAll(cacheDir); err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to clear stale worktree %q", dir), err)
		}
		_, _ = runGit(repoRoot, "worktree", "prune")
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to create cache directory for %q", name), err)
	}

	if _, err := runGit(repoRoot, "worktree", "add", "--detach", dir); err != nil {
		return nil, err
	}

	return &Worktree{
		Name:     name,
		Dir:      dir,
		repoRoot: repoRoot,
		cacheDir: cacheDir,
	}, nil
}

// NixPath returns the package-search-path entry that makes this checkout
// the active nixpkgs tree, suitable for the NIX_PATH environment variable.
func (w *Worktree) NixPath() string {
	return "nixpkgs=" + w.Dir
}

// Remove releases the checkout: the Git worktree is removed (force, since
// review checkouts routinely carry merge state), administrative files are
// pruned, and the cache subdirectory is deleted. Remove is idempotent.
func (w *Worktree) Remove() error {
	if w.removed {
		return nil
	}
	w.removed = true

	_, err := runGit(w.repoRoot, "worktree", "remove", "--force", w.Dir)
	if err != nil {
		// Fall back to deleting the directory; prune below cleans up
		// the stale administrative entry.
		if rmErr := os.RemoveAll(w.Dir); rmErr != nil {
			return err
		}
	}
	_, _ = runGit(w.repoRoot, "worktree", "prune")

	if err := os.RemoveAll(w.cacheDir); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to remove cache directory %q", w.cacheDir), err)
	}
	return nil
}

// Stack is the ordered resource list of all worktrees acquired during one
// batch. Worktrees must outlive the build loop because their search-path
// strings are consumed by the later shell-handoff loop, so the stack is
// released exactly once, at batch end, in reverse acquisition order.
type Stack struct {
	worktrees []*Worktree
}

// NewStack returns an empty worktree stack.
func NewStack() *Stack {
	return &Stack{}
}

// Acquire creates a worktree via Create and records it for release.
func (s *Stack) Acquire(repoRoot, cacheRoot, name string) (*Worktree, error) {
	w, err := Create(repoRoot, cacheRoot, name)
	if err != nil {
		return nil, err
	}
	s.worktrees = append(s.worktrees, w)
	return w, nil
}

// Len returns the number of worktrees currently held by the stack.
func (s *Stack) Len() int {
	return len(s.worktrees)
}

// ReleaseAll removes every acquired worktree in reverse acquisition order.
// All removals are attempted even if some fail; the combined error is
// returned. Safe to call more than once.
func (s *Stack) ReleaseAll() error {
	var errs []error
	for i := len(s.worktrees) - 1; i >= 0; i-- {
		if err := s.worktrees[i].Remove(); err != nil {
			errs = append(errs, err)
		}
	}
	s.worktrees = nil
	return errors.Join(errs...)
}

