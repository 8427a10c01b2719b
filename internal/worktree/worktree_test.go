package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepo creates a temporary directory with an initialized Git
// repository containing a single commit. Worktree operations require at
// least one commit to exist, because a detached worktree needs a commit
// to point to.
//
// It configures a local user.name and user.email so that `git commit`
// works in CI environments where global git config may not be set.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	runTestGit(t, dir, "init")
	runTestGit(t, dir, "config", "user.email", "test@example.com")
	runTestGit(t, dir, "config", "user.name", "Test User")

	initialFile := filepath.Join(dir, "default.nix")
	err := os.WriteFile(initialFile, []byte("{ }\n"), 0644)
	require.NoError(t, err, "failed to create initial file")

	runTestGit(t, dir, "add", ".")
	runTestGit(t, dir, "commit", "-m", "initial commit")

	return dir
}

// runTestGit is a test helper that runs a git command in the specified
// directory and fails the test immediately on a non-zero exit status.
func runTestGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
	return string(output)
}

func TestRepoRoot(t *testing.T) {
	repoPath := setupTestRepo(t)

	subdir := filepath.Join(repoPath, "pkgs")
	require.NoError(t, os.MkdirAll(subdir, 0o755))

	root, err := RepoRoot(subdir)
	require.NoError(t, err)

	// macOS temp dirs are symlinked (/var → /private/var), so compare
	// resolved paths.
	wantRoot, err := filepath.EvalSymlinks(repoPath)
	require.NoError(t, err)
	gotRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, wantRoot, gotRoot)
}

func TestRepoRootOutsideRepo(t *testing.T) {
	_, err := RepoRoot(t.TempDir())
	assert.Error(t, err, "RepoRoot should fail outside a git repository")
}

func TestResolveCommit(t *testing.T) {
	repoPath := setupTestRepo(t)

	commit, err := ResolveCommit(repoPath, "HEAD")
	require.NoError(t, err)
	assert.Len(t, commit, 40, "resolved commit should be a full SHA-1")
	assert.NotContains(t, commit, "\n", "resolved commit must be trimmed")

	branch, err := ResolveCommit(repoPath, "HEAD^{commit}")
	require.NoError(t, err)
	assert.Equal(t, commit, branch)
}

func TestResolveCommitUnknownRef(t *testing.T) {
	repoPath := setupTestRepo(t)

	_, err := ResolveCommit(repoPath, "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestCreateAndRemove(t *testing.T) {
	repoPath := setupTestRepo(t)
	cacheRoot := t.TempDir()

	w, err := Create(repoPath, cacheRoot, "pr-1")
	require.NoError(t, err)

	assert.Equal(t, "pr-1", w.Name)
	assert.Equal(t, filepath.Join(cacheRoot, "pr-1", "nixpkgs"), w.Dir)

	// The checkout must contain the repository contents.
	_, statErr := os.Stat(filepath.Join(w.Dir, "default.nix"))
	assert.NoError(t, statErr, "checkout should contain repo files")

	assert.Equal(t, "nixpkgs="+w.Dir, w.NixPath())

	require.NoError(t, w.Remove())
	_, statErr = os.Stat(filepath.Join(cacheRoot, "pr-1"))
	assert.True(t, os.IsNotExist(statErr), "cache directory should be gone after Remove")

	// Removing twice is a no-op.
	assert.NoError(t, w.Remove())
}

func TestCreateReplacesStaleCheckout(t *testing.T) {
	repoPath := setupTestRepo(t)
	cacheRoot := t.TempDir()

	first, err := Create(repoPath, cacheRoot, "pr-7")
	require.NoError(t, err)

	// Simulate an interrupted run: the worktree is left behind.
	second, err := Create(repoPath, cacheRoot, "pr-7")
	require.NoError(t, err, "Create should replace a stale checkout with the same name")
	assert.Equal(t, first.Dir, second.Dir)

	require.NoError(t, second.Remove())
}

func TestStackReleaseAll(t *testing.T) {
	repoPath := setupTestRepo(t)
	cacheRoot := t.TempDir()

	stack := NewStack()

	w1, err := stack.Acquire(repoPath, cacheRoot, "pr-10")
	require.NoError(t, err)
	w2, err := stack.Acquire(repoPath, cacheRoot, "pr-11")
	require.NoError(t, err)
	assert.Equal(t, 2, stack.Len())

	// Both checkouts are live simultaneously until release.
	_, err1 := os.Stat(w1.Dir)
	_, err2 := os.Stat(w2.Dir)
	assert.NoError(t, err1)
	assert.NoError(t, err2)

	require.NoError(t, stack.ReleaseAll())
	assert.Equal(t, 0, stack.Len())

	_, err1 = os.Stat(w1.Dir)
	_, err2 = os.Stat(w2.Dir)
	assert.True(t, os.IsNotExist(err1))
	assert.True(t, os.IsNotExist(err2))

	// A second release is safe.
	assert.NoError(t, stack.ReleaseAll())
}

func TestStackReleaseAllToleratesManualRemoval(t *testing.T) {
	repoPath := setupTestRepo(t)
	cacheRoot := t.TempDir()

	stack := NewStack()
	w, err := stack.Acquire(repoPath, cacheRoot, "pr-20")
	require.NoError(t, err)

	// A user deleting the checkout by hand must not break batch cleanup.
	require.NoError(t, os.RemoveAll(w.Dir))
	assert.NoError(t, stack.ReleaseAll())
}

func TestWorktreeIsDetached(t *testing.T) {
	repoPath := setupTestRepo(t)
	cacheRoot := t.TempDir()

	w, err := Create(repoPath, cacheRoot, "rev-abc")
	require.NoError(t, err)
	defer func() { _ = w.Remove() }()

	out := runTestGit(t, w.Dir, "rev-parse", "--abbrev-ref", "HEAD")
	assert.Equal(t, "HEAD", strings.TrimSpace(out), "checkout should be detached")
}
