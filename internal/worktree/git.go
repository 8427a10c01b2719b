package worktree

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/Mic92/nix-review/internal/model"
)

// Git executes a git command against the repository (or checkout) at
// repoPath and returns its stdout. Git always runs on the host, even
// when builds run in the docker sandbox, because worktrees live on the
// host filesystem.
func Git(repoPath string, args ...string) (string, error) {
	return runGit(repoPath, args...)
}

// runGit executes a git command with the given arguments against the
// repository at repoPath.
//
// It captures stdout and stderr separately. On success (exit code 0) it
// returns the stdout output. On failure it returns a model.CLIError that
// includes the stderr output in the message for diagnostics.
//
// The repoPath parameter is passed to git via the -C flag, which causes
// git to change to that directory before doing anything else. This avoids
// mutating the process's working directory.
func runGit(repoPath string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)

	// #nosec G204 — args are constructed internally, not from user input
	cmd := exec.Command("git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(model.ExitGeneralError, message, err)
	}

	return stdout.String(), nil
}
