package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Mic92/nix-review/internal/model"
)

// Mode selects how review commands are executed.
type Mode string

const (
	// ModeHost runs git and nix directly on the host.
	ModeHost Mode = "host"

	// ModeDocker runs nix inside a disposable nixos/nix container.
	ModeDocker Mode = "docker"
)

// String returns the string representation of Mode.
func (m Mode) String() string {
	return string(m)
}

// IsValid checks whether the Mode value is one of the predefined modes.
func (m Mode) IsValid() bool {
	switch m {
	case ModeHost, ModeDocker:
		return true
	default:
		return false
	}
}

// ParseMode converts a string to a Mode.
// Returns an error if the string does not match any valid mode.
func ParseMode(s string) (Mode, error) {
	mode := Mode(strings.ToLower(s))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid sandbox mode: %q (valid: host, docker)", s)
	}
	return mode, nil
}

// requiredBinaries are the host tools a review cannot run without in
// host mode. Git is needed in both modes for worktree management.
var requiredBinaries = []string{"git", "nix-build", "nix-shell", "nix-env"}

// Environment is the process-wide sandboxed execution scope. It is
// entered exactly once, wrapping the entire dispatch-and-execute
// sequence, and Exit tears it down on every exit path.
type Environment struct {
	// CacheRoot is the run-private directory worktrees and reports
	// are created under.
	CacheRoot string

	mode   Mode
	runner Runner
	docker *dockerSandbox
	exited bool
}

// Enter prepares the sandboxed environment: it creates the cache root
// and, depending on mode, either verifies the host toolchain or starts
// the sandbox container. repoRoot is bind-mounted into the container in
// docker mode so worktree checkouts resolve inside it.
func Enter(ctx context.Context, mode Mode, repoRoot string) (*Environment, error) {
	cacheRoot, err := defaultCacheRoot()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to create cache directory %q", cacheRoot), err)
	}

	env := &Environment{CacheRoot: cacheRoot, mode: mode}

	switch mode {
	case ModeHost:
		if _, err := exec.LookPath("git"); err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError,
				"git not found in PATH", err)
		}
		for _, bin := range requiredBinaries {
			if _, err := exec.LookPath(bin); err != nil {
				return nil, model.WrapCLIError(model.ExitGeneralError,
					fmt.Sprintf("%s not found in PATH — is nix installed?", bin), err)
			}
		}
		env.runner = hostRunner{}

	case ModeDocker:
		ds, err := startDockerSandbox(ctx, cacheRoot, repoRoot)
		if err != nil {
			return nil, err
		}
		env.docker = ds
		env.runner = dockerRunner{containerID: ds.containerID}

	default:
		return nil, model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("unsupported sandbox mode %q", mode))
	}

	return env, nil
}

// Runner returns the command runner for the active mode.
func (e *Environment) Runner() Runner {
	return e.runner
}

// Exit tears the environment down. In docker mode the sandbox container
// is force-removed. Exit is idempotent so it can be deferred alongside
// explicit error-path calls.
func (e *Environment) Exit(ctx context.Context) error {
	if e == nil || e.exited {
		return nil
	}
	e.exited = true

	if e.docker != nil {
		return e.docker.remove(ctx)
	}
	return nil
}

// defaultCacheRoot places run state under the user cache directory,
// e.g. ~/.cache/nix-review on Linux. Reports from the previous run are
// read back from here as well.
func defaultCacheRoot() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError,
			"failed to determine user cache directory", err)
	}
	return filepath.Join(base, "nix-review"), nil
}
