package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/Mic92/nix-review/internal/model"
)

// Runner executes external commands for the review pipeline. The host
// environment runs them directly; the docker environment routes them
// through `docker exec` into the sandbox container.
//
// Both methods block until the command completes — review execution is
// strictly sequential, so there is no notion of a detached command.
type Runner interface {
	// Run executes a command in dir with extraEnv appended to the
	// inherited environment and returns its stdout. A non-zero exit
	// returns an error carrying the trimmed stderr output.
	Run(ctx context.Context, dir string, extraEnv []string, name string, args ...string) (string, error)

	// Interactive executes a command in dir with the process's own
	// stdin, stdout, and stderr attached. Used for the shell handoff.
	Interactive(ctx context.Context, dir string, extraEnv []string, name string, args ...string) error
}

// hostRunner executes commands directly on the host.
type hostRunner struct{}

func (hostRunner) Run(ctx context.Context, dir string, extraEnv []string, name string, args ...string) (string, error) {
	// #nosec G204 — args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extraEnv...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", commandError(name, args, stderr.String(), err)
	}
	return stdout.String(), nil
}

func (hostRunner) Interactive(ctx context.Context, dir string, extraEnv []string, name string, args ...string) error {
	// #nosec G204 — args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("%s %s failed", name, strings.Join(args, " ")), err)
	}
	return nil
}

// dockerRunner executes commands inside the sandbox container via the
// docker CLI. The container mounts the cache root and repository at
// their host paths, so working directories translate one to one.
type dockerRunner struct {
	containerID string
}

func (r dockerRunner) Run(ctx context.Context, dir string, extraEnv []string, name string, args ...string) (string, error) {
	execArgs := r.execArgs(dir, extraEnv, false)
	execArgs = append(execArgs, name)
	execArgs = append(execArgs, args...)

	cmd := exec.CommandContext(ctx, "docker", execArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", commandError(name, args, stderr.String(), err)
	}
	return stdout.String(), nil
}

func (r dockerRunner) Interactive(ctx context.Context, dir string, extraEnv []string, name string, args ...string) error {
	execArgs := r.execArgs(dir, extraEnv, true)
	execArgs = append(execArgs, name)
	execArgs = append(execArgs, args...)

	cmd := exec.CommandContext(ctx, "docker", execArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("%s %s failed in sandbox container", name, strings.Join(args, " ")), err)
	}
	return nil
}

// execArgs builds the "docker exec" argument prefix: working directory,
// environment flags, and the target container.
func (r dockerRunner) execArgs(dir string, extraEnv []string, interactive bool) []string {
	args := []string{"exec"}
	if interactive {
		args = append(args, "-it")
	}
	if dir != "" {
		args = append(args, "-w", dir)
	}
	for _, kv := range extraEnv {
		args = append(args, "-e", kv)
	}
	return append(args, r.containerID)
}

// commandError converts a failed command into a CLIError whose message
// includes the command line and the trimmed stderr output.
func commandError(name string, args []string, stderr string, err error) error {
	message := fmt.Sprintf("%s %s failed", name, strings.Join(args, " "))
	if trimmed := strings.TrimSpace(stderr); trimmed != "" {
		message = fmt.Sprintf("%s: %s", message, trimmed)
	}
	return model.WrapCLIError(model.ExitGeneralError, message, err)
}
