// Package cli — env.go wires the process-wide sandboxed environment
// around subcommand dispatch. Every subcommand handler is wrapped in
// withSandbox, so the environment is entered exactly once per
// invocation, before any handler work, and torn down on every exit
// path.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mic92/nix-review/internal/config"
	"github.com/Mic92/nix-review/internal/model"
	"github.com/Mic92/nix-review/internal/sandbox"
	"github.com/Mic92/nix-review/internal/worktree"
)

// sandboxHandler is a subcommand handler running inside the entered
// environment.
type sandboxHandler func(ctx context.Context, env *sandbox.Environment, args []string) error

// withSandbox adapts a sandboxHandler into a cobra RunE: it resolves
// the sandbox mode, enters the environment, runs the handler, and
// guarantees teardown whether the handler succeeds or fails.
func withSandbox(run sandboxHandler) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		mode, err := resolveSandboxMode()
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		// Best-effort repository root for the container bind mount.
		// Subcommands that need a checkout resolve it themselves and
		// fail properly when there is none.
		repoRoot := ""
		if cwd, err := os.Getwd(); err == nil {
			if root, rootErr := worktree.RepoRoot(cwd); rootErr == nil {
				repoRoot = root
			}
		}

		env, err := sandbox.Enter(ctx, mode, repoRoot)
		if err != nil {
			return err
		}
		defer func() { _ = env.Exit(ctx) }()

		return run(ctx, env, args)
	}
}

// resolveSandboxMode merges the persistent --sandbox flag with the
// config file default.
func resolveSandboxMode() (sandbox.Mode, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "invalid configuration", err)
	}

	mode, err := sandbox.ParseMode(pick(sandboxMode, cfg.Sandbox))
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "invalid --sandbox value", err)
	}
	VerboseLog("sandbox mode: %s", mode)
	return mode, nil
}
