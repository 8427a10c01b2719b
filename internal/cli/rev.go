// Package cli — rev.go implements the "nix-review rev" command for
// reviewing a local commit instead of a pull request.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mic92/nix-review/internal/model"
	"github.com/Mic92/nix-review/internal/review"
	"github.com/Mic92/nix-review/internal/sandbox"
	"github.com/Mic92/nix-review/internal/worktree"
)

// NewRevCommand creates the "rev" cobra command.
func NewRevCommand() *cobra.Command {
	flags := &reviewFlags{}
	var branch string

	cmd := &cobra.Command{
		Use:   "rev <commit>",
		Short: "Build and test a local commit against a base branch",
		Long: `Merge a local commit onto the base branch in an isolated worktree,
build every package the commit affects, and open an interactive
nix-shell with the build results.

Examples:
  nix-review rev HEAD
  nix-review rev 55adb0c
  nix-review rev --branch staging HEAD`,

		Args: cobra.ExactArgs(1),

		RunE: withSandbox(func(ctx context.Context, env *sandbox.Environment, args []string) error {
			return runRev(ctx, env, args[0], branch, flags)
		}),
	}

	addReviewFlags(cmd, flags)
	cmd.Flags().StringVarP(&branch, "branch", "b", "",
		"Base branch to merge the commit onto (default: from config)")

	return cmd
}

// runRev is the main orchestration function for the rev command. It
// runs inside the already-entered sandboxed environment.
func runRev(ctx context.Context, env *sandbox.Environment, ref, branch string, flags *reviewFlags) error {
	opts, err := resolveOptions(flags)
	if err != nil {
		return err
	}
	branch = pick(branch, opts.branch)

	cwd, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}
	repoRoot, err := worktree.RepoRoot(cwd)
	if err != nil {
		return err
	}

	// Resolve the ref in the main checkout before any worktree exists:
	// an unknown commit must abort before workspace acquisition.
	commit, err := worktree.ResolveCommit(repoRoot, ref)
	if err != nil {
		return err
	}
	VerboseLog("reviewing commit %s against %s", commit, branch)

	wt, err := worktree.Create(repoRoot, env.CacheRoot, fmt.Sprintf("rev-%.8s", commit))
	if err != nil {
		return err
	}
	defer func() {
		if err := wt.Remove(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}()

	r := review.New(opts.request(wt.Dir), nil, env.Runner())
	return r.Commit(ctx, branch, commit)
}
