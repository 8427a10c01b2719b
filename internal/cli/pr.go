// Package cli — pr.go implements the "nix-review pr" command, the
// primary user-facing operation.
//
// Orchestration steps (inside the environment entered by withSandbox):
//  1. Resolve options (flags over config file) and parse the pull
//     request numbers and ranges
//  2. For each pull request: acquire a worktree, fetch and apply the
//     change, evaluate the affected packages, build them
//  3. Write the batch report into the cache root
//  4. Hand each successful change to an interactive nix-shell, one
//     after the other
//  5. Release every worktree, newest first, and exit non-zero if any
//     change failed
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mic92/nix-review/internal/github"
	"github.com/Mic92/nix-review/internal/model"
	"github.com/Mic92/nix-review/internal/nix"
	"github.com/Mic92/nix-review/internal/report"
	"github.com/Mic92/nix-review/internal/review"
	"github.com/Mic92/nix-review/internal/sandbox"
	"github.com/Mic92/nix-review/internal/worktree"
)

// NewPRCommand creates the "pr" cobra command.
func NewPRCommand() *cobra.Command {
	flags := &reviewFlags{}

	cmd := &cobra.Command{
		Use:   "pr <number|first-last>...",
		Short: "Build and test one or more nixpkgs pull requests",
		Long: `Build the packages affected by each given pull request in its own
isolated worktree, then open an interactive nix-shell per successful
change with the build results available.

Ranges are half-open: "100-105" reviews 100, 101, 102, 103 and 104.

Examples:
  nix-review pr 98734
  nix-review pr 98734 98735
  nix-review pr 98730-98740
  nix-review pr --eval local --checkout commit 98734
  nix-review pr -p jq -p hello 98734`,

		Args: cobra.MinimumNArgs(1),

		RunE: withSandbox(func(ctx context.Context, env *sandbox.Environment, args []string) error {
			return runPR(ctx, env, args, flags)
		}),
	}

	addReviewFlags(cmd, flags)
	cmd.Flags().StringVar(&flags.eval, "eval", "",
		"Where to get the affected package list: ofborg or local (default: from config)")
	cmd.Flags().StringVarP(&flags.checkout, "checkout", "c", "",
		"Tree to build: merge (base plus change) or commit (change as-is) (default: from config)")

	return cmd
}

// prOutcome pairs one successfully built change with the worktree its
// shell session runs in.
type prOutcome struct {
	number int
	attrs  []string
	wt     *worktree.Worktree
}

// runPR is the main orchestration function for the pr command. It runs
// inside the already-entered sandboxed environment.
func runPR(ctx context.Context, env *sandbox.Environment, args []string, flags *reviewFlags) error {
	opts, err := resolveOptions(flags)
	if err != nil {
		return err
	}

	// Parse everything up front: a malformed argument must abort
	// before any worktree work begins.
	numbers, err := parsePullRequestNumbers(args)
	if err != nil {
		return err
	}
	if len(numbers) == 0 {
		return model.NewCLIError(model.ExitGeneralError,
			"the given ranges contain no pull requests")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}
	repoRoot, err := worktree.RepoRoot(cwd)
	if err != nil {
		return err
	}
	VerboseLog("nixpkgs checkout: %s", repoRoot)

	// Worktrees live until the whole batch is done: a shell session for
	// one change may want to compare against another change's store
	// paths. ReleaseAll removes them newest first.
	stack := worktree.NewStack()
	defer func() {
		if err := stack.ReleaseAll(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}()

	results := make([]model.ReviewResult, 0, len(numbers))
	var outcomes []prOutcome

	for _, number := range numbers {
		wt, err := stack.Acquire(repoRoot, env.CacheRoot, fmt.Sprintf("pr-%d", number))
		if err != nil {
			return err
		}
		VerboseLog("reviewing pull request %d in %s", number, wt.Dir)

		r := review.New(opts.request(wt.Dir), nil, env.Runner())
		attrs, err := r.BuildPR(ctx, number)
		if err != nil {
			// A failed subprocess step (merge, evaluation, build) is a
			// per-change outcome, everything else aborts the batch.
			var buildErr *nix.BuildError
			if !errors.As(err, &buildErr) {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s failed to build\n", github.PullRequestURL(number))
			VerboseLog("build failure: %v", buildErr)
			results = append(results, model.ReviewResult{
				Number: number,
				URL:    github.PullRequestURL(number),
				Failed: true,
			})
			continue
		}

		results = append(results, model.ReviewResult{
			Number: number,
			URL:    github.PullRequestURL(number),
			Built:  attrs,
		})
		outcomes = append(outcomes, prOutcome{number: number, attrs: attrs, wt: wt})
	}

	rep := report.New(results)
	if err := rep.Write(env.CacheRoot); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	// Shell sessions run strictly one after the other; exiting one
	// starts the next. NIX_PATH points the session at the change's
	// worktree so nix commands inside it resolve against it.
	for _, out := range outcomes {
		fmt.Println(github.PullRequestURL(out.number))
		nixPath := out.wt.NixPath()
		os.Setenv("NIX_PATH", nixPath)
		if err := nix.Shell(ctx, env.Runner(), out.attrs, []string{"NIX_PATH=" + nixPath}); err != nil {
			return err
		}
	}

	if rep.Failed() > 0 {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("%d of %d pull requests failed to build", rep.Failed(), len(results)))
	}
	return nil
}
