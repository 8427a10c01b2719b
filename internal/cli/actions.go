// Package cli — actions.go implements the subcommands meant for CI use
// after a review: post-result, merge, and approve. They read the pull
// request number from a positional argument or, matching the GitHub
// Actions convention, from the PR environment variable.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Mic92/nix-review/internal/github"
	"github.com/Mic92/nix-review/internal/model"
	"github.com/Mic92/nix-review/internal/report"
	"github.com/Mic92/nix-review/internal/sandbox"
	"github.com/Mic92/nix-review/internal/secret"
)

// prNumberEnv is where GitHub Actions workflows put the pull request
// number for the action subcommands.
const prNumberEnv = "PR"

// NewPostResultCommand creates the "post-result" cobra command. It
// posts the report of the last pr run as a comment on the pull request.
func NewPostResultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "post-result [number]",
		Short: "Post the report of the last review as a pull request comment",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSandbox(func(ctx context.Context, env *sandbox.Environment, args []string) error {
			return runPostResult(ctx, env, args)
		}),
	}
}

// NewMergeCommand creates the "merge" cobra command.
func NewMergeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "merge [number]",
		Short: "Merge a pull request",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSandbox(func(ctx context.Context, _ *sandbox.Environment, args []string) error {
			return runAction(ctx, args, "merge",
				func(ctx context.Context, gh *github.Client, number int) error {
					return gh.Merge(ctx, number)
				})
		}),
	}
}

// NewApproveCommand creates the "approve" cobra command.
func NewApproveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "approve [number]",
		Short: "Approve a pull request",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSandbox(func(ctx context.Context, _ *sandbox.Environment, args []string) error {
			return runAction(ctx, args, "approve",
				func(ctx context.Context, gh *github.Client, number int) error {
					return gh.Approve(ctx, number)
				})
		}),
	}
}

func runPostResult(ctx context.Context, env *sandbox.Environment, args []string) error {
	number, gh, err := actionSetup(args)
	if err != nil {
		return err
	}

	body, err := report.ReadMarkdown(env.CacheRoot)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load report", err)
	}

	if err := gh.Comment(ctx, number, body); err != nil {
		return err
	}
	fmt.Printf("posted report to %s\n", github.PullRequestURL(number))
	return nil
}

// runAction runs one mutating pull request operation (merge, approve).
func runAction(ctx context.Context, args []string, verb string,
	op func(context.Context, *github.Client, int) error) error {

	number, gh, err := actionSetup(args)
	if err != nil {
		return err
	}
	if err := op(ctx, gh, number); err != nil {
		return err
	}
	fmt.Printf("%sd %s\n", verb, github.PullRequestURL(number))
	return nil
}

// actionSetup resolves the pull request number and an authenticated
// client. The action subcommands talk to the write API, so a token is
// mandatory here, unlike for pr.
func actionSetup(args []string) (int, *github.Client, error) {
	number, err := actionPRNumber(args)
	if err != nil {
		return 0, nil, err
	}

	token := secret.LookupToken("")
	if token == "" {
		return 0, nil, model.NewCLIError(model.ExitGeneralError,
			"a GitHub token is required; "+authHint)
	}
	return number, github.NewClient(token), nil
}

func actionPRNumber(args []string) (int, error) {
	raw := os.Getenv(prNumberEnv)
	if len(args) == 1 {
		raw = args[0]
	}
	if raw == "" {
		return 0, model.NewCLIError(model.ExitGeneralError,
			"no pull request given; pass a number or set the PR environment variable")
	}

	number, err := strconv.Atoi(raw)
	if err != nil || number <= 0 {
		return 0, model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid pull request number %q", raw))
	}
	return number, nil
}
