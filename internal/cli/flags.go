// Package cli — flags.go defines the flag surface shared by the pr and
// rev commands and its resolution against the user config file. Flags
// win over config values, config values over built-in defaults.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/Mic92/nix-review/internal/config"
	"github.com/Mic92/nix-review/internal/model"
	"github.com/Mic92/nix-review/internal/secret"
)

// reviewFlags holds the flag values common to pr and rev. Empty strings
// and nil slices mean "not set on the command line" and defer to the
// config file.
type reviewFlags struct {
	buildArgs string   // --build-args: extra arguments for nix-build
	packages  []string // -p/--package: restrict builds to these attributes
	eval      string   // --eval: ofborg or local (pr only)
	checkout  string   // --checkout: merge or commit (pr only)
	token     string   // --token: GitHub access token
}

// addReviewFlags registers the flags shared by pr and rev.
func addReviewFlags(cmd *cobra.Command, flags *reviewFlags) {
	cmd.Flags().StringVar(&flags.buildArgs, "build-args", "",
		"Extra arguments passed to nix when building")
	cmd.Flags().StringSliceVarP(&flags.packages, "package", "p", nil,
		"Build only this package attribute (repeatable)")
	cmd.Flags().StringVar(&flags.token, "token", "",
		"GitHub access token (default: environment, then keyring)")
}

// reviewOptions is the fully resolved configuration one invocation runs
// with, after merging flags and the config file. The sandbox mode is
// resolved separately, before dispatch, by withSandbox.
type reviewOptions struct {
	buildArgs string
	packages  []string
	eval      model.EvalSource
	checkout  model.CheckoutStrategy
	token     string
	branch    string
}

// resolveOptions loads the user config and merges it with the given
// flag values. Invalid enum values (from either source) are rejected
// here, before any worktree is created.
func resolveOptions(flags *reviewFlags) (*reviewOptions, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid configuration", err)
	}

	opts := &reviewOptions{
		buildArgs: pick(flags.buildArgs, cfg.BuildArgs),
		packages:  flags.packages,
		token:     secret.LookupToken(flags.token),
		branch:    cfg.Branch,
	}
	if len(opts.packages) == 0 {
		opts.packages = cfg.Packages
	}

	opts.eval, err = model.ParseEvalSource(pick(flags.eval, cfg.Eval))
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid --eval value", err)
	}

	opts.checkout, err = model.ParseCheckoutStrategy(pick(flags.checkout, cfg.Checkout))
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid --checkout value", err)
	}

	VerboseLog("options: eval=%s checkout=%s packages=%v",
		opts.eval, opts.checkout, opts.packages)
	return opts, nil
}

// request builds the per-change ReviewRequest from the resolved
// options.
func (o *reviewOptions) request(worktreeDir string) model.ReviewRequest {
	return model.ReviewRequest{
		WorktreeDir:  worktreeDir,
		BuildArgs:    o.buildArgs,
		Token:        o.token,
		Eval:         o.eval,
		OnlyPackages: o.packages,
		Checkout:     o.checkout,
	}
}

// pick returns the flag value when set, otherwise the config value.
func pick(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

// authHint names the token sources for error messages.
const authHint = "set --token, the GITHUB_TOKEN environment variable, or store a token in the keyring"
