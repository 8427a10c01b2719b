// Package cli implements the cobra-based CLI commands for nix-review.
//
// Each subcommand (pr, rev, post-result, merge, approve) is defined in
// its own file within this package. This file defines the root command
// that serves as the parent for all subcommands and handles global
// flags.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mic92/nix-review/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// verbose enables detailed logging output for debugging.
	// When true, additional information about operations is printed
	// to stderr.
	verbose bool

	// sandboxMode selects where review commands run: directly on the
	// host, or inside a throwaway nix container. Empty means "use the
	// config file default".
	sandboxMode string
)

// Version, Commit, and Date are set at build time via ldflags.
// They are injected from the main package to display version
// information.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action — it only
// provides help text and global flags. Actual functionality is provided
// by subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nix-review",
		Short: "Review nixpkgs pull requests by building their affected packages",
		Long: `nix-review checks out nixpkgs pull requests (or local commits) into
isolated git worktrees, builds every package the change affects, and
drops you into a nix-shell with the build results so you can test them.

The main checkout is never touched: each change gets its own worktree
under the user cache directory, removed again when the run finishes.`,

		// SilenceUsage prevents cobra from printing usage on every
		// error. We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors
		// automatically. We format them ourselves in Execute.
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// Subcommand selection is mandatory. Without this, cobra would
		// print help and exit zero when invoked bare.
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return model.NewCLIError(model.ExitGeneralError, "a subcommand is required")
		},
	}

	// PersistentFlags are inherited by all subcommands.
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&sandboxMode, "sandbox", "",
		"Where to run builds: host or docker (default: from config)")

	// Register subcommands. Each subcommand is defined in its own file
	// and returns a *cobra.Command.
	rootCmd.AddCommand(NewPRCommand())
	rootCmd.AddCommand(NewRevCommand())
	rootCmd.AddCommand(NewPostResultCommand())
	rootCmd.AddCommand(NewMergeCommand())
	rootCmd.AddCommand(NewApproveCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by cobra commands and translates them
// into appropriate OS exit codes. CLIError types carry their own exit
// codes; other errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error as "Error: <message>" on stderr,
// appending the underlying cause when there is one.
func printError(message string, underlying error) {
	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// VerboseLog prints a message to stderr only when verbose mode is
// enabled. This is used throughout the CLI for debug/trace output that
// helps users understand what operations are being performed.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}
