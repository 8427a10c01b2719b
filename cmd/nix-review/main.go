// Package main is the entry point for the nix-review CLI.
//
// The binary reviews nixpkgs pull requests and local commits by
// building the packages they affect in isolated git worktrees. All
// functionality lives in the internal/cli package, which defines the
// cobra commands.
//
// Build-time variables (version, commit, date) are injected via
// ldflags during the release process. During development, they default
// to "dev", "none", and "unknown" respectively.
package main

import (
	"github.com/Mic92/nix-review/internal/cli"
)

// version, commit, and date are set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Inject build-time version info into the CLI package. This
	// decouples the build system (ldflags) from the CLI framework
	// (cobra), keeping main.go minimal.
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
