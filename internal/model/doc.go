// Package model defines the domain types and value objects for the
// nix-review CLI.
//
// This package contains pure data structures with no external dependencies:
// the checkout and evaluation enumerations, the per-change ReviewRequest
// bundle, and the batch outcome type shared between the orchestrator and
// the report writer.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
