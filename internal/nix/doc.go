// Package nix wraps the nix command-line tools used by the review
// pipeline: package-set evaluation via nix-env, building via nix-build,
// and the interactive nix-shell handoff.
//
// All commands run through a sandbox.Runner, so the same code drives
// both the host toolchain and the docker sandbox. Build failures are a
// distinct, recoverable error type (BuildError) — the batch orchestrator
// catches exactly that and nothing else.
package nix
