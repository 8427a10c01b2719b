// Package sandbox provides the reproducible execution environment that
// wraps an entire nix-review invocation.
//
// The environment is entered once at process start, before any subcommand
// runs, and exited once at process end on every exit path. It owns the
// run's private cache root and hands out a Runner that all nix
// invocations (evaluation, builds, the interactive shell) go through.
//
// Two modes exist:
//
//   - host (default): verifies the required git and nix binaries exist
//     and runs everything directly on the host.
//   - docker: starts a labeled nixos/nix container with the cache root
//     and repository bind-mounted at identical paths, and routes nix
//     commands through `docker exec`. Container lifecycle goes through
//     the Docker Engine SDK; command execution uses the docker CLI.
//
// Git worktree management always runs on the host regardless of mode,
// since the worktrees live on the host filesystem.
package sandbox
