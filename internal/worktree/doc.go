// Package worktree provides the isolated, disposable checkouts that each
// change under review is materialized into.
//
// Every checkout is a detached Git worktree of the invoking nixpkgs clone,
// created under the user cache directory and removed when the review
// command finishes. The Stack type holds all worktrees acquired during a
// batch and releases them in reverse acquisition order in one step, so a
// worktree stays valid from its build until the batch's final shell
// handoff.
//
// Design decisions:
//   - We shell out to `git` rather than using a Go Git library because
//     worktree operations require full Git CLI compatibility.
//   - Worktrees are created detached; the review pipeline performs any
//     fetching and branch switching inside the checkout itself.
package worktree
