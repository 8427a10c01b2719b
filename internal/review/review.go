// Package review implements the build pipeline for a single change:
// materializing the change in its worktree, determining the affected
// packages, and building them.
//
// The pipeline distinguishes one recoverable error, *nix.BuildError,
// which the batch orchestrator converts into a per-change outcome. Any
// failing subprocess step of one change — fetching, merging (routine
// for conflicted pull requests), evaluating, building — surfaces as
// that signal. GitHub API failures and malformed input propagate and
// abort the whole invocation.
package review

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Mic92/nix-review/internal/github"
	"github.com/Mic92/nix-review/internal/model"
	"github.com/Mic92/nix-review/internal/nix"
	"github.com/Mic92/nix-review/internal/sandbox"
	"github.com/Mic92/nix-review/internal/worktree"
)

// GitHubAPI is the slice of the GitHub client the pipeline consumes.
type GitHubAPI interface {
	PullRequest(ctx context.Context, number int) (*github.PullRequest, error)
	OfborgEval(ctx context.Context, headSHA string) ([]string, error)
}

// Review drives one change through checkout, evaluation, and build.
type Review struct {
	req    model.ReviewRequest
	gh     GitHubAPI
	runner sandbox.Runner

	// git is worktree.Git in production; tests substitute a recorder.
	git func(dir string, args ...string) (string, error)
}

// New constructs a Review for one ReviewRequest. A nil gh means "talk
// to the real GitHub API with the request's token"; tests inject a
// fake instead.
func New(req model.ReviewRequest, gh GitHubAPI, runner sandbox.Runner) *Review {
	if gh == nil {
		gh = github.NewClient(req.Token)
	}
	return &Review{
		req:    req,
		gh:     gh,
		runner: runner,
		git:    worktree.Git,
	}
}

// BuildPR materializes pull request number into the worktree, determines
// the affected packages per the configured evaluation source and
// checkout strategy, builds them, and returns the attributes that built.
//
// A build failure surfaces as *nix.BuildError; the pull request's
// worktree stays usable either way.
func (r *Review) BuildPR(ctx context.Context, number int) ([]string, error) {
	buildArgs, err := nix.SplitArgs(r.req.BuildArgs)
	if err != nil {
		return nil, err
	}

	pr, err := r.gh.PullRequest(ctx, number)
	if err != nil {
		return nil, err
	}

	dir := r.req.WorktreeDir

	// Bring the target branch and the pull request head into the
	// checkout. The head commit is fetched via its pull ref so commits
	// from forks resolve too, then the checkout starts from the base.
	if _, err := r.git(dir, "fetch", "--quiet", "origin", pr.Base.Ref,
		fmt.Sprintf("pull/%d/head", number)); err != nil {
		return nil, soft(err)
	}
	if _, err := r.git(dir, "checkout", "--quiet", "--detach", "origin/"+pr.Base.Ref); err != nil {
		return nil, soft(err)
	}

	attrs, err := r.evalAndApply(ctx, dir, pr, number)
	if err != nil {
		return nil, err
	}

	attrs = r.restrict(attrs)
	if len(attrs) == 0 {
		return nil, nil
	}

	if err := nix.Build(ctx, r.runner, dir, attrs, buildArgs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// evalAndApply determines the affected packages and leaves the checkout
// at the tree the build should run against. The order matters for local
// evaluation: the base tree must be listed before the change is applied.
func (r *Review) evalAndApply(ctx context.Context, dir string, pr *github.PullRequest, number int) ([]string, error) {
	var baseline map[string]string

	useLocal := r.req.Eval == model.EvalLocal

	var ofborgAttrs []string
	if r.req.Eval == model.EvalOfborg {
		attrs, err := r.gh.OfborgEval(ctx, pr.Head.SHA)
		if err != nil {
			return nil, err
		}
		if attrs == nil {
			fmt.Fprintf(os.Stderr, "ofborg has not evaluated %s yet, falling back to local evaluation\n",
				github.PullRequestURL(number))
			useLocal = true
		}
		ofborgAttrs = attrs
	}

	if useLocal {
		listing, err := nix.ListPackages(ctx, r.runner, dir)
		if err != nil {
			return nil, soft(err)
		}
		baseline = listing
	}

	// A conflicted merge fails here; that is a per-change outcome, not
	// a reason to abort the sibling changes.
	if err := r.applyChange(dir, pr.Head.SHA); err != nil {
		return nil, soft(err)
	}

	if !useLocal {
		return ofborgAttrs, nil
	}

	changed, err := nix.ListPackages(ctx, r.runner, dir)
	if err != nil {
		return nil, soft(err)
	}
	return nix.DiffPackages(baseline, changed), nil
}

// soft converts a failed subprocess step into the recoverable
// per-change signal. Errors that already carry it pass through
// unchanged; API errors never come through here.
func soft(err error) error {
	var buildErr *nix.BuildError
	if errors.As(err, &buildErr) {
		return err
	}
	return &nix.BuildError{Err: err}
}

// applyChange moves the checkout from the base tree to the change per
// the checkout strategy: a simulated merge into the target branch, or
// the head commit exactly as authored.
func (r *Review) applyChange(dir, headSHA string) error {
	switch r.req.Checkout {
	case model.CheckoutCommit:
		_, err := r.git(dir, "checkout", "--quiet", headSHA)
		return err
	default: // merge
		_, err := r.git(dir, "merge", "--no-commit", "--no-ff", headSHA)
		return err
	}
}

// Commit reviews a local commit against a base branch: checkout the
// branch, evaluate, merge the commit, evaluate again, build the diff,
// and finish with the interactive shell handoff. Single-change mode has
// no aggregation, so a build failure here is fatal.
func (r *Review) Commit(ctx context.Context, branch, commit string) error {
	buildArgs, err := nix.SplitArgs(r.req.BuildArgs)
	if err != nil {
		return err
	}

	dir := r.req.WorktreeDir

	if _, err := r.git(dir, "checkout", "--quiet", branch); err != nil {
		return err
	}

	baseline, err := nix.ListPackages(ctx, r.runner, dir)
	if err != nil {
		return err
	}

	if _, err := r.git(dir, "merge", "--no-commit", "--no-ff", commit); err != nil {
		return err
	}

	changed, err := nix.ListPackages(ctx, r.runner, dir)
	if err != nil {
		return err
	}

	attrs := r.restrict(nix.DiffPackages(baseline, changed))
	if len(attrs) == 0 {
		fmt.Println("no packages affected by this change")
		return nil
	}

	if err := nix.Build(ctx, r.runner, dir, attrs, buildArgs); err != nil {
		return err
	}

	nixPath := "nixpkgs=" + dir
	os.Setenv("NIX_PATH", nixPath)
	return nix.Shell(ctx, r.runner, attrs, []string{"NIX_PATH=" + nixPath})
}

// restrict applies the package-name filter. An empty filter passes
// everything through untouched.
func (r *Review) restrict(attrs []string) []string {
	if len(r.req.OnlyPackages) == 0 {
		return attrs
	}
	var kept []string
	for _, attr := range attrs {
		if r.req.AllowsPackage(attr) {
			kept = append(kept, attr)
		}
	}
	if len(kept) == 0 && len(attrs) > 0 {
		fmt.Fprintf(os.Stderr, "none of the requested packages (%s) are affected by this change\n",
			strings.Join(r.req.OnlyPackages, ", "))
	}
	return kept
}
