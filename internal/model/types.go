package model

import (
	"fmt"
	"strings"
)

// CheckoutStrategy selects which tree a change's workspace is built from.
//
// MERGE simulates the pull request being merged into its target branch,
// which is what CI will eventually build. COMMIT builds the change exactly
// as the author committed it, without the target branch's newer commits.
type CheckoutStrategy string

const (
	// CheckoutMerge merges the pull request into the target branch
	// before evaluating and building.
	CheckoutMerge CheckoutStrategy = "merge"

	// CheckoutCommit checks out the pull request head as authored.
	CheckoutCommit CheckoutStrategy = "commit"
)

// String returns the string representation of CheckoutStrategy.
// This method satisfies the fmt.Stringer interface.
func (c CheckoutStrategy) String() string {
	return string(c)
}

// IsValid checks whether the CheckoutStrategy value is one of the
// predefined valid strategies.
func (c CheckoutStrategy) IsValid() bool {
	switch c {
	case CheckoutMerge, CheckoutCommit:
		return true
	default:
		return false
	}
}

// ParseCheckoutStrategy converts a string to a CheckoutStrategy.
// Returns an error if the string does not match any valid strategy.
func ParseCheckoutStrategy(s string) (CheckoutStrategy, error) {
	strategy := CheckoutStrategy(strings.ToLower(s))
	if !strategy.IsValid() {
		return "", fmt.Errorf("invalid checkout strategy: %q (valid: merge, commit)", s)
	}
	return strategy, nil
}

// EvalSource selects where the list of packages affected by a change
// comes from: ofborg's published CI evaluation, or a local evaluation
// of the package tree before and after the change.
type EvalSource string

const (
	// EvalOfborg fetches the affected package list from ofborg's
	// evaluation result attached to the pull request.
	EvalOfborg EvalSource = "ofborg"

	// EvalLocal computes the affected package list by evaluating the
	// package tree locally at the base and changed revisions.
	EvalLocal EvalSource = "local"
)

// String returns the string representation of EvalSource.
func (e EvalSource) String() string {
	return string(e)
}

// IsValid checks whether the EvalSource value is one of the
// predefined valid sources.
func (e EvalSource) IsValid() bool {
	switch e {
	case EvalOfborg, EvalLocal:
		return true
	default:
		return false
	}
}

// ParseEvalSource converts a string to an EvalSource.
// Returns an error if the string does not match any valid source.
func ParseEvalSource(s string) (EvalSource, error) {
	source := EvalSource(strings.ToLower(s))
	if !source.IsValid() {
		return "", fmt.Errorf("invalid evaluation source: %q (valid: ofborg, local)", s)
	}
	return source, nil
}

// ReviewRequest bundles the configuration for building one change.
// It is constructed once per change by the orchestrators and consumed
// by the review pipeline.
type ReviewRequest struct {
	// WorktreeDir is the absolute path to the isolated checkout
	// the change is materialized into.
	WorktreeDir string

	// BuildArgs is the raw argument string passed through to nix when
	// building. It is shell-split at invocation time, not here.
	BuildArgs string

	// Token is an optional GitHub access token. Unauthenticated API
	// access works but is rate-limited.
	Token string

	// Eval selects where the affected package list comes from.
	Eval EvalSource

	// OnlyPackages restricts the build to the named package attributes.
	// An empty slice means no restriction.
	OnlyPackages []string

	// Checkout selects the tree the change is built from.
	Checkout CheckoutStrategy
}

// AllowsPackage reports whether the given package attribute passes the
// OnlyPackages filter. An empty filter allows everything.
func (r *ReviewRequest) AllowsPackage(attr string) bool {
	if len(r.OnlyPackages) == 0 {
		return true
	}
	for _, p := range r.OnlyPackages {
		if p == attr {
			return true
		}
	}
	return false
}

// ReviewResult records the outcome of one change in a batch. Successful
// changes carry the package attributes that built; failed changes carry
// only their identity. The batch report is assembled from these.
type ReviewResult struct {
	// Number is the pull request number under review.
	Number int `yaml:"number"`

	// URL is the change's originating pull request URL.
	URL string `yaml:"url"`

	// Built lists the package attributes that built successfully.
	Built []string `yaml:"built,omitempty"`

	// Failed indicates the change's build failed and it was excluded
	// from the shell handoff.
	Failed bool `yaml:"failed,omitempty"`
}

// ExitCode defines the CLI exit codes. The external contract is narrow:
// zero means every requested change parsed and built, anything else
// exits with code 1.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates a malformed input, a failed build in
	// the batch, or any other error.
	ExitGeneralError ExitCode = 1
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
