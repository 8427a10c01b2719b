// Package report renders the outcome of a review batch as a Markdown
// report plus a machine-readable YAML companion, both written into the
// run's cache root.
//
// The Markdown file is what the post-result subcommand posts back to
// the pull request; the YAML file serves scripting around nix-review.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mic92/nix-review/internal/model"
)

// File names written into the cache root.
const (
	markdownFile = "report.md"
	yamlFile     = "report.yml"
)

// Report is the aggregate outcome of one review batch.
type Report struct {
	// CreatedAt is when the batch finished.
	CreatedAt time.Time `yaml:"createdAt"`

	// Results holds one entry per requested change, in request order.
	Results []model.ReviewResult `yaml:"results"`
}

// New assembles a report from per-change results, stamped with the
// current time.
func New(results []model.ReviewResult) *Report {
	return &Report{
		CreatedAt: time.Now().UTC(),
		Results:   results,
	}
}

// Succeeded returns the number of changes that built.
func (r *Report) Succeeded() int {
	count := 0
	for _, res := range r.Results {
		if !res.Failed {
			count++
		}
	}
	return count
}

// Failed returns the number of changes whose build failed.
func (r *Report) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Markdown renders the human-readable report.
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "## `nix-review` result\n\n")
	fmt.Fprintf(&b, "%d of %d pull requests built successfully.\n", r.Succeeded(), len(r.Results))

	for _, res := range r.Results {
		b.WriteString("\n")
		if res.Failed {
			fmt.Fprintf(&b, "### [#%d](%s) — failed to build\n", res.Number, res.URL)
			continue
		}

		fmt.Fprintf(&b, "### [#%d](%s) — %s built\n", res.Number, res.URL,
			pluralize(len(res.Built), "package"))
		for _, attr := range res.Built {
			fmt.Fprintf(&b, "- %s\n", attr)
		}
	}

	return b.String()
}

// Write renders the report into dir as report.md and report.yml.
func (r *Report) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory %q: %w", dir, err)
	}

	if err := os.WriteFile(filepath.Join(dir, markdownFile), []byte(r.Markdown()), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", markdownFile, err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, yamlFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", yamlFile, err)
	}
	return nil
}

// ReadMarkdown loads a previously written Markdown report from dir.
// Used by the post-result subcommand.
func ReadMarkdown(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, markdownFile))
	if err != nil {
		return "", fmt.Errorf("no report found in %q (run `nix-review pr` first): %w", dir, err)
	}
	return string(data), nil
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
