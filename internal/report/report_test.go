package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Mic92/nix-review/internal/model"
)

func sampleResults() []model.ReviewResult {
	return []model.ReviewResult{
		{
			Number: 42,
			URL:    "https://github.com/NixOS/nixpkgs/pull/42",
			Built:  []string{"hello", "jq"},
		},
		{
			Number: 43,
			URL:    "https://github.com/NixOS/nixpkgs/pull/43",
			Failed: true,
		},
	}
}

func TestReportCounts(t *testing.T) {
	r := New(sampleResults())

	assert.Equal(t, 1, r.Succeeded())
	assert.Equal(t, 1, r.Failed())
	assert.False(t, r.CreatedAt.IsZero())
}

func TestReportMarkdown(t *testing.T) {
	md := New(sampleResults()).Markdown()

	assert.Contains(t, md, "1 of 2 pull requests built successfully.")
	assert.Contains(t, md, "### [#42](https://github.com/NixOS/nixpkgs/pull/42) — 2 packages built")
	assert.Contains(t, md, "- hello")
	assert.Contains(t, md, "- jq")
	assert.Contains(t, md, "### [#43](https://github.com/NixOS/nixpkgs/pull/43) — failed to build")
}

func TestReportMarkdownSinglePackage(t *testing.T) {
	md := New([]model.ReviewResult{
		{
			Number: 7,
			URL:    "https://github.com/NixOS/nixpkgs/pull/7",
			Built:  []string{"hello"},
		},
	}).Markdown()

	assert.Contains(t, md, "1 package built")
	assert.NotContains(t, md, "1 packages")
}

func TestWriteAndReadBack(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")

	r := New(sampleResults())
	require.NoError(t, r.Write(dir))

	// Markdown round trip.
	md, err := ReadMarkdown(dir)
	require.NoError(t, err)
	assert.Equal(t, r.Markdown(), md)

	// YAML companion decodes back to the same results.
	data, err := os.ReadFile(filepath.Join(dir, "report.yml"))
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, r.Results, decoded.Results)
}

func TestReadMarkdownMissing(t *testing.T) {
	_, err := ReadMarkdown(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no report found")
}
