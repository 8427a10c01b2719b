package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)

	assert.Equal(t, "ofborg", cfg.Eval)
	assert.Equal(t, "merge", cfg.Checkout)
	assert.Equal(t, "host", cfg.Sandbox)
	assert.Equal(t, "master", cfg.Branch)
	assert.Empty(t, cfg.BuildArgs)
	assert.Empty(t, cfg.Packages)
}

func TestLoadFromParsesJSONC(t *testing.T) {
	path := writeConfig(t, `{
		// evaluate locally, my connection to ofborg is flaky
		"eval": "local",
		"checkout": "commit",
		"buildArgs": "--option sandbox true",
		"packages": ["hello", "jq"], // trailing comma tolerated below
		"sandbox": "docker",
	}`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Eval)
	assert.Equal(t, "commit", cfg.Checkout)
	assert.Equal(t, "--option sandbox true", cfg.BuildArgs)
	assert.Equal(t, []string{"hello", "jq"}, cfg.Packages)
	assert.Equal(t, "docker", cfg.Sandbox)
}

func TestLoadFromPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `{"buildArgs": "-j4"}`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "-j4", cfg.BuildArgs)
	assert.Equal(t, "ofborg", cfg.Eval, "unset fields keep their defaults")
	assert.Equal(t, "merge", cfg.Checkout)
}

func TestLoadFromEmptyValuesKeepDefaults(t *testing.T) {
	// An explicit empty string must not shadow the built-in default:
	// it would otherwise surface much later as a confusing flag error.
	path := writeConfig(t, `{"eval": "", "checkout": "", "sandbox": "", "branch": ""}`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "ofborg", cfg.Eval)
	assert.Equal(t, "merge", cfg.Checkout)
	assert.Equal(t, "host", cfg.Sandbox)
	assert.Equal(t, "master", cfg.Branch)
}

func TestLoadFromRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad eval", content: `{"eval": "hydra"}`},
		{name: "bad checkout", content: `{"checkout": "rebase"}`},
		{name: "bad sandbox", content: `{"sandbox": "chroot"}`},
		{name: "not json", content: `eval = "local"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}
