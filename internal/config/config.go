// Package config loads the optional user configuration file that
// supplies defaults for the review flags.
//
// The file lives at <user config dir>/nix-review/config.json and is
// parsed as JSONC (JSON with comments) via github.com/tidwall/jsonc, so
// users can annotate their defaults. A missing file is not an error —
// built-in defaults apply. Command-line flags always win over the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/Mic92/nix-review/internal/model"
	"github.com/Mic92/nix-review/internal/sandbox"
)

// Config holds the user-tunable defaults. Zero values fall back to the
// built-in defaults from Default.
type Config struct {
	// Eval is the default evaluation source for `pr` (ofborg or local).
	Eval string `json:"eval"`

	// Checkout is the default checkout strategy for `pr` (merge or commit).
	Checkout string `json:"checkout"`

	// BuildArgs are default arguments passed to nix when building.
	BuildArgs string `json:"buildArgs"`

	// Packages is a default package-name filter.
	Packages []string `json:"packages"`

	// Sandbox is the default sandbox mode (host or docker).
	Sandbox string `json:"sandbox"`

	// Branch is the default base branch for `rev`.
	Branch string `json:"branch"`
}

// Default returns the built-in defaults used when no config file exists.
func Default() *Config {
	return &Config{
		Eval:     model.EvalOfborg.String(),
		Checkout: model.CheckoutMerge.String(),
		Sandbox:  sandbox.ModeHost.String(),
		Branch:   "master",
	}
}

// Path returns the location of the user configuration file.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user config directory: %w", err)
	}
	return filepath.Join(base, "nix-review", "config.json"), nil
}

// Load reads the user configuration file, falling back to defaults when
// it does not exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates a configuration file at an explicit path.
// A missing file yields the defaults; a malformed or invalid file is an
// error so typos don't silently change review behavior.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	// jsonc.ToJSON strips comments and trailing commas, producing
	// strict JSON for the standard decoder.
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	// An explicit empty string in the file would otherwise overwrite
	// the built-in default and only blow up much later, at flag
	// resolution time, with a message blaming the wrong source.
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %q: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults restores the built-in default for every enum-valued
// field left (or set) empty.
func (c *Config) applyDefaults() {
	defaults := Default()
	if c.Eval == "" {
		c.Eval = defaults.Eval
	}
	if c.Checkout == "" {
		c.Checkout = defaults.Checkout
	}
	if c.Sandbox == "" {
		c.Sandbox = defaults.Sandbox
	}
	if c.Branch == "" {
		c.Branch = defaults.Branch
	}
}

// validate checks the enum-valued fields against their domain types.
// Empty values are allowed and mean "use the built-in default".
func (c *Config) validate() error {
	if c.Eval != "" {
		if _, err := model.ParseEvalSource(c.Eval); err != nil {
			return err
		}
	}
	if c.Checkout != "" {
		if _, err := model.ParseCheckoutStrategy(c.Checkout); err != nil {
			return err
		}
	}
	if c.Sandbox != "" {
		if _, err := sandbox.ParseMode(c.Sandbox); err != nil {
			return err
		}
	}
	return nil
}
