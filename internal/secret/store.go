// Package secret stores the GitHub access token in the operating
// system keyring, so it does not have to live in shell history or a
// plaintext config file.
//
// Token resolution order for review commands: the --token flag, the
// GITHUB_OAUTH_TOKEN and GITHUB_TOKEN environment variables, then the
// keyring. Every step is optional — unauthenticated API access works,
// just rate-limited.
package secret

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const serviceName = "nix-review"

// tokenKey is the keyring item the GitHub token is stored under.
const tokenKey = "github-token"

// Environment variables consulted before the keyring. GITHUB_OAUTH_TOKEN
// is the historical nix-review variable; GITHUB_TOKEN is what CI systems
// and the GitHub-actions subcommands use.
const (
	envToken        = "GITHUB_OAUTH_TOKEN"
	envActionsToken = "GITHUB_TOKEN"
)

// Store wraps access to the configured keyring backend.
type Store struct {
	kr keyring.Keyring
}

// Open initialises the keyring-backed secret store. The encrypted file
// backend is permitted as a fallback for headless systems, rooted under
// the user config directory.
func Open() (*Store, error) {
	fileDir := ""
	if base, err := os.UserConfigDir(); err == nil {
		fileDir = filepath.Join(base, serviceName, "keyring")
	}

	kr, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		FileDir:     fileDir,
		FilePasswordFunc: func(prompt string) (string, error) {
			return keyring.TerminalPrompt(prompt)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return &Store{kr: kr}, nil
}

// NewStore wraps an existing keyring. Tests use this with an in-memory
// array keyring.
func NewStore(kr keyring.Keyring) *Store {
	return &Store{kr: kr}
}

// Token retrieves the stored GitHub token. Returns os.ErrNotExist when
// no token has been stored.
func (s *Store) Token() (string, error) {
	if s == nil || s.kr == nil {
		return "", errors.New("secret store not initialized")
	}

	item, err := s.kr.Get(tokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", os.ErrNotExist
		}
		return "", err
	}
	return string(item.Data), nil
}

// SetToken stores the GitHub token.
func (s *Store) SetToken(token string) error {
	if s == nil || s.kr == nil {
		return errors.New("secret store not initialized")
	}

	return s.kr.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(token),
		Label: "nix-review GitHub token",
	})
}

// LookupToken resolves the effective GitHub token: an explicit flag
// value wins, then the environment, then the keyring. An empty result
// means unauthenticated access.
func LookupToken(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if token := os.Getenv(envToken); token != "" {
		return token
	}
	if token := os.Getenv(envActionsToken); token != "" {
		return token
	}

	store, err := Open()
	if err != nil {
		return ""
	}
	token, err := store.Token()
	if err != nil {
		return ""
	}
	return token
}
