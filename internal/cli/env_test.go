package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mic92/nix-review/internal/sandbox"
)

// setSandboxFlag overrides the persistent --sandbox flag value for the
// duration of one test.
func setSandboxFlag(t *testing.T, value string) {
	t.Helper()
	old := sandboxMode
	sandboxMode = value
	t.Cleanup(func() { sandboxMode = old })
}

func TestResolveSandboxMode(t *testing.T) {
	// Point the config lookup at an empty directory so the user's real
	// config file cannot leak into the test.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	t.Run("defaults to host", func(t *testing.T) {
		setSandboxFlag(t, "")

		mode, err := resolveSandboxMode()
		require.NoError(t, err)
		assert.Equal(t, sandbox.ModeHost, mode)
	})

	t.Run("flag overrides default", func(t *testing.T) {
		setSandboxFlag(t, "docker")

		mode, err := resolveSandboxMode()
		require.NoError(t, err)
		assert.Equal(t, sandbox.ModeDocker, mode)
	})

	t.Run("invalid flag value is rejected", func(t *testing.T) {
		setSandboxFlag(t, "chroot")

		_, err := resolveSandboxMode()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid --sandbox value")
	})
}
