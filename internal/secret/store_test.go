package secret

import (
	"os"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(keyring.NewArrayKeyring(nil))

	_, err := store.Token()
	assert.ErrorIs(t, err, os.ErrNotExist, "empty store has no token")

	require.NoError(t, store.SetToken("ghp_secret"))

	token, err := store.Token()
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", token)
}

func TestStoreNilSafety(t *testing.T) {
	var store *Store
	_, err := store.Token()
	assert.Error(t, err)
	assert.Error(t, store.SetToken("x"))
}

func TestLookupTokenPrecedence(t *testing.T) {
	t.Run("flag wins over environment", func(t *testing.T) {
		t.Setenv(envToken, "from-env")
		assert.Equal(t, "from-flag", LookupToken("from-flag"))
	})

	t.Run("oauth env wins over actions env", func(t *testing.T) {
		t.Setenv(envToken, "oauth")
		t.Setenv(envActionsToken, "actions")
		assert.Equal(t, "oauth", LookupToken(""))
	})

	t.Run("actions env as fallback", func(t *testing.T) {
		t.Setenv(envToken, "")
		t.Setenv(envActionsToken, "actions")
		assert.Equal(t, "actions", LookupToken(""))
	})
}
