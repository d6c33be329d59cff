package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw0"

func newFileVault(t *testing.T, opts ...Option) (*Vault, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.json")
	return New(NewFileBackend(path), opts...), path
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	v, _ := newFileVault(t)
	defer v.Close()

	require.NoError(t, v.Store(testToken))

	got, err := v.Retrieve()
	require.NoError(t, err)
	assert.True(t, got.Equal(testToken))
}

func TestRetrieveFromDiskAfterRestart(t *testing.T) {
	v, path := newFileVault(t, WithMaterial([]byte("machine-a")))
	require.NoError(t, v.Store(testToken))
	v.Close()

	// Fresh vault over the same file, same machine material.
	v2 := New(NewFileBackend(path), WithMaterial([]byte("machine-a")))
	defer v2.Close()
	got, err := v2.Retrieve()
	require.NoError(t, err)
	assert.True(t, got.Equal(testToken))
}

func TestRetrieveOnDifferentMachineFailsClosed(t *testing.T) {
	v, path := newFileVault(t, WithMaterial([]byte("machine-a")))
	require.NoError(t, v.Store(testToken))
	v.Close()

	// Same record, different derivation material: must be an explicit error,
	// never a wrong-but-plausible token.
	v2 := New(NewFileBackend(path), WithMaterial([]byte("machine-b")))
	defer v2.Close()
	_, err := v2.Retrieve()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestRetrieveMissingRecord(t *testing.T) {
	v, _ := newFileVault(t)
	defer v.Close()

	_, err := v.Retrieve()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCorruptRecordFailsClosed(t *testing.T) {
	v, path := newFileVault(t)
	require.NoError(t, v.Store(testToken))
	v.Close()

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	v2 := New(NewFileBackend(path))
	defer v2.Close()
	_, err := v2.Retrieve()
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestStoreRejectsMalformedToken(t *testing.T) {
	v, _ := newFileVault(t)
	defer v.Close()

	for _, bad := range []string{"", "hello", "123:short", "abcdefghi:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw0"} {
		assert.ErrorIs(t, v.Store(bad), ErrInvalidTokenFormat, "token %q", bad)
	}
}

func TestClearRemovesRecord(t *testing.T) {
	v, path := newFileVault(t)
	require.NoError(t, v.Store(testToken))
	require.NoError(t, v.Clear())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = v.Retrieve()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlaintextNeverOnDisk(t *testing.T) {
	v, path := newFileVault(t)
	require.NoError(t, v.Store(testToken))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), testToken)
}

func TestMaskToken(t *testing.T) {
	masked := MaskToken(testToken)
	assert.NotEqual(t, testToken, masked)
	assert.Contains(t, masked, "123")
	assert.Contains(t, masked, "***")
	assert.Equal(t, "[INVALID]", MaskToken("short"))
	assert.Equal(t, "[INVALID]", MaskToken("no-colon-here-at-all"))
}

func TestValidateTokenFormat(t *testing.T) {
	assert.True(t, ValidateTokenFormat(testToken))
	assert.False(t, ValidateTokenFormat("123456789:tooshort"))
}
