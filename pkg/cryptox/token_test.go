package cryptox_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.Len(t, token, 43)

	token2, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.NotEqual(t, token, token2, "tokens should be unique")

	for _, size := range []int{0, -1} {
		token, err := cryptox.GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestNewSessionToken(t *testing.T) {
	token, fingerprint, err := cryptox.NewSessionToken()
	require.NoError(t, err)
	require.True(t, cryptox.IsSessionToken(token))
	require.Equal(t, cryptox.FingerprintToken(token), fingerprint)
	require.NotEqual(t, token, fingerprint)
}

func TestIsSessionToken(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"empty", "", false},
		{"short", "abc", false},
		{"right length, bad alphabet", strings.Repeat("*", 43), false},
		{"right length, padded", strings.Repeat("A", 42) + "=", false},
		{"valid", strings.Repeat("A", 43), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, cryptox.IsSessionToken(tt.value))
		})
	}
}

func TestFingerprintToken(t *testing.T) {
	fp1a := cryptox.FingerprintToken("test-token-1")
	fp1b := cryptox.FingerprintToken("test-token-1")
	fp2 := cryptox.FingerprintToken("test-token-2")

	require.Equal(t, fp1a, fp1b, "fingerprint should be deterministic")
	require.NotEqual(t, fp1a, fp2)
	require.Len(t, fp1a, 43, "SHA-256 base64url should be 43 chars")
}

func TestLoadOrCreateSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pepper")

	first, err := cryptox.LoadOrCreateSecret(path, cryptox.TokenSize256)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := cryptox.LoadOrCreateSecret(path, cryptox.TokenSize256)
	require.NoError(t, err)
	require.Equal(t, first, second, "existing secret must be reused")
}

func TestLoadOrCreateSecret_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pepper")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	_, err := cryptox.LoadOrCreateSecret(path, cryptox.TokenSize256)
	require.Error(t, err)
}
