package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESGCMEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewAESGCMEncryptor([]byte("0123456789abcdef"))
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("refresh-token-value")
	require.NoError(t, err)
	assert.NotEqual(t, "refresh-token-value", ciphertext)

	plain, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token-value", plain)
}

func TestAESGCMEncryptor_DistinctNoncesPerCall(t *testing.T) {
	enc, err := NewAESGCMEncryptor([]byte("0123456789abcdef"))
	require.NoError(t, err)

	a, err := enc.Encrypt("same-plaintext")
	require.NoError(t, err)
	b, err := enc.Encrypt("same-plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh random nonce per call must vary ciphertext even for identical plaintext")
}

func TestAESGCMEncryptor_RejectsInvalidKeyLength(t *testing.T) {
	_, err := NewAESGCMEncryptor([]byte("too-short"))
	assert.Error(t, err)
}

func TestAESGCMEncryptor_DecryptRejectsTamperedCiphertext(t *testing.T) {
	enc, err := NewAESGCMEncryptor([]byte("0123456789abcdef"))
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("secret")
	require.NoError(t, err)

	tampered := []byte(ciphertext)
	tampered[len(tampered)-1] ^= 0x01
	_, err = enc.Decrypt(string(tampered))
	assert.Error(t, err)
}
