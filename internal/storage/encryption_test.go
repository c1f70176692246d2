package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptionRoundTrip(t *testing.T) {
	keyB64, err := GenerateKey(32)
	require.NoError(t, err)

	enc, err := NewEncryptionFromBase64(keyB64)
	require.NoError(t, err)

	plaintexts := []string{
		"sk-proj-abc123",
		"",
		"a key with spaces and unicode: привет",
	}

	for _, plaintext := range plaintexts {
		ciphertext, err := enc.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		decrypted, err := enc.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestEncryptionNonceVaries(t *testing.T) {
	keyB64, err := GenerateKey(32)
	require.NoError(t, err)

	enc, err := NewEncryptionFromBase64(keyB64)
	require.NoError(t, err)

	first, err := enc.Encrypt("same input")
	require.NoError(t, err)
	second, err := enc.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestEncryptionRejectsBadKeys(t *testing.T) {
	_, err := NewEncryption([]byte("short"))
	assert.Error(t, err)

	_, err = NewEncryptionFromBase64("")
	assert.Error(t, err)

	_, err = NewEncryptionFromBase64("not base64!!!")
	assert.Error(t, err)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	keyB64, err := GenerateKey(16)
	require.NoError(t, err)

	enc, err := NewEncryptionFromBase64(keyB64)
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("secret")
	require.NoError(t, err)

	_, err = enc.Decrypt("AAAA" + ciphertext[4:])
	assert.Error(t, err)
}
