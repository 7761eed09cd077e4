package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"balance_service/internal/entity"
)

func newTestCipher() *Cipher {
	return NewCipher("unit-test-secret", zap.NewNop())
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher()

	for _, plaintext := range []string{
		"api-key-123",
		"",
		"value:with:colons",
		strings.Repeat("x", 100),
	} {
		encoded, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		require.Contains(t, encoded, ":")

		decoded, err := c.Decrypt(encoded)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decoded)
	}
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	c := newTestCipher()

	cases := map[string]string{
		"no separator":     "deadbeef",
		"bad iv hex":       "zzzz:deadbeef",
		"short iv":         "deadbeef:00112233445566778899aabbccddeeff",
		"bad payload hex":  "00112233445566778899aabbccddeeff:nothex",
		"odd payload size": "00112233445566778899aabbccddeeff:deadbe",
	}
	for name, encoded := range cases {
		_, err := c.Decrypt(encoded)
		assert.ErrorIs(t, err, entity.ErrDecryption, name)
	}
}

func TestDecryptFieldPassesThroughPlaintext(t *testing.T) {
	c := newTestCipher()

	assert.Equal(t, "plain-api-key", c.DecryptField("plain-api-key"))
}

func TestDecryptFieldKeepsEncodedOnFailure(t *testing.T) {
	c := newTestCipher()

	// Looks encoded but is garbage: field comes back unchanged.
	garbage := "00112233445566778899aabbccddeeff:deadbeef"
	assert.Equal(t, garbage, c.DecryptField(garbage))
}

func TestDecryptFieldRecoversEncrypted(t *testing.T) {
	c := newTestCipher()

	encoded, err := c.Encrypt("secret-credential")
	require.NoError(t, err)
	assert.Equal(t, "secret-credential", c.DecryptField(encoded))
}

func TestDifferentSecretCannotDecrypt(t *testing.T) {
	encoded, err := newTestCipher().Encrypt("secret-credential")
	require.NoError(t, err)

	other := NewCipher("another-secret", zap.NewNop())
	decoded, err := other.Decrypt(encoded)
	if err == nil {
		assert.NotEqual(t, "secret-credential", decoded)
	}
}

func TestHash(t *testing.T) {
	c := newTestCipher()

	assert.Equal(t,
		"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		c.Hash("test"))
}
