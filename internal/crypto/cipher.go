package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"balance_service/internal/entity"
)

// Cipher decrypts API credentials stored as "hex(iv):hex(payload)" using
// AES-256-CBC. The key is the SHA-256 digest of the UTF-8 secret; there is no
// salted KDF, one fixed key per secret.
type Cipher struct {
	key    [32]byte
	logger *zap.Logger
}

// NewCipher derives the AES key from the configured secret.
func NewCipher(secret string, logger *zap.Logger) *Cipher {
	return &Cipher{
		key:    sha256.Sum256([]byte(secret)),
		logger: logger.Named("Cipher"),
	}
}

// Decrypt recovers the plaintext of an "iv:payload" encoded field. The
// payload part is rejoined before hex-decoding in case it contains colons.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) < 2 {
		return "", fmt.Errorf("%w: missing iv separator", entity.ErrDecryption)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: invalid iv hex: %v", entity.ErrDecryption, err)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: iv must be %d bytes, got %d", entity.ErrDecryption, aes.BlockSize, len(iv))
	}

	payload, err := hex.DecodeString(strings.Join(parts[1:], ":"))
	if err != nil {
		return "", fmt.Errorf("%w: invalid payload hex: %v", entity.ErrDecryption, err)
	}
	if len(payload) == 0 || len(payload)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: payload length %d is not a multiple of the block size", entity.ErrDecryption, len(payload))
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrDecryption, err)
	}

	plaintext := make([]byte, len(payload))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, payload)

	unpadded, err := pkcs7Unpad(plaintext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrDecryption, err)
	}
	return string(unpadded), nil
}

// DecryptField decrypts a stored credential field. A field without a colon is
// treated as already-plaintext and passed through unchanged. A decryption
// failure is logged as a warning and the field is returned in its encoded
// form; account processing continues.
func (c *Cipher) DecryptField(field string) string {
	if !strings.Contains(field, ":") {
		return field
	}
	plaintext, err := c.Decrypt(field)
	if err != nil {
		c.logger.Warn("Failed to decrypt credential field, leaving it encoded", zap.Error(err))
		return field
	}
	return plaintext
}

// Encrypt is the inverse of Decrypt: it produces "hex(iv):hex(payload)" with
// a random IV and PKCS#7 padding. Used by credential provisioning tooling and
// round-trip tests.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	payload := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(payload, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(payload), nil
}

// Hash returns the SHA-256 hex digest of an API key. One-way identity hashing
// for lookups, not a security boundary.
func (c *Cipher) Hash(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
