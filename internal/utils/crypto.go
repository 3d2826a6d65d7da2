// internal/utils/crypto.go
package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
)

// SecretBox seals short secrets (provider API keys) with AES-256-GCM.
// The key is derived from an arbitrary passphrase with SHA-256.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox creates a box from a passphrase
func NewSecretBox(passphrase string) (*SecretBox, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("secret passphrase is required")
	}

	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &SecretBox{aead: gcm}, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext as base64
func (b *SecretBox) Seal(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal
func (b *SecretBox) Open(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}

	nonceSize := b.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// MaskSecret keeps the last four characters of a secret for display
func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// provider error bodies sometimes echo the credential back
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]+`),
	regexp.MustCompile(`\b(sk|r8|AIza)[A-Za-z0-9_\-]{8,}`),
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret)=[^&\s"]+`),
}

// RedactSecrets masks credentials that may appear in provider error text
func RedactSecrets(message string) string {
	for _, pattern := range secretPatterns {
		message = pattern.ReplaceAllString(message, "[REDACTED]")
	}
	return message
}
