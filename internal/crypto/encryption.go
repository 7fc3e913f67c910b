// Package crypto seals the passwords of saved server profiles before they
// reach the local database. Profiles are encrypted with AES-256-GCM under a
// single master key held in the OS keychain; CASETRACK_MASTER_KEY overrides
// the keychain for headless and test runs.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
)

const masterKeyEnv = "CASETRACK_MASTER_KEY"

// ErrNotInitialized is returned when sealing or opening is attempted before
// InitEncryption has installed a key.
var ErrNotInitialized = errors.New("credential encryption not initialized")

// aead is the cipher installed by InitEncryption. Built once; every
// seal/open call reuses it.
var aead cipher.AEAD

// InitEncryption installs the master key. The CASETRACK_MASTER_KEY
// environment variable wins over the keychain; without either, a fresh key
// is generated and stored in the keychain.
func InitEncryption() error {
	if raw := os.Getenv(masterKeyEnv); raw != "" {
		return installKey(deriveKey(raw))
	}

	key, err := loadOrCreateKey()
	if err != nil {
		return fmt.Errorf("failed to obtain master key: %w", err)
	}
	return installKey(key)
}

// IsInitialized reports whether a master key has been installed
func IsInitialized() bool {
	return aead != nil
}

// EncryptPassword seals a profile password for storage. The output is
// base64, nonce first.
func EncryptPassword(password string) (string, error) {
	if aead == nil {
		return "", ErrNotInitialized
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(password), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptPassword opens a password sealed by EncryptPassword
func DecryptPassword(sealedB64 string) (string, error) {
	if aead == nil {
		return "", ErrNotInitialized
	}

	sealed, err := base64.StdEncoding.DecodeString(sealedB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode stored credential: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return "", errors.New("stored credential is truncated")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	password, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(password), nil
}

// installKey builds the AEAD for key and makes it the active cipher
func installKey(key []byte) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}
	aead = gcm
	return nil
}

// deriveKey turns the environment override into 32 key bytes: a base64
// string decoding to exactly 32 bytes is used as-is, anything else is
// hashed.
func deriveKey(raw string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded
	}
	sum := sha256.Sum256([]byte(raw))
	return sum[:]
}
