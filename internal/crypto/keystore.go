package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"runtime"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "casetrack-desktop"
	keyringEntry   = "profile-master-key"
)

// loadOrCreateKey returns the 32-byte master key from the OS keychain,
// generating and storing one on first use. The key is kept base64-encoded
// in the keychain entry.
func loadOrCreateKey() ([]byte, error) {
	stored, err := keyring.Get(keyringService, keyringEntry)
	if err == nil && stored != "" {
		key, decErr := base64.StdEncoding.DecodeString(stored)
		if decErr != nil || len(key) != 32 {
			return nil, errors.New("stored master key is corrupt, delete it from the keychain to reset")
		}
		return key, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		log.Printf("WARNING: keychain lookup failed: %v", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}

	if err := keyring.Set(keyringService, keyringEntry, base64.StdEncoding.EncodeToString(key)); err != nil {
		// Linux hosts without a keyring daemon land here; profiles saved in
		// this session become unreadable after a restart.
		log.Printf("WARNING: failed to store master key in keychain: %v", err)
		if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
			return nil, fmt.Errorf("keychain storage required on %s: %w", runtime.GOOS, err)
		}
	}

	return key, nil
}

// DeleteKey removes the master key from the keychain. Existing profiles
// become undecryptable.
func DeleteKey() error {
	return keyring.Delete(keyringService, keyringEntry)
}
