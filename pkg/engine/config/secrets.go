package config

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"

	"golang.org/x/crypto/nacl/secretbox"
)

// credentialKeyEnv names the environment variable the sealed credential
// blob's symmetric key is derived from (spec §4.1, SPEC_FULL §4.1).
const credentialKeyEnv = "MAKER_API_KEY"

// ErrNoSealingKey is returned when MAKER_API_KEY is unset at seal/open time.
var ErrNoSealingKey = fmt.Errorf("config: %s is not set", credentialKeyEnv)

// Seal encrypts plaintext provider credentials into an opaque blob keyed
// by MAKER_API_KEY, so ProviderCredentials is never logged or persisted
// in the clear (SPEC_FULL §4.1).
func Seal(plaintext string) ([]byte, error) {
	key, err := sealingKey()
	if err != nil {
		return nil, err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("config: generating nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &key)
	return sealed, nil
}

// Open reverses Seal.
func Open(sealed []byte) (string, error) {
	key, err := sealingKey()
	if err != nil {
		return "", err
	}
	if len(sealed) < 24 {
		return "", fmt.Errorf("config: sealed credential blob too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &key)
	if !ok {
		return "", fmt.Errorf("config: credential blob failed to decrypt (wrong %s?)", credentialKeyEnv)
	}
	return string(plain), nil
}

func sealingKey() ([32]byte, error) {
	var key [32]byte
	raw := os.Getenv(credentialKeyEnv)
	if raw == "" {
		return key, ErrNoSealingKey
	}
	key = sha256.Sum256([]byte(raw))
	return key, nil
}
