package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Keyring resolves device API keys to device identities.
//
// Keys are held as lowercase hex SHA-256 digests so the raw key never
// lives in memory longer than a single verification. Lookups compare
// against every entry in constant time to avoid leaking which digests
// exist through timing.
type Keyring struct {
	// hashes maps hex(sha256(raw key)) -> device identity.
	hashes map[string]string
}

// NewKeyring creates a keyring from a digest-to-identity map, typically
// the security.api_keys.key_hashes section of the config file.
func NewKeyring(keyHashes map[string]string) *Keyring {
	hashes := make(map[string]string, len(keyHashes))
	for digest, deviceID := range keyHashes {
		hashes[strings.ToLower(digest)] = deviceID
	}
	return &Keyring{hashes: hashes}
}

// Verify checks a raw API key and returns the device identity it
// authenticates. Returns ErrUnknownAPIKey when no entry matches.
func (k *Keyring) Verify(rawKey string) (string, error) {
	if rawKey == "" {
		return "", ErrMissingCredentials
	}

	digest := HashAPIKey(rawKey)

	// Scan every entry so verification time does not depend on whether
	// (or where) a match exists.
	matched := ""
	for candidate, deviceID := range k.hashes {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(digest)) == 1 {
			matched = deviceID
		}
	}

	if matched == "" {
		return "", ErrUnknownAPIKey
	}
	return matched, nil
}

// Len returns the number of registered keys.
func (k *Keyring) Len() int {
	return len(k.hashes)
}

// HashAPIKey returns the lowercase hex SHA-256 digest of a raw API key,
// the form stored in configuration.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
