// Package keyring keeps vault key material in the OS keyring. The metadata
// document then holds only a reference of the form "keyring:<account>".
package keyring

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/illarion/cryptkeeper/internal/crypto"
	"github.com/zalando/go-keyring"
)

const (
	serviceName = "cryptkeeper"
	refPrefix   = "keyring:"
)

// ErrNotFound is returned when a reference points at a missing keyring entry
var ErrNotFound = errors.New("key not found in keyring")

// IsRef reports whether a vault key field is a keyring reference
func IsRef(key string) bool {
	return strings.HasPrefix(key, refPrefix) && len(key) > len(refPrefix)
}

// Account returns the keyring account named by ref
func Account(ref string) string {
	return strings.TrimPrefix(ref, refPrefix)
}

// Store saves key under a freshly generated account and returns the
// reference to put in the metadata document.
func Store(key string) (string, error) {
	raw, err := crypto.GenerateRandom(12)
	if err != nil {
		return "", err
	}
	account := hex.EncodeToString(raw)
	if err := keyring.Set(serviceName, account, key); err != nil {
		return "", fmt.Errorf("failed to store key in keyring: %w", err)
	}
	return refPrefix + account, nil
}

// Resolve returns the key material for a vault key field. Values that are
// not references are returned as is.
func Resolve(key string) (string, error) {
	if !IsRef(key) {
		return key, nil
	}
	secret, err := keyring.Get(serviceName, Account(key))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key from keyring: %w", err)
	}
	return secret, nil
}

// Delete removes the entry behind ref. Missing entries and plain keys are
// ignored.
func Delete(key string) error {
	if !IsRef(key) {
		return nil
	}
	err := keyring.Delete(serviceName, Account(key))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete key from keyring: %w", err)
	}
	return nil
}
