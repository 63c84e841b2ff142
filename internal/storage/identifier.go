package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// IdentifierSize is the number of random bytes in an identifier
const IdentifierSize = 16

// NewIdentifier generates a random 128-bit identifier, hex encoded to 32
// lowercase characters, that is not in taken. The result is added to taken so
// repeated calls with the same set never return a duplicate. This is the
// batch form of Allocate: share one taken set across every file of a batch.
func NewIdentifier(taken map[string]struct{}) (string, error) {
	b := make([]byte, IdentifierSize)
	for {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate identifier: %w", err)
		}
		id := hex.EncodeToString(b)
		if _, dup := taken[id]; dup {
			continue
		}
		taken[id] = struct{}{}
		return id, nil
	}
}

// Allocate returns an identifier unused anywhere in the document. It suits a
// single allocation; a batch should call NewIdentifier with one shared set.
func Allocate(d *Document) (string, error) {
	return NewIdentifier(d.Identifiers())
}

// IsIdentifier reports whether s has the shape of an identifier
func IsIdentifier(s string) bool {
	if len(s) != 2*IdentifierSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
