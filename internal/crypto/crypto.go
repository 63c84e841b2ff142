package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeySize   = chacha20poly1305.KeySize    // 32-byte vault key
	NonceSize = chacha20poly1305.NonceSizeX // 24-byte XChaCha nonce
	TagSize   = chacha20poly1305.Overhead   // Poly1305 authentication tag
)

var (
	ErrInvalidKey        = errors.New("invalid key")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrAuthFailed        = errors.New("authentication failed")
)

var keyEncoding = base64.RawURLEncoding

// GenerateKey returns a new random vault key in its string form
func GenerateKey() (string, error) {
	key, err := GenerateRandom(KeySize)
	if err != nil {
		return "", err
	}
	defer ClearBytes(key)
	return keyEncoding.EncodeToString(key), nil
}

// ParseKey decodes a key produced by GenerateKey
// The caller is responsible for calling ClearBytes on the returned key
func ParseKey(encoded string) ([]byte, error) {
	key, err := keyEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		ClearBytes(key)
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	return key, nil
}

// Encryptor provides authenticated encryption with a single vault key
type Encryptor struct {
	key  []byte
	aead cipher.AEAD
}

// NewEncryptor creates a new encryptor with the given key.
// The encryptor takes ownership of key and clears it on Destroy.
func NewEncryptor(key []byte) (*Encryptor, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &Encryptor{key: key, aead: aead}, nil
}

// NewEncryptorFromString parses an encoded key and creates an encryptor for it
func NewEncryptorFromString(encoded string) (*Encryptor, error) {
	key, err := ParseKey(encoded)
	if err != nil {
		return nil, err
	}
	enc, err := NewEncryptor(key)
	if err != nil {
		ClearBytes(key)
		return nil, err
	}
	return enc, nil
}

// Encrypt encrypts plaintext using XChaCha20-Poly1305
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce, err := GenerateRandom(NonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends to the nonce so the result is nonce || ciphertext || tag
	out := make([]byte, 0, NonceSize+len(plaintext)+TagSize)
	out = append(out, nonce...)
	return e.aead.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	nonce := ciphertext[:NonceSize]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Destroy clears the encryptor's key from memory
func (e *Encryptor) Destroy() {
	ClearBytes(e.key)
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
