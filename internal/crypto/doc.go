// Package crypto provides the symmetric encryption capability for cryptkeeper.
//
// Each vault owns one random 32-byte key, generated once and stored as an
// unpadded base64url string. Artifacts are sealed with XChaCha20-Poly1305:
//   - 24-byte random nonce per encryption, prepended to the ciphertext
//   - 16-byte Poly1305 tag authenticates the content
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Encryptor.Destroy() when done with encryption operations
package crypto
