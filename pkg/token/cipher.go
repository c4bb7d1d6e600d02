package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// nonceSize is the size of the GCM nonce (12 bytes is standard for AES-GCM).
const nonceSize = 12

// ErrDecrypt is the single error returned for every decryption failure.
// Bad key, corrupted ciphertext, and truncated input are indistinguishable
// to callers so that failures cannot be used as a padding/format oracle.
var ErrDecrypt = errors.New("unable to decrypt")

// Cipher is the symmetric capability used to protect credential bytes in
// transit. Implementations must be safe for concurrent use.
type Cipher interface {
	// Encrypt seals plaintext under a key derived from passphrase.
	Encrypt(plaintext, passphrase []byte) ([]byte, error)
	// Decrypt opens ciphertext produced by Encrypt with the same
	// passphrase. All failures return ErrDecrypt.
	Decrypt(ciphertext, passphrase []byte) ([]byte, error)
}

// AESGCM implements Cipher with AES-256-GCM. The AES key is derived from
// the passphrase with SHA-256; output layout is nonce || ciphertext.
type AESGCM struct{}

// NewAESGCM returns the AES-256-GCM cipher.
func NewAESGCM() AESGCM {
	return AESGCM{}
}

func gcmFor(passphrase []byte) (cipher.AEAD, error) {
	key := sha256.Sum256(passphrase)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under the passphrase-derived key.
func (AESGCM) Encrypt(plaintext, passphrase []byte) ([]byte, error) {
	gcm, err := gcmFor(passphrase)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens nonce||ciphertext sealed by Encrypt.
func (AESGCM) Decrypt(ciphertext, passphrase []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, ErrDecrypt
	}
	gcm, err := gcmFor(passphrase)
	if err != nil {
		return nil, ErrDecrypt
	}
	nonce := ciphertext[:nonceSize]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
