// Package encryption seals and opens password-protected gallery payloads.
//
// A payload is salt(16) || nonce(12) || AES-256-GCM ciphertext. The key is
// derived from the password with PBKDF2-HMAC-SHA256.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Suffix marks a stored file name as encrypted
const Suffix = ".enc"

const (
	saltSize   = 16
	nonceSize  = 12
	keySize    = 32
	iterations = 100_000
)

// ErrDecryption covers wrong passwords and corrupt payloads alike
var ErrDecryption = errors.New("decryption failed")

// HasSuffix reports whether name carries the encrypted suffix
func HasSuffix(name string) bool {
	return strings.HasSuffix(name, Suffix)
}

// StripSuffix returns the display name of a stored file name
func StripSuffix(name string) string {
	return strings.TrimSuffix(name, Suffix)
}

// AddSuffix returns the stored name for a display name
func AddSuffix(name string) string {
	if HasSuffix(name) {
		return name
	}
	return name + Suffix
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under password
func Encrypt(password string, plaintext []byte) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password must not be empty")
	}

	header := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(rand.Reader, header); err != nil {
		return nil, err
	}
	gcm, err := newGCM(password, header[:saltSize])
	if err != nil {
		return nil, err
	}
	return gcm.Seal(header, header[saltSize:], plaintext, nil), nil
}

// Decrypt opens a payload produced by Encrypt
func Decrypt(password string, payload []byte) ([]byte, error) {
	if len(payload) < saltSize+nonceSize {
		return nil, fmt.Errorf("%w: payload too short", ErrDecryption)
	}

	salt := payload[:saltSize]
	nonce := payload[saltSize : saltSize+nonceSize]
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	plaintext, err := gcm.Open(nil, nonce, payload[saltSize+nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong password or corrupt payload", ErrDecryption)
	}
	return plaintext, nil
}
