// Package cryptox seals data with a passphrase so archived proxy configs,
// which carry client credentials, are unreadable at rest.
//
// Sealed layout: "BPA1" | salt (16) | nonce (12) | AES-256-GCM ciphertext.
// The key is derived from the passphrase and the salt with Argon2id.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	magic     = "BPA1"
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

var (
	ErrNotSealed = errors.New("data is not sealed")
	ErrOpen      = errors.New("cannot open sealed data")
)

// DeriveKey stretches passphrase into an AES-256 key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// IsSealed reports whether data starts with the sealed header.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, []byte(magic))
}

// Seal encrypts plaintext under passphrase with a fresh salt and nonce.
// The header is authenticated together with the ciphertext.
func Seal(plaintext, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("empty passphrase")
	}

	head := make([]byte, len(magic)+saltSize+nonceSize)
	copy(head, magic)
	if _, err := rand.Read(head[len(magic):]); err != nil {
		return nil, fmt.Errorf("random: %w", err)
	}
	salt := head[len(magic) : len(magic)+saltSize]
	nonce := head[len(magic)+saltSize:]

	aead, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	return append(head, aead.Seal(nil, nonce, plaintext, head)...), nil
}

// Open reverses Seal. A wrong passphrase or tampered data yields ErrOpen.
func Open(sealed, passphrase []byte) ([]byte, error) {
	headSize := len(magic) + saltSize + nonceSize
	if !IsSealed(sealed) {
		return nil, ErrNotSealed
	}
	if len(sealed) < headSize {
		return nil, fmt.Errorf("%w: truncated header", ErrOpen)
	}
	head := sealed[:headSize]
	salt := head[len(magic) : len(magic)+saltSize]
	nonce := head[len(magic)+saltSize:]

	aead, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, sealed[headSize:], head)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return plaintext, nil
}
