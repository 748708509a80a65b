// Package crypto seals stored API tokens with a key derived from a
// passphrase.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// ErrDecrypt is returned when a ciphertext is malformed or was sealed with
// a different key.
var ErrDecrypt = errors.New("failed to decrypt value")

// Encrypt seals plaintext and returns base64(salt || nonce || box)
func Encrypt(plaintext, passphrase string) (string, error) {
	if passphrase == "" {
		return "", errors.New("encryption key is empty")
	}

	var salt [saltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	key, err := deriveKey(passphrase, salt[:])
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, []byte(plaintext), &nonce, key)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt
func Decrypt(encoded, passphrase string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(data) < saltSize+nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	key, err := deriveKey(passphrase, data[:saltSize])
	if err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[saltSize:saltSize+nonceSize])

	plaintext, ok := secretbox.Open(nil, data[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

func deriveKey(passphrase string, salt []byte) (*[keySize]byte, error) {
	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	var key [keySize]byte
	copy(key[:], derived)
	return &key, nil
}
