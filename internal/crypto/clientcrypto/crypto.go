// Package clientcrypto seals small local secrets (the credential files) under a passphrase.
package clientcrypto

import (
	"bytes"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Params
const (
	KeyLen  = 32
	SaltLen = 16

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
)

// magic prefix of sealed blobs (format version 1)
var magic = []byte("tk1")

// ErrNotSealed is returned by Open for data that does not carry the sealed-blob prefix.
var ErrNotSealed = errors.New("not a sealed blob")

func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// DeriveKey derives a key from passphrase and salt using Argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// IsSealed reports whether b looks like output of Seal.
func IsSealed(b []byte) bool { return bytes.HasPrefix(b, magic) }

// Seal encrypts plaintext with XChaCha20-Poly1305 under a key derived from passphrase.
// Layout: magic || salt || nonce || ciphertext. aad binds the blob to its purpose.
func Seal(passphrase, plaintext, aad []byte) ([]byte, error) {
	salt, err := Rand(SaltLen)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(magic)+len(salt)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, aad)...)
	return out, nil
}

// Open reverses Seal.
func Open(passphrase, blob, aad []byte) ([]byte, error) {
	if !IsSealed(blob) {
		return nil, ErrNotSealed
	}
	blob = blob[len(magic):]
	if len(blob) < SaltLen+chacha20poly1305.NonceSizeX {
		return nil, errors.New("blob too short")
	}
	salt := blob[:SaltLen]
	nonce := blob[SaltLen : SaltLen+chacha20poly1305.NonceSizeX]
	ct := blob[SaltLen+chacha20poly1305.NonceSizeX:]
	aead, err := chacha20poly1305.NewX(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ct, aad)
}
