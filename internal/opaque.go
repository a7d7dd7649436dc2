// Package internal holds helpers shared by the engine that must not become
// public API: opaque token generation and hashing.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const opaqueTokenSize = 32

// NewOpaqueToken returns a fresh single-use token value for email
// verification and password reset links. The value is handed to the user;
// only its hash (HashToken) is ever persisted.
func NewOpaqueToken() (string, error) {
	var raw [opaqueTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken derives the storage key for an opaque token. SHA-256 keeps the
// stored form useless to anyone who reads the backing store.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
