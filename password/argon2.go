package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcAlgorithm = "argon2id"

// Parameter floors. Configurations below these are rejected outright
// rather than silently weakened.
const (
	minMemoryKB    uint32 = 8 * 1024
	minIterations  uint32 = 1
	minThreads     uint8  = 1
	minSaltBytes   uint32 = 16
	minKeyBytes    uint32 = 16
	minPasswordLen        = 8
)

// ErrMalformedHash is returned when a stored hash cannot be parsed as a
// supported PHC string.
var ErrMalformedHash = errors.New("malformed password hash")

// ErrPasswordTooShort is returned by Hash for passwords under the minimum
// byte length.
var ErrPasswordTooShort = fmt.Errorf("password must be at least %d bytes", minPasswordLen)

// Params holds the Argon2id cost settings for a [Hasher].
type Params struct {
	MemoryKB   uint32
	Iterations uint32
	Threads    uint8
	SaltBytes  uint32
	KeyBytes   uint32
}

func (p Params) validate() error {
	switch {
	case p.MemoryKB < minMemoryKB:
		return fmt.Errorf("memory must be >= %d KB", minMemoryKB)
	case p.Iterations < minIterations:
		return errors.New("iterations must be >= 1")
	case p.Threads < minThreads:
		return errors.New("threads must be >= 1")
	case p.SaltBytes < minSaltBytes:
		return fmt.Errorf("salt length must be >= %d bytes", minSaltBytes)
	case p.KeyBytes < minKeyBytes:
		return fmt.Errorf("key length must be >= %d bytes", minKeyBytes)
	}
	return nil
}

// Hasher hashes and verifies passwords. It is immutable after construction
// and safe for concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates params and returns a [Hasher].
func NewHasher(params Params) (*Hasher, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Hasher{params: params}, nil
}

// Hash derives an Argon2id hash of password under the configured parameters
// and returns it as a PHC string. The password is used byte for byte; no
// Unicode normalization is applied.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", ErrPasswordTooShort
	}

	salt := make([]byte, h.params.SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Iterations,
		h.params.MemoryKB,
		h.params.Threads,
		h.params.KeyBytes,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm,
		argon2.Version,
		h.params.MemoryKB,
		h.params.Iterations,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. The comparison runs in
// constant time over the derived keys. A false result with a nil error means
// the password is simply wrong; an error means the stored hash is unusable.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	stored, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey(
		[]byte(password),
		stored.salt,
		stored.params.Iterations,
		stored.params.MemoryKB,
		stored.params.Threads,
		stored.params.KeyBytes,
	)

	return subtle.ConstantTimeCompare(key, stored.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced under parameters weaker
// than the hasher's current configuration.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	stored, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	p := stored.params
	upgrade := h.params.MemoryKB > p.MemoryKB ||
		h.params.Iterations > p.Iterations ||
		h.params.Threads > p.Threads ||
		h.params.KeyBytes != p.KeyBytes
	return upgrade, nil
}

type storedHash struct {
	params Params
	salt   []byte
	key    []byte
}

func parsePHC(encoded string) (*storedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != phcAlgorithm {
		return nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, ErrMalformedHash
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, ErrMalformedHash
	}
	if memory < minMemoryKB || iterations < minIterations || threads < minThreads {
		return nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || uint32(len(salt)) < minSaltBytes {
		return nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || uint32(len(key)) < minKeyBytes {
		return nil, ErrMalformedHash
	}

	return &storedHash{
		params: Params{
			MemoryKB:   memory,
			Iterations: iterations,
			Threads:    threads,
			SaltBytes:  uint32(len(salt)),
			KeyBytes:   uint32(len(key)),
		},
		salt: salt,
		key:  key,
	}, nil
}
