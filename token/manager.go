package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the signature algorithm for minted tokens.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// Use distinguishes the two token kinds minted by the engine. A token minted
// for one use never verifies for the other.
type Use string

const (
	// UseAccess marks short-lived, self-verifiable access tokens.
	UseAccess Use = "access"
	// UseRefresh marks longer-lived, ledger-gated refresh tokens.
	UseRefresh Use = "refresh"
)

// Verification failure kinds. Expired is deliberately separate from the
// other two: callers react to it by attempting a refresh, while BadSignature
// and Malformed are always fatal.
var (
	ErrExpired      = errors.New("token expired")
	ErrBadSignature = errors.New("token signature invalid")
	ErrMalformed    = errors.New("token malformed")
	ErrWrongUse     = errors.New("token minted for a different use")
)

// Payload is the claim set embedded in every minted token. It reflects
// account state at the moment of minting and is never re-read from storage
// on verification; callers re-mint after account mutations.
type Payload struct {
	DisplayName string
	Email       string
	Provider    string
	Confirmed   bool
}

// Claims is the full JWT claim set: the payload plus subject (account ID),
// use marker, and the registered time claims.
type Claims struct {
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	Provider    string `json:"provider"`
	Confirmed   bool   `json:"cfm"`
	Use         Use    `json:"use"`
	jwt.RegisteredClaims
}

// Payload extracts the embedded [Payload] from verified claims.
func (c *Claims) Payload() Payload {
	return Payload{
		DisplayName: c.DisplayName,
		Email:       c.Email,
		Provider:    c.Provider,
		Confirmed:   c.Confirmed,
	}
}

// AccountID returns the subject claim.
func (c *Claims) AccountID() string {
	return c.Subject
}

// Config carries the signing material and TTL policy for a [Manager].
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	SigningMethod SigningMethod

	// Secret is the HS256 key.
	Secret []byte
	// PrivateKey and PublicKey are the Ed25519 pair.
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey

	Issuer string
	Leeway time.Duration
}

// Manager mints and verifies the engine's signed tokens. It is stateless
// and safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) != ed25519.PrivateKeySize {
			return nil, errors.New("ed25519 requires a private key")
		}
		if len(cfg.PublicKey) != ed25519.PublicKeySize {
			return nil, errors.New("ed25519 requires a public key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// MintAccess signs an access token for accountID carrying payload, expiring
// after the configured access TTL.
func (m *Manager) MintAccess(accountID string, payload Payload) (string, error) {
	return m.mint(accountID, payload, UseAccess, m.config.AccessTTL)
}

// MintRefresh signs a refresh token for accountID carrying payload, expiring
// after the configured refresh TTL. The signature alone never authorizes a
// refresh; the ledger does.
func (m *Manager) MintRefresh(accountID string, payload Payload) (string, error) {
	return m.mint(accountID, payload, UseRefresh, m.config.RefreshTTL)
}

func (m *Manager) mint(accountID string, payload Payload, use Use, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		DisplayName: payload.DisplayName,
		Email:       payload.Email,
		Provider:    payload.Provider,
		Confirmed:   payload.Confirmed,
		Use:         use,
		RegisteredClaims: jwt.RegisteredClaims{
			// A unique ID keeps two tokens minted within the same second
			// from colliding; refresh tokens are ledgered by their hash.
			ID:        uuid.NewString(),
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.config.Issuer,
		},
	}

	tok := jwt.NewWithClaims(m.signingMethod(), claims)
	signed, err := tok.SignedString(m.signKey())
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyAccess verifies an access token and returns its claims.
func (m *Manager) VerifyAccess(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, UseAccess)
}

// VerifyRefresh verifies a refresh token's signature and expiry. Callers
// must still consult the ledger before trusting the result.
func (m *Manager) VerifyRefresh(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, UseRefresh)
}

func (m *Manager) verify(tokenStr string, use Use) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.signingMethod().Alg()}),
		jwt.WithIssuedAt(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey(), nil
	})
	if err != nil {
		return nil, mapParseErr(err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	if claims.Use != use {
		return nil, ErrWrongUse
	}

	return claims, nil
}

// mapParseErr collapses golang-jwt errors into the package's three failure
// kinds. Signature wins over expiry: a tampered token is reported as
// tampered even when its claimed expiry has passed.
func mapParseErr(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrExpired
	default:
		return ErrMalformed
	}
}

func (m *Manager) signingMethod() jwt.SigningMethod {
	if m.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (m *Manager) signKey() interface{} {
	if m.config.SigningMethod == MethodEd25519 {
		return m.config.PrivateKey
	}
	return m.config.Secret
}

func (m *Manager) verifyKey() interface{} {
	if m.config.SigningMethod == MethodEd25519 {
		return m.config.PublicKey
	}
	return m.config.Secret
}
