package authcore

import (
	"errors"
	"time"

	"github.com/castlefell/authcore/internal/audit"
	"github.com/castlefell/authcore/token"
)

// Config is the complete engine configuration. Populate it once before
// Build and treat it as immutable afterwards.
type Config struct {
	JWT          JWTConfig
	Password     PasswordConfig
	Refresh      RefreshConfig
	Ledger       LedgerConfig
	Verification VerificationConfig
	Reset        ResetConfig
	Mail         MailConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig carries signing material and token lifetimes.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	Secret        []byte // hs256 shared secret
	PrivateKey    []byte // ed25519 private key
	PublicKey     []byte // ed25519 public key
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig carries Argon2id cost parameters.
type PasswordConfig struct {
	MemoryKB       uint32
	Iterations     uint32
	Threads        uint8
	SaltBytes      uint32
	KeyBytes       uint32
	UpgradeOnLogin bool
}

/*
====================================
REFRESH / LEDGER CONFIG
====================================
*/

// RefreshConfig controls refresh semantics.
type RefreshConfig struct {
	// Rotate revokes the presented token and issues a new one on every
	// refresh. When false the presented token stays live and only a new
	// access token is minted.
	Rotate bool
	// RevokeOnPasswordReset purges every live refresh token for an
	// account when its password reset completes.
	RevokeOnPasswordReset bool
}

// LedgerConfig configures the Redis-backed refresh token ledger.
type LedgerConfig struct {
	RedisPrefix string
}

/*
====================================
VERIFICATION / RESET CONFIG
====================================
*/

// VerificationConfig controls email verification tokens.
type VerificationConfig struct {
	TokenTTL time.Duration
	// RequireForLogin gates local login on a confirmed email address.
	RequireForLogin bool
}

// ResetConfig controls password reset tokens.
type ResetConfig struct {
	TokenTTL time.Duration
}

/*
====================================
MAIL CONFIG
====================================
*/

// MailConfig shapes outbound verification and reset mail.
type MailConfig struct {
	From            string
	VerificationURL string // token is appended as ?token=
	ResetURL        string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: string(token.MethodHS256),
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			MemoryKB:       64 * 1024,
			Iterations:     3,
			Threads:        2,
			SaltBytes:      16,
			KeyBytes:       32,
			UpgradeOnLogin: true,
		},
		Refresh: RefreshConfig{
			Rotate:                true,
			RevokeOnPasswordReset: true,
		},
		Ledger: LedgerConfig{
			RedisPrefix: "rtl",
		},
		Verification: VerificationConfig{
			TokenTTL:        24 * time.Hour,
			RequireForLogin: true,
		},
		Reset: ResetConfig{
			TokenTTL: time.Hour,
		},
		Mail: MailConfig{
			From: "no-reply@localhost",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for values the engine cannot run with.
// Signing material is validated later by the token manager.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT.RefreshTTL must exceed JWT.AccessTTL")
	}
	if c.Verification.TokenTTL <= 0 {
		return errors.New("Verification.TokenTTL must be positive")
	}
	if c.Reset.TokenTTL <= 0 {
		return errors.New("Reset.TokenTTL must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be positive when audit is enabled")
	}
	return nil
}

func (c *Config) auditConfig() audit.Config {
	return audit.Config{
		Enabled:    c.Audit.Enabled,
		BufferSize: c.Audit.BufferSize,
		DropIfFull: c.Audit.DropIfFull,
	}
}
