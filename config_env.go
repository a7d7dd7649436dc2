package authcore

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	AccessTTL     time.Duration `env:"AUTHCORE_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"AUTHCORE_REFRESH_TTL" envDefault:"168h"`
	SigningMethod string        `env:"AUTHCORE_SIGNING_METHOD" envDefault:"hs256"`
	Secret        string        `env:"AUTHCORE_JWT_SECRET"`
	PrivateKey    string        `env:"AUTHCORE_JWT_PRIVATE_KEY"`
	PublicKey     string        `env:"AUTHCORE_JWT_PUBLIC_KEY"`
	Issuer        string        `env:"AUTHCORE_JWT_ISSUER"`

	RotateRefresh         bool `env:"AUTHCORE_ROTATE_REFRESH" envDefault:"true"`
	RevokeOnPasswordReset bool `env:"AUTHCORE_REVOKE_ON_RESET" envDefault:"true"`

	LedgerPrefix string `env:"AUTHCORE_LEDGER_PREFIX" envDefault:"rtl"`

	VerificationTTL     time.Duration `env:"AUTHCORE_VERIFICATION_TTL" envDefault:"24h"`
	RequireVerification bool          `env:"AUTHCORE_REQUIRE_VERIFICATION" envDefault:"true"`
	ResetTTL            time.Duration `env:"AUTHCORE_RESET_TTL" envDefault:"1h"`

	MailFrom        string `env:"AUTHCORE_MAIL_FROM" envDefault:"no-reply@localhost"`
	VerificationURL string `env:"AUTHCORE_VERIFICATION_URL"`
	ResetURL        string `env:"AUTHCORE_RESET_URL"`

	AuditEnabled   bool `env:"AUTHCORE_AUDIT_ENABLED" envDefault:"false"`
	MetricsEnabled bool `env:"AUTHCORE_METRICS_ENABLED" envDefault:"true"`
}

// ConfigFromEnv builds a [Config] from AUTHCORE_* environment variables,
// falling back to the same defaults a zero builder uses. Key material is
// expected base64 encoded for ed25519 and plain text for hs256.
func ConfigFromEnv() (Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg := defaultConfig()
	cfg.JWT.AccessTTL = ec.AccessTTL
	cfg.JWT.RefreshTTL = ec.RefreshTTL
	cfg.JWT.SigningMethod = ec.SigningMethod
	cfg.JWT.Issuer = ec.Issuer
	if ec.Secret != "" {
		cfg.JWT.Secret = []byte(ec.Secret)
	}
	if ec.PrivateKey != "" {
		key, err := base64.StdEncoding.DecodeString(ec.PrivateKey)
		if err != nil {
			return Config{}, fmt.Errorf("decode AUTHCORE_JWT_PRIVATE_KEY: %w", err)
		}
		cfg.JWT.PrivateKey = key
	}
	if ec.PublicKey != "" {
		key, err := base64.StdEncoding.DecodeString(ec.PublicKey)
		if err != nil {
			return Config{}, fmt.Errorf("decode AUTHCORE_JWT_PUBLIC_KEY: %w", err)
		}
		cfg.JWT.PublicKey = key
	}

	cfg.Refresh.Rotate = ec.RotateRefresh
	cfg.Refresh.RevokeOnPasswordReset = ec.RevokeOnPasswordReset
	cfg.Ledger.RedisPrefix = ec.LedgerPrefix
	cfg.Verification.TokenTTL = ec.VerificationTTL
	cfg.Verification.RequireForLogin = ec.RequireVerification
	cfg.Reset.TokenTTL = ec.ResetTTL
	cfg.Mail.From = ec.MailFrom
	cfg.Mail.VerificationURL = ec.VerificationURL
	cfg.Mail.ResetURL = ec.ResetURL
	cfg.Audit.Enabled = ec.AuditEnabled
	cfg.Metrics.Enabled = ec.MetricsEnabled

	return cfg, nil
}
