package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/castlefell/authcore/internal/audit"
	internalmetrics "github.com/castlefell/authcore/internal/metrics"
)

// Provider identifies how an account authenticates.
type Provider string

const (
	// ProviderLocal marks accounts with an email/password credential.
	ProviderLocal Provider = "local"
	// ProviderGoogle marks accounts backed by a verified Google identity.
	ProviderGoogle Provider = "google"
)

// Account is the durable account record managed through [CredentialStore].
// Email is immutable after creation and globally unique. PasswordHash is
// empty for Google-backed accounts; a local account always carries one.
type Account struct {
	ID          string
	Email       string
	DisplayName string

	// PasswordHash is the argon2id PHC string for local accounts.
	PasswordHash string

	Provider Provider
	GoogleID string

	// Confirmed stays false until the email verification flow completes.
	// Google accounts are created confirmed.
	Confirmed bool

	// ResetTokenHash holds the SHA-256 of an outstanding password reset
	// token, present only between reset request and completion/expiry.
	ResetTokenHash    string
	ResetTokenExpires time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CredentialStore is the interface callers implement to back the engine with
// their account database. Adapters for an in-memory map and for Postgres ship
// under store/.
//
// Atomicity requirements: Create must be atomic with the email uniqueness
// check (two concurrent creates for one email yield exactly one success and
// one [ErrDuplicateEmail]); ConsumeVerificationToken must delete the token
// and set Confirmed in one step; ConsumeResetToken must clear the reset token
// so that a double-submitted reset link completes at most once.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByGoogleID(ctx context.Context, googleID string) (*Account, error)
	FindByResetToken(ctx context.Context, tokenHash string) (*Account, error)

	// Create persists a new account. It returns ErrDuplicateEmail when the
	// email is already present.
	Create(ctx context.Context, account *Account) (*Account, error)

	// Save persists mutations of an existing account (display name,
	// password hash, confirmation flag, reset token fields).
	Save(ctx context.Context, account *Account) error

	// ReplaceVerificationToken stores tokenHash as the account's single
	// outstanding email verification token, displacing any prior one.
	ReplaceVerificationToken(ctx context.Context, accountID, tokenHash string, expires time.Time) error

	// ConsumeVerificationToken atomically deletes the matching token and
	// marks the owning account confirmed, returning it. A second call with
	// the same hash returns ErrVerificationInvalid.
	ConsumeVerificationToken(ctx context.Context, tokenHash string) (*Account, error)

	// ConsumeResetToken atomically clears the matching reset token from its
	// account and returns the account. The returned Account keeps the
	// consumed token's ResetTokenExpires so the caller can reject expired
	// tokens. Concurrent calls with the same hash succeed at most once;
	// losers get ErrResetInvalid.
	ConsumeResetToken(ctx context.Context, tokenHash string) (*Account, error)
}

// MailSender delivers outbound verification and reset emails. Delivery
// failure is never fatal to the operation that triggered the send; the
// engine logs and audits it and carries on.
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ExternalIdentity is the verified identity tuple supplied by an OAuth
// collaborator after its own handshake. The engine trusts it as-is.
// identity/google produces these from a Google access token.
type ExternalIdentity struct {
	ID          string
	Email       string
	DisplayName string
}

// TokenPair is the result of a successful login, refresh, or name change:
// a short-lived access token and a ledger-backed refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	DisplayName     string
}

// RegisterResult is returned by [Engine.Register]. Registration never mints
// tokens: the account stays unusable for login until email verification.
type RegisterResult struct {
	AccountID           string
	Email               string
	PendingVerification bool
}

// NameChangeResult is returned by [Engine.ChangeDisplayName]. Tokens carry
// the display name at mint time, so the engine re-mints a fresh pair with
// the new name; pairs minted earlier keep the old name until refreshed by a
// full login.
type NameChangeResult struct {
	OldName string
	NewName string
	Tokens  TokenPair
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// Metrics holds the engine's atomic flow counters.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricRegisterSuccess counts completed registrations.
	MetricRegisterSuccess = internalmetrics.MetricRegisterSuccess
	// MetricRegisterDuplicate counts registrations rejected on a duplicate email.
	MetricRegisterDuplicate = internalmetrics.MetricRegisterDuplicate
	// MetricRegisterFailure counts registrations failed for any other reason.
	MetricRegisterFailure = internalmetrics.MetricRegisterFailure
	// MetricLoginSuccess counts successful logins, local and Google.
	MetricLoginSuccess = internalmetrics.MetricLoginSuccess
	// MetricLoginFailure counts rejected logins.
	MetricLoginFailure = internalmetrics.MetricLoginFailure
	// MetricRefreshSuccess counts successful token refreshes.
	MetricRefreshSuccess = internalmetrics.MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure = internalmetrics.MetricRefreshFailure
	// MetricRefreshRevoked counts refreshes rejected by the ledger despite a valid signature.
	MetricRefreshRevoked = internalmetrics.MetricRefreshRevoked
	// MetricVerifySuccess counts completed email verifications.
	MetricVerifySuccess = internalmetrics.MetricVerifySuccess
	// MetricVerifyFailure counts rejected email verifications.
	MetricVerifyFailure = internalmetrics.MetricVerifyFailure
	// MetricResetRequest counts password reset requests.
	MetricResetRequest = internalmetrics.MetricResetRequest
	// MetricResetSuccess counts completed password resets.
	MetricResetSuccess = internalmetrics.MetricResetSuccess
	// MetricResetFailure counts rejected password reset completions.
	MetricResetFailure = internalmetrics.MetricResetFailure
	// MetricNameChange counts display name changes.
	MetricNameChange = internalmetrics.MetricNameChange
	// MetricTokenRevoked counts refresh tokens revoked via logout.
	MetricTokenRevoked = internalmetrics.MetricTokenRevoked
	// MetricSessionsPurged counts revoke-all sweeps after password resets.
	MetricSessionsPurged = internalmetrics.MetricSessionsPurged
	// MetricMailFailure counts non-fatal outbound email failures.
	MetricMailFailure = internalmetrics.MetricMailFailure
)

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{Enabled: cfg.Enabled})
}
