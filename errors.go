package authcore

import (
	"errors"

	"github.com/castlefell/authcore/token"
)

var (
	// ErrUnauthorized is the generic authentication failure returned when no
	// more specific sentinel applies.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAccountNotFound is returned when no account matches the given email
	// or external identity.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned on password mismatch during login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateEmail is returned when registration collides with an
	// existing account.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrPasswordMismatch is returned when password and confirmation differ.
	ErrPasswordMismatch = errors.New("password confirmation does not match")
	// ErrAccountUnverified gates login until the email confirmation flow
	// completes. Google-backed accounts are never in this state.
	ErrAccountUnverified = errors.New("account email unverified")
	// ErrVerificationInvalid is returned for unknown, expired, or already
	// consumed email verification tokens.
	ErrVerificationInvalid = errors.New("invalid email verification token")
	// ErrResetInvalid is returned for unknown, expired, or already consumed
	// password reset tokens.
	ErrResetInvalid = errors.New("invalid password reset token")
	// ErrRefreshRevoked is returned when a refresh token verifies
	// cryptographically but is absent from the ledger.
	ErrRefreshRevoked = errors.New("refresh token revoked or unknown")
	// ErrInvalidInput is returned when an operation's arguments fail the
	// engine's own validation before any store access.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMailDelivery marks outbound email failures. It is audited and
	// logged but never surfaced as the primary failure of an operation.
	ErrMailDelivery = errors.New("mail delivery failed")
	// ErrEngineNotReady is returned when the engine is used before Build
	// wired all required collaborators.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStoreUnavailable wraps backend failures from the credential store
	// or the ledger so that no driver error crosses the engine boundary.
	ErrStoreUnavailable = errors.New("storage backend unavailable")
)

// Token verification failures are re-exported from the token package so that
// callers can branch without importing it. Expired is deliberately distinct
// from the other two: an expired access token is the cue to attempt a
// refresh, while a malformed token or a bad signature is always fatal.
var (
	ErrTokenExpired   = token.ErrExpired
	ErrTokenMalformed = token.ErrMalformed
	ErrBadSignature   = token.ErrBadSignature
)
