package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/castlefell/authcore/internal/audit"
	"github.com/castlefell/authcore/ledger"
	"github.com/castlefell/authcore/token"
)

const (
	auditEventRegisterSuccess     = "register_success"
	auditEventRegisterDuplicate   = "register_duplicate"
	auditEventRegisterFailure     = "register_failure"
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventGoogleLoginSuccess  = "google_login_success"
	auditEventGoogleLoginFailure  = "google_login_failure"
	auditEventGoogleAccountLinked = "google_account_created"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshInvalid      = "refresh_invalid"
	auditEventRefreshRevoked      = "refresh_revoked_replay"
	auditEventLogout              = "logout"
	auditEventLogoutAll           = "logout_all"
	auditEventVerifySuccess       = "email_verification_confirm"
	auditEventVerifyFailure       = "email_verification_invalid"
	auditEventVerifyResend        = "email_verification_resend"
	auditEventResetRequest        = "password_reset_request"
	auditEventResetSuccess        = "password_reset_confirm"
	auditEventResetFailure        = "password_reset_invalid"
	auditEventNameChange          = "display_name_change"
	auditEventMailFailure         = "mail_delivery_failure"
)

type auditErrorCode string

const (
	auditErrInvalidCredentials auditErrorCode = "invalid_credentials"
	auditErrAccountNotFound    auditErrorCode = "account_not_found"
	auditErrAccountUnverified  auditErrorCode = "account_unverified"
	auditErrDuplicate          auditErrorCode = "duplicate"
	auditErrPasswordMismatch   auditErrorCode = "password_mismatch"
	auditErrTokenExpired       auditErrorCode = "token_expired"
	auditErrTokenInvalid       auditErrorCode = "token_invalid"
	auditErrTokenRevoked       auditErrorCode = "token_revoked"
	auditErrInvalidInput       auditErrorCode = "invalid_input"
	auditErrMailDelivery       auditErrorCode = "mail_delivery"
	auditErrUnavailable        auditErrorCode = "backend_unavailable"
	auditErrInternal           auditErrorCode = "internal_error"
)

func newAuditDispatcher(cfg audit.Config, sink AuditSink) *audit.Dispatcher {
	return audit.NewDispatcher(cfg, sink)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	email string,
	err error,
	metadata map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		Email:     email,
		RequestID: requestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := classifyAuditError(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func classifyAuditError(err error) auditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordMismatch):
		return auditErrPasswordMismatch
	case errors.Is(err, token.ErrExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrRefreshRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, token.ErrBadSignature),
		errors.Is(err, token.ErrMalformed),
		errors.Is(err, token.ErrWrongUse),
		errors.Is(err, ErrVerificationInvalid),
		errors.Is(err, ErrResetInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrMailDelivery):
		return auditErrMailDelivery
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ledger.ErrUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
