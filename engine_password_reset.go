package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/castlefell/authcore/internal"
)

// RequestPasswordReset issues a single-use reset token for a local account
// and mails it. A new request displaces any outstanding token. Google-backed
// accounts have no password to reset.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	email = NormalizeEmail(email)
	account, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		err = e.storeErr(err)
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, auditEventResetFailure, false, "", email, err, nil)
		return err
	}
	if account.Provider != ProviderLocal {
		e.metricInc(MetricResetFailure)
		return fmt.Errorf("%w: account has no password credential", ErrInvalidInput)
	}

	raw, err := internal.NewOpaqueToken()
	if err != nil {
		return err
	}

	account.ResetTokenHash = internal.HashToken(raw)
	account.ResetTokenExpires = time.Now().Add(e.config.Reset.TokenTTL)
	if err := e.store.Save(ctx, account); err != nil {
		err = e.storeErr(err)
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, auditEventResetFailure, false, account.ID, email, err, nil)
		return err
	}

	e.sendMail(ctx, account, "Reset your password", resetBody(e.config.Mail.ResetURL, raw))

	e.metricInc(MetricResetRequest)
	e.emitAudit(ctx, auditEventResetRequest, true, account.ID, email, nil, nil)
	return nil
}

// CompletePasswordReset consumes a reset token and installs the new
// password. The token is burned on first use, so a double-submitted reset
// form changes the password exactly once. When configured, every live
// refresh token for the account is revoked so stolen sessions die with the
// old password.
func (e *Engine) CompletePasswordReset(ctx context.Context, rawToken, newPassword, confirmPassword string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if rawToken == "" {
		e.metricInc(MetricResetFailure)
		return ErrResetInvalid
	}
	if newPassword != confirmPassword {
		e.metricInc(MetricResetFailure)
		return ErrPasswordMismatch
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		e.metricInc(MetricResetFailure)
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	account, err := e.store.ConsumeResetToken(ctx, internal.HashToken(rawToken))
	if err != nil {
		err = e.storeErr(err)
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, auditEventResetFailure, false, "", "", err, nil)
		return err
	}

	// The consume call burned the token either way; an expired one still
	// must not change the password.
	if !account.ResetTokenExpires.IsZero() && time.Now().After(account.ResetTokenExpires) {
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, auditEventResetFailure, false, account.ID, account.Email, ErrResetInvalid, nil)
		return ErrResetInvalid
	}

	account.PasswordHash = hash
	account.ResetTokenHash = ""
	account.ResetTokenExpires = time.Time{}
	if err := e.store.Save(ctx, account); err != nil {
		err = e.storeErr(err)
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, auditEventResetFailure, false, account.ID, account.Email, err, nil)
		return err
	}

	if e.config.Refresh.RevokeOnPasswordReset {
		if n, err := e.ledger.RevokeAllForAccount(ctx, account.ID); err == nil && n > 0 {
			e.metricInc(MetricSessionsPurged)
		}
	}

	e.metricInc(MetricResetSuccess)
	e.emitAudit(ctx, auditEventResetSuccess, true, account.ID, account.Email, nil, nil)
	return nil
}

func resetBody(baseURL, rawToken string) string {
	if baseURL == "" {
		return "Your password reset token: " + rawToken
	}
	return "Reset your password: " + baseURL + "?token=" + rawToken
}
