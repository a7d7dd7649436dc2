package authcore

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/castlefell/authcore/internal"
)

// Register creates a local account and starts email verification. It never
// mints tokens: the new account cannot log in until [Engine.VerifyEmail]
// confirms its address. Verification mail failure is reported through audit
// and metrics but does not undo the registration.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	if e == nil || e.store == nil {
		return RegisterResult{}, ErrEngineNotReady
	}

	email := NormalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		e.metricInc(MetricRegisterFailure)
		return RegisterResult{}, err
	}
	if req.DisplayName == "" {
		e.metricInc(MetricRegisterFailure)
		return RegisterResult{}, fmt.Errorf("%w: display name required", ErrInvalidInput)
	}
	if req.Password != req.ConfirmPassword {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, ErrPasswordMismatch, nil)
		return RegisterResult{}, ErrPasswordMismatch
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		return RegisterResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	account, err := e.store.Create(ctx, &Account{
		Email:        email,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Provider:     ProviderLocal,
		Confirmed:    false,
	})
	if err != nil {
		err = e.storeErr(err)
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", email, err, nil)
		} else {
			e.metricInc(MetricRegisterFailure)
			e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, err, nil)
		}
		return RegisterResult{}, err
	}

	pending := e.beginVerification(ctx, account)

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, account.ID, email, nil, nil)

	return RegisterResult{
		AccountID:           account.ID,
		Email:               account.Email,
		PendingVerification: pending,
	}, nil
}

// ResendVerification issues a fresh verification token for an unconfirmed
// account, displacing any outstanding one, and mails it.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	email = NormalizeEmail(email)
	account, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		return e.storeErr(err)
	}
	if account.Confirmed {
		return fmt.Errorf("%w: account already verified", ErrInvalidInput)
	}

	if !e.beginVerification(ctx, account) {
		return ErrMailDelivery
	}

	e.emitAudit(ctx, auditEventVerifyResend, true, account.ID, email, nil, nil)
	return nil
}

// beginVerification stores a fresh verification token for account and mails
// it. Returns false when the token could not be delivered.
func (e *Engine) beginVerification(ctx context.Context, account *Account) bool {
	raw, err := internal.NewOpaqueToken()
	if err != nil {
		return false
	}

	expires := time.Now().Add(e.config.Verification.TokenTTL)
	if err := e.store.ReplaceVerificationToken(ctx, account.ID, internal.HashToken(raw), expires); err != nil {
		e.emitAudit(ctx, auditEventVerifyFailure, false, account.ID, account.Email, e.storeErr(err), nil)
		return false
	}

	e.sendMail(ctx, account, "Verify your email address", verificationBody(e.config.Mail.VerificationURL, raw))
	return true
}

// sendMail delivers best-effort. Failures are audited and counted, never
// returned to the caller.
func (e *Engine) sendMail(ctx context.Context, account *Account, subject, body string) {
	if e.mail == nil {
		return
	}
	if err := e.mail.Send(ctx, account.Email, subject, body); err != nil {
		e.metricInc(MetricMailFailure)
		e.emitAudit(ctx, auditEventMailFailure, false, account.ID, account.Email, ErrMailDelivery, map[string]string{
			"subject": subject,
		})
	}
}

func verificationBody(baseURL, rawToken string) string {
	if baseURL == "" {
		return "Your verification token: " + rawToken
	}
	return "Confirm your email address: " + baseURL + "?token=" + rawToken
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: malformed email address", ErrInvalidInput)
	}
	return nil
}
