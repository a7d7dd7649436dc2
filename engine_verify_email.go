package authcore

import (
	"context"

	"github.com/castlefell/authcore/internal"
)

// VerifyEmail consumes an email verification token and marks the owning
// account confirmed. Tokens are single use: replaying one, presenting an
// expired one, or presenting one displaced by a resend all fail with
// [ErrVerificationInvalid].
func (e *Engine) VerifyEmail(ctx context.Context, rawToken string) (*Account, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if rawToken == "" {
		e.metricInc(MetricVerifyFailure)
		return nil, ErrVerificationInvalid
	}

	account, err := e.store.ConsumeVerificationToken(ctx, internal.HashToken(rawToken))
	if err != nil {
		err = e.storeErr(err)
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerifyFailure, false, "", "", err, nil)
		return nil, err
	}

	e.metricInc(MetricVerifySuccess)
	e.emitAudit(ctx, auditEventVerifySuccess, true, account.ID, account.Email, nil, nil)
	return account, nil
}
