package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/castlefell/authcore/ledger"
)

// Refresh exchanges a live refresh token for a fresh token pair. The token
// must both verify cryptographically and hold a live ledger entry; a revoked
// token fails here no matter how much signed lifetime it has left. The new
// access token is minted from the refresh token's claims without re-reading
// the account, so profile changes made since the last login surface only
// after the next full login or name change.
//
// With rotation enabled the presented token is revoked and a new refresh
// token returned; a second presentation of the old token fails with
// [ErrRefreshRevoked].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || e.ledger == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	claims, err := e.signer.VerifyRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", err, nil)
		return TokenPair{}, err
	}

	accountID := claims.AccountID()

	rec, err := e.ledger.Lookup(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			e.metricInc(MetricRefreshRevoked)
			e.emitAudit(ctx, auditEventRefreshRevoked, false, accountID, claims.Email, ErrRefreshRevoked, nil)
			return TokenPair{}, ErrRefreshRevoked
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, accountID, claims.Email, err, nil)
		return TokenPair{}, err
	}

	// A ledger entry bound to a different account means the entry cannot
	// be trusted; treat the token as revoked.
	if rec.AccountID != accountID {
		e.metricInc(MetricRefreshRevoked)
		e.emitAudit(ctx, auditEventRefreshRevoked, false, accountID, claims.Email, ErrRefreshRevoked, nil)
		return TokenPair{}, ErrRefreshRevoked
	}

	payload := claims.Payload()

	access, err := e.signer.MintAccess(accountID, payload)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, err
	}

	pair := TokenPair{AccessToken: access, RefreshToken: refreshToken}

	if e.config.Refresh.Rotate {
		next, err := e.signer.MintRefresh(accountID, payload)
		if err != nil {
			e.metricInc(MetricRefreshFailure)
			return TokenPair{}, err
		}
		expiresAt := time.Now().Add(e.config.JWT.RefreshTTL)
		if err := e.ledger.Issue(ctx, next, accountID, expiresAt); err != nil {
			e.metricInc(MetricRefreshFailure)
			return TokenPair{}, err
		}
		// Revoke only after the successor is ledgered, so a crash between
		// the two writes leaves the caller with a working token.
		if err := e.ledger.Revoke(ctx, refreshToken, accountID); err != nil {
			e.metricInc(MetricRefreshFailure)
			return TokenPair{}, err
		}
		pair.RefreshToken = next
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, accountID, claims.Email, nil, map[string]string{
		"rotated": boolString(e.config.Refresh.Rotate),
	})
	return pair, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
