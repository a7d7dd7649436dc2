package authcore

import (
	"context"
	"fmt"
)

// ChangeDisplayName renames the account behind a verified access token and
// returns the old and new names along with a freshly minted token pair
// carrying the new name. Token pairs issued before the change keep the old
// name in their claims until they expire or are refreshed away.
func (e *Engine) ChangeDisplayName(ctx context.Context, accessToken, newName string) (NameChangeResult, error) {
	if e == nil || e.store == nil {
		return NameChangeResult{}, ErrEngineNotReady
	}
	if newName == "" {
		return NameChangeResult{}, fmt.Errorf("%w: display name required", ErrInvalidInput)
	}

	claims, err := e.signer.VerifyAccess(accessToken)
	if err != nil {
		return NameChangeResult{}, err
	}

	account, err := e.store.FindByEmail(ctx, NormalizeEmail(claims.Email))
	if err != nil {
		return NameChangeResult{}, e.storeErr(err)
	}
	if account.ID != claims.AccountID() {
		return NameChangeResult{}, ErrUnauthorized
	}

	oldName := account.DisplayName
	account.DisplayName = newName
	if err := e.store.Save(ctx, account); err != nil {
		return NameChangeResult{}, e.storeErr(err)
	}

	pair, err := e.mintTokenPair(ctx, account)
	if err != nil {
		return NameChangeResult{}, err
	}

	e.metricInc(MetricNameChange)
	e.emitAudit(ctx, auditEventNameChange, true, account.ID, account.Email, nil, map[string]string{
		"old_name": oldName,
		"new_name": newName,
	})

	return NameChangeResult{
		OldName: oldName,
		NewName: newName,
		Tokens:  pair,
	}, nil
}
