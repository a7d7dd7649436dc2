package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/castlefell/authcore/internal/audit"
	"github.com/castlefell/authcore/ledger"
	"github.com/castlefell/authcore/password"
	"github.com/castlefell/authcore/token"
)

// Engine is the credential and token lifecycle engine. Build one through
// [Builder]; it is immutable and safe for concurrent use afterwards.
type Engine struct {
	config Config

	store  CredentialStore
	ledger *ledger.Store
	signer *token.Manager
	hasher *password.Hasher
	mail   MailSender

	audit   *audit.Dispatcher
	metrics *Metrics
}

// Identity is the verified subject of an access token.
type Identity struct {
	AccountID   string
	Email       string
	DisplayName string
	Provider    Provider
	Confirmed   bool
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
LOGIN
====================================
*/

// Login authenticates a local account by email and password and returns a
// fresh token pair. Unverified accounts are rejected when the configuration
// requires confirmation, even with the correct password.
func (e *Engine) Login(ctx context.Context, email, pass string) (TokenPair, error) {
	if e == nil || e.store == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	email = NormalizeEmail(email)
	if email == "" || pass == "" {
		return TokenPair{}, fmt.Errorf("%w: email and password required", ErrInvalidInput)
	}

	account, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		err = e.storeErr(err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", email, err, nil)
		return TokenPair{}, err
	}

	if account.Provider != ProviderLocal || account.PasswordHash == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, email, ErrInvalidCredentials, map[string]string{
			"provider": string(account.Provider),
		})
		return TokenPair{}, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(pass, account.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, email, ErrInvalidCredentials, nil)
		return TokenPair{}, ErrInvalidCredentials
	}

	if e.config.Verification.RequireForLogin && !account.Confirmed {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, email, ErrAccountUnverified, nil)
		return TokenPair{}, ErrAccountUnverified
	}

	if e.config.Password.UpgradeOnLogin {
		e.maybeUpgradeHash(ctx, account, pass)
	}

	pair, err := e.mintTokenPair(ctx, account)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, email, err, nil)
		return TokenPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.ID, email, nil, nil)
	return pair, nil
}

// LoginGoogle authenticates a Google-verified identity, creating a confirmed
// account on first sight. An identity whose email is already registered to a
// local account is rejected with [ErrDuplicateEmail]; account linking is not
// performed.
func (e *Engine) LoginGoogle(ctx context.Context, identity ExternalIdentity) (TokenPair, error) {
	if e == nil || e.store == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if identity.ID == "" || identity.Email == "" {
		return TokenPair{}, fmt.Errorf("%w: external identity incomplete", ErrInvalidInput)
	}

	email := NormalizeEmail(identity.Email)

	account, err := e.store.FindByGoogleID(ctx, identity.ID)
	switch {
	case err == nil:
	case errors.Is(err, ErrAccountNotFound):
		account, err = e.createGoogleAccount(ctx, identity, email)
		if err != nil {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventGoogleLoginFailure, false, "", email, err, nil)
			return TokenPair{}, err
		}
	default:
		err = e.storeErr(err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventGoogleLoginFailure, false, "", email, err, nil)
		return TokenPair{}, err
	}

	pair, err := e.mintTokenPair(ctx, account)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventGoogleLoginFailure, false, account.ID, email, err, nil)
		return TokenPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventGoogleLoginSuccess, true, account.ID, email, nil, nil)
	return pair, nil
}

func (e *Engine) createGoogleAccount(ctx context.Context, identity ExternalIdentity, email string) (*Account, error) {
	if _, err := e.store.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, e.storeErr(err)
	}

	name := identity.DisplayName
	if name == "" {
		name = email
	}

	account, err := e.store.Create(ctx, &Account{
		Email:       email,
		DisplayName: name,
		Provider:    ProviderGoogle,
		GoogleID:    identity.ID,
		Confirmed:   true,
	})
	if err != nil {
		return nil, e.storeErr(err)
	}

	e.emitAudit(ctx, auditEventGoogleAccountLinked, true, account.ID, email, nil, nil)
	return account, nil
}

/*
====================================
TOKEN VALIDATION / REVOCATION
====================================
*/

// ValidateAccess verifies an access token and returns the identity it was
// minted for. No storage is consulted; an access token stays valid until it
// expires even if the account changed meanwhile.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*Identity, error) {
	if e == nil || e.signer == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.signer.VerifyAccess(tokenStr)
	if err != nil {
		return nil, err
	}

	return identityFromClaims(claims), nil
}

// Logout revokes the presented refresh token. The matching access token
// stays valid until its expiry; only the refresh lineage ends here. Revoking
// an already revoked token succeeds.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.ledger == nil {
		return ErrEngineNotReady
	}

	claims, err := e.signer.VerifyRefresh(refreshToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogout, false, "", "", err, nil)
		return err
	}

	if err := e.ledger.Revoke(ctx, refreshToken, claims.AccountID()); err != nil {
		e.emitAudit(ctx, auditEventLogout, false, claims.AccountID(), claims.Email, err, nil)
		return err
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventLogout, true, claims.AccountID(), claims.Email, nil, nil)
	return nil
}

// LogoutAll revokes every live refresh token for an account and reports how
// many were revoked.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) (int, error) {
	if e == nil || e.ledger == nil {
		return 0, ErrEngineNotReady
	}
	if accountID == "" {
		return 0, fmt.Errorf("%w: account id required", ErrInvalidInput)
	}

	n, err := e.ledger.RevokeAllForAccount(ctx, accountID)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutAll, false, accountID, "", err, nil)
		return 0, err
	}

	e.metricInc(MetricSessionsPurged)
	e.emitAudit(ctx, auditEventLogoutAll, true, accountID, "", nil, map[string]string{
		"revoked": fmt.Sprintf("%d", n),
	})
	return n, nil
}

/*
====================================
SHARED HELPERS
====================================
*/

// mintTokenPair signs an access and refresh token for account and records
// the refresh token in the ledger. A pair whose ledger write failed is never
// returned: an unledgered refresh token would be unrevocable.
func (e *Engine) mintTokenPair(ctx context.Context, account *Account) (TokenPair, error) {
	payload := payloadFromAccount(account)

	access, err := e.signer.MintAccess(account.ID, payload)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := e.signer.MintRefresh(account.ID, payload)
	if err != nil {
		return TokenPair{}, err
	}

	expiresAt := time.Now().Add(e.config.JWT.RefreshTTL)
	if err := e.ledger.Issue(ctx, refresh, account.ID, expiresAt); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// maybeUpgradeHash re-hashes the password under current parameters when the
// stored hash is weaker. Failure here never fails the login.
func (e *Engine) maybeUpgradeHash(ctx context.Context, account *Account, pass string) {
	upgrade, err := e.hasher.NeedsRehash(account.PasswordHash)
	if err != nil || !upgrade {
		return
	}

	rehashed, err := e.hasher.Hash(pass)
	if err != nil {
		return
	}

	account.PasswordHash = rehashed
	_ = e.store.Save(ctx, account)
}

// storeErr passes through the engine's own sentinels and wraps everything
// else as a backend failure so no driver error crosses the API boundary.
func (e *Engine) storeErr(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		ErrAccountNotFound,
		ErrDuplicateEmail,
		ErrVerificationInvalid,
		ErrResetInvalid,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func payloadFromAccount(account *Account) token.Payload {
	return token.Payload{
		DisplayName: account.DisplayName,
		Email:       account.Email,
		Provider:    string(account.Provider),
		Confirmed:   account.Confirmed,
	}
}

func identityFromClaims(claims *token.Claims) *Identity {
	return &Identity{
		AccountID:   claims.AccountID(),
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Provider:    Provider(claims.Provider),
		Confirmed:   claims.Confirmed,
	}
}

// NormalizeEmail lower-cases and trims an email address. Store adapters must
// apply the same normalization when indexing.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
