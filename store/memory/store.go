// Package memory provides an in-memory CredentialStore for tests, examples,
// and single-process deployments. All operations are guarded by one mutex,
// which makes the multi-step consume operations trivially atomic.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castlefell/authcore"
)

type verificationToken struct {
	accountID string
	expires   time.Time
}

// Store implements [authcore.CredentialStore] over process-local maps.
// Accounts are copied on every boundary crossing so callers can never
// mutate stored state behind the lock.
type Store struct {
	mu sync.RWMutex

	byID       map[string]*authcore.Account
	byEmail    map[string]string // normalized email -> account ID
	byGoogleID map[string]string // google subject -> account ID

	verifications   map[string]verificationToken // token hash -> target
	veriferByAcct   map[string]string            // account ID -> live token hash
	resetByTokenSHA map[string]string            // reset token hash -> account ID
}

// New returns an empty [Store].
func New() *Store {
	return &Store{
		byID:            make(map[string]*authcore.Account),
		byEmail:         make(map[string]string),
		byGoogleID:      make(map[string]string),
		verifications:   make(map[string]verificationToken),
		veriferByAcct:   make(map[string]string),
		resetByTokenSHA: make(map[string]string),
	}
}

func cloneAccount(a *authcore.Account) *authcore.Account {
	out := *a
	return &out
}

// FindByEmail looks up an account by normalized email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[authcore.NormalizeEmail(email)]
	if !ok {
		return nil, authcore.ErrAccountNotFound
	}
	return cloneAccount(s.byID[id]), nil
}

// FindByGoogleID looks up an account by Google subject identifier.
func (s *Store) FindByGoogleID(ctx context.Context, googleID string) (*authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byGoogleID[googleID]
	if !ok {
		return nil, authcore.ErrAccountNotFound
	}
	return cloneAccount(s.byID[id]), nil
}

// FindByResetToken looks up the account holding the given reset token hash.
func (s *Store) FindByResetToken(ctx context.Context, tokenHash string) (*authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.resetByTokenSHA[tokenHash]
	if !ok {
		return nil, authcore.ErrAccountNotFound
	}
	return cloneAccount(s.byID[id]), nil
}

// Create persists a new account, assigning its ID and timestamps. The email
// uniqueness check and the insert happen under one lock, so concurrent
// creates for the same email yield exactly one success.
func (s *Store) Create(ctx context.Context, account *authcore.Account) (*authcore.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := authcore.NormalizeEmail(account.Email)
	if _, exists := s.byEmail[email]; exists {
		return nil, authcore.ErrDuplicateEmail
	}

	stored := cloneAccount(account)
	stored.ID = uuid.NewString()
	stored.Email = email
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.byID[stored.ID] = stored
	s.byEmail[email] = stored.ID
	if stored.GoogleID != "" {
		s.byGoogleID[stored.GoogleID] = stored.ID
	}

	return cloneAccount(stored), nil
}

// Save persists mutations of an existing account. Email is immutable; the
// stored value wins over whatever the caller set.
func (s *Store) Save(ctx context.Context, account *authcore.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[account.ID]
	if !ok {
		return authcore.ErrAccountNotFound
	}

	if stored.ResetTokenHash != "" && stored.ResetTokenHash != account.ResetTokenHash {
		delete(s.resetByTokenSHA, stored.ResetTokenHash)
	}

	updated := cloneAccount(account)
	updated.Email = stored.Email
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	s.byID[account.ID] = updated
	if updated.GoogleID != "" {
		s.byGoogleID[updated.GoogleID] = updated.ID
	}
	if updated.ResetTokenHash != "" {
		s.resetByTokenSHA[updated.ResetTokenHash] = updated.ID
	}

	return nil
}

// ReplaceVerificationToken installs tokenHash as the account's single
// outstanding verification token, displacing any prior one.
func (s *Store) ReplaceVerificationToken(ctx context.Context, accountID, tokenHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[accountID]; !ok {
		return authcore.ErrAccountNotFound
	}

	if prior, ok := s.veriferByAcct[accountID]; ok {
		delete(s.verifications, prior)
	}
	s.verifications[tokenHash] = verificationToken{accountID: accountID, expires: expires}
	s.veriferByAcct[accountID] = tokenHash

	return nil
}

// ConsumeVerificationToken deletes the matching token and marks the owning
// account confirmed, all under one lock. Replays, unknown tokens, and
// expired tokens fail with [authcore.ErrVerificationInvalid].
func (s *Store) ConsumeVerificationToken(ctx context.Context, tokenHash string) (*authcore.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.verifications[tokenHash]
	if !ok {
		return nil, authcore.ErrVerificationInvalid
	}

	delete(s.verifications, tokenHash)
	delete(s.veriferByAcct, target.accountID)

	if time.Now().After(target.expires) {
		return nil, authcore.ErrVerificationInvalid
	}

	stored, ok := s.byID[target.accountID]
	if !ok {
		return nil, authcore.ErrVerificationInvalid
	}

	stored.Confirmed = true
	stored.UpdatedAt = time.Now().UTC()
	return cloneAccount(stored), nil
}

// ConsumeResetToken clears the matching reset token from its account and
// returns the account with the consumed token's expiry preserved. A second
// consume of the same hash fails with [authcore.ErrResetInvalid].
func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash string) (*authcore.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.resetByTokenSHA[tokenHash]
	if !ok {
		return nil, authcore.ErrResetInvalid
	}
	stored, ok := s.byID[id]
	if !ok || stored.ResetTokenHash != tokenHash {
		delete(s.resetByTokenSHA, tokenHash)
		return nil, authcore.ErrResetInvalid
	}

	out := cloneAccount(stored)

	delete(s.resetByTokenSHA, tokenHash)
	stored.ResetTokenHash = ""
	stored.ResetTokenExpires = time.Time{}
	stored.UpdatedAt = time.Now().UTC()

	return out, nil
}
