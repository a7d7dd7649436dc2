package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/castlefell/authcore"
)

func newAccount(email string) *authcore.Account {
	return &authcore.Account{
		Email:        email,
		DisplayName:  "tester",
		PasswordHash: "$argon2id$v=19$m=16384,t=1,p=1$AAAA$BBBB",
		Provider:     authcore.ProviderLocal,
	}
}

func TestCreateAndFind(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.Create(ctx, newAccount("Alice@Example.com"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Error("created account has no ID")
	}
	if created.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized alice@example.com", created.Email)
	}

	found, err := s.FindByEmail(ctx, "ALICE@example.COM")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("found ID = %q, want %q", found.ID, created.ID)
	}

	if _, err := s.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, authcore.ErrAccountNotFound) {
		t.Errorf("FindByEmail unknown = %v, want ErrAccountNotFound", err)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Create(ctx, newAccount("alice@example.com")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, newAccount("ALICE@example.com")); !errors.Is(err, authcore.ErrDuplicateEmail) {
		t.Errorf("duplicate Create = %v, want ErrDuplicateEmail", err)
	}
}

func TestConcurrentCreateSameEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	const workers = 16
	var successes, duplicates atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, newAccount("race@example.com"))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, authcore.ErrDuplicateEmail):
				duplicates.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Errorf("successes = %d, want exactly 1", successes.Load())
	}
	if duplicates.Load() != workers-1 {
		t.Errorf("duplicates = %d, want %d", duplicates.Load(), workers-1)
	}
}

func TestFindByGoogleID(t *testing.T) {
	s := New()
	ctx := context.Background()

	acct := newAccount("g@example.com")
	acct.Provider = authcore.ProviderGoogle
	acct.GoogleID = "google-sub-1"
	acct.PasswordHash = ""
	acct.Confirmed = true

	created, err := s.Create(ctx, acct)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := s.FindByGoogleID(ctx, "google-sub-1")
	if err != nil {
		t.Fatalf("FindByGoogleID: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("found ID = %q, want %q", found.ID, created.ID)
	}

	if _, err := s.FindByGoogleID(ctx, "missing"); !errors.Is(err, authcore.ErrAccountNotFound) {
		t.Errorf("FindByGoogleID unknown = %v, want ErrAccountNotFound", err)
	}
}

func TestSavePreservesEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.Create(ctx, newAccount("alice@example.com"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	created.DisplayName = "renamed"
	created.Email = "other@example.com"
	if err := s.Save(ctx, created); err != nil {
		t.Fatalf("Save: %v", err)
	}

	found, err := s.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if found.DisplayName != "renamed" {
		t.Errorf("display name = %q, want renamed", found.DisplayName)
	}
	if found.Email != "alice@example.com" {
		t.Errorf("email changed to %q; must be immutable", found.Email)
	}
}

func TestVerificationTokenLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.Create(ctx, newAccount("alice@example.com"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	expires := time.Now().Add(time.Hour)
	if err := s.ReplaceVerificationToken(ctx, created.ID, "hash-1", expires); err != nil {
		t.Fatalf("ReplaceVerificationToken: %v", err)
	}

	confirmed, err := s.ConsumeVerificationToken(ctx, "hash-1")
	if err != nil {
		t.Fatalf("ConsumeVerificationToken: %v", err)
	}
	if !confirmed.Confirmed {
		t.Error("account not confirmed after consume")
	}

	if _, err := s.ConsumeVerificationToken(ctx, "hash-1"); !errors.Is(err, authcore.ErrVerificationInvalid) {
		t.Errorf("replay = %v, want ErrVerificationInvalid", err)
	}
}

func TestVerificationTokenDisplaced(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.Create(ctx, newAccount("alice@example.com"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	expires := time.Now().Add(time.Hour)
	if err := s.ReplaceVerificationToken(ctx, created.ID, "hash-1", expires); err != nil {
		t.Fatalf("ReplaceVerificationToken: %v", err)
	}
	if err := s.ReplaceVerificationToken(ctx, created.ID, "hash-2", expires); err != nil {
		t.Fatalf("ReplaceVerificationToken: %v", err)
	}

	if _, err := s.ConsumeVerificationToken(ctx, "hash-1"); !errors.Is(err, authcore.ErrVerificationInvalid) {
		t.Errorf("displaced token = %v, want ErrVerificationInvalid", err)
	}
	if _, err := s.ConsumeVerificationToken(ctx, "hash-2"); err != nil {
		t.Errorf("current token = %v, want success", err)
	}
}

func TestVerificationTokenExpired(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.Create(ctx, newAccount("alice@example.com"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.ReplaceVerificationToken(ctx, created.ID, "hash-1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("ReplaceVerificationToken: %v", err)
	}
	if _, err := s.ConsumeVerificationToken(ctx, "hash-1"); !errors.Is(err, authcore.ErrVerificationInvalid) {
		t.Errorf("expired token = %v, want ErrVerificationInvalid", err)
	}
}

func TestConsumeResetTokenOnce(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.Create(ctx, newAccount("alice@example.com"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	created.ResetTokenHash = "reset-hash"
	created.ResetTokenExpires = time.Now().Add(time.Hour)
	if err := s.Save(ctx, created); err != nil {
		t.Fatalf("Save: %v", err)
	}

	found, err := s.FindByResetToken(ctx, "reset-hash")
	if err != nil {
		t.Fatalf("FindByResetToken: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("found ID = %q, want %q", found.ID, created.ID)
	}

	const workers = 8
	var successes atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acct, err := s.ConsumeResetToken(ctx, "reset-hash")
			if err == nil {
				if acct.ResetTokenExpires.IsZero() {
					t.Error("consumed account lost its token expiry")
				}
				successes.Add(1)
			} else if !errors.Is(err, authcore.ErrResetInvalid) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Errorf("successful consumes = %d, want exactly 1", successes.Load())
	}
	if _, err := s.FindByResetToken(ctx, "reset-hash"); !errors.Is(err, authcore.ErrAccountNotFound) {
		t.Errorf("token still findable after consume: %v", err)
	}
}

func TestSaveDisplacesResetToken(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.Create(ctx, newAccount("alice@example.com"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	created.ResetTokenHash = "reset-1"
	created.ResetTokenExpires = time.Now().Add(time.Hour)
	if err := s.Save(ctx, created); err != nil {
		t.Fatalf("Save: %v", err)
	}

	created.ResetTokenHash = "reset-2"
	if err := s.Save(ctx, created); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := s.ConsumeResetToken(ctx, "reset-1"); !errors.Is(err, authcore.ErrResetInvalid) {
		t.Errorf("displaced reset token = %v, want ErrResetInvalid", err)
	}
	if _, err := s.ConsumeResetToken(ctx, "reset-2"); err != nil {
		t.Errorf("current reset token = %v, want success", err)
	}
}
