package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/castlefell/authcore/token"
)

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEngine(t, nil)
	env.registerVerified(t)
	ctx := context.Background()
	pair := env.login(t)

	next, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.AccessToken == "" || next.RefreshToken == "" {
		t.Fatal("refresh returned empty tokens")
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Error("rotation kept the old refresh token")
	}

	// The rotated-out token is revoked.
	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Errorf("old token after rotation = %v, want ErrRefreshRevoked", err)
	}

	// The successor keeps working.
	if _, err := env.engine.Refresh(ctx, next.RefreshToken); err != nil {
		t.Errorf("successor Refresh: %v", err)
	}
}

func TestRefreshWithoutRotation(t *testing.T) {
	env := newTestEngine(t, func(cfg *Config) {
		cfg.Refresh.Rotate = false
	})
	env.registerVerified(t)
	ctx := context.Background()
	pair := env.login(t)

	next, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken != pair.RefreshToken {
		t.Error("rotation disabled but refresh token changed")
	}

	// The same token refreshes repeatedly.
	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Errorf("second Refresh: %v", err)
	}
}

func TestRefreshMintsFromClaimsNotStore(t *testing.T) {
	env := newTestEngine(t, nil)
	env.registerVerified(t)
	ctx := context.Background()
	pair := env.login(t)

	// A store outage must not affect refresh; the payload comes from the
	// presented token.
	env.store.failAll = true

	next, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh during store outage: %v", err)
	}

	identity, err := env.engine.ValidateAccess(ctx, next.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if identity.DisplayName != testName {
		t.Errorf("display name = %q, want %q", identity.DisplayName, testName)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	env := newTestEngine(t, nil)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := env.engine.Refresh(context.Background(), tok); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("Refresh(%q) = %v, want ErrTokenMalformed", tok, err)
		}
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEngine(t, nil)
	env.registerVerified(t)
	pair := env.login(t)

	if _, err := env.engine.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, token.ErrWrongUse) {
		t.Errorf("Refresh(access token) = %v, want ErrWrongUse", err)
	}
}

func TestRefreshRevocationBeatsSignature(t *testing.T) {
	env := newTestEngine(t, nil)
	result := env.registerVerified(t)
	ctx := context.Background()
	pair := env.login(t)

	// The token still verifies cryptographically with years of signed
	// lifetime left, but the ledger says no.
	if _, err := env.engine.LogoutAll(ctx, result.AccountID); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Errorf("Refresh = %v, want ErrRefreshRevoked", err)
	}

	snap := env.engine.MetricsSnapshot()
	if got := snap.Counters[MetricRefreshRevoked]; got != 1 {
		t.Errorf("revoked metric = %d, want 1", got)
	}
}

func TestRefreshExpiredLedgerEntry(t *testing.T) {
	env := newTestEngine(t, nil)
	env.registerVerified(t)
	ctx := context.Background()
	pair := env.login(t)

	// Redis drops the entry when the signed lifetime ends; the engine
	// reports the token as revoked rather than expired.
	env.redis.FastForward(8 * 24 * time.Hour)

	_, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, ErrRefreshRevoked) && !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Refresh = %v, want ErrRefreshRevoked or ErrTokenExpired", err)
	}
}

func TestRefreshLedgerUnavailable(t *testing.T) {
	env := newTestEngine(t, nil)
	env.registerVerified(t)
	pair := env.login(t)

	env.redis.Close()

	_, err := env.engine.Refresh(context.Background(), pair.RefreshToken)
	if err == nil {
		t.Fatal("Refresh succeeded with the ledger down")
	}
	if errors.Is(err, ErrRefreshRevoked) {
		t.Error("ledger outage misreported as revocation")
	}
}
