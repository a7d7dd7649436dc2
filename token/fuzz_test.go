package token

import (
	"errors"
	"testing"
	"time"
)

// FuzzVerifyAccess ensures arbitrary input never panics verification
// and only ever fails with one of the package's sentinel errors.
func FuzzVerifyAccess(f *testing.F) {
	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		Secret:        []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		f.Fatalf("NewManager: %v", err)
	}

	valid, err := m.MintAccess("acct-1", Payload{DisplayName: "n", Email: "e", Provider: "local"})
	if err != nil {
		f.Fatalf("MintAccess: %v", err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.e30.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := m.VerifyAccess(input)
		if err == nil {
			if claims == nil || claims.Use != UseAccess {
				t.Errorf("verified token with claims %+v", claims)
			}
			return
		}
		if !errors.Is(err, ErrExpired) &&
			!errors.Is(err, ErrBadSignature) &&
			!errors.Is(err, ErrMalformed) &&
			!errors.Is(err, ErrWrongUse) {
			t.Errorf("unexpected error kind: %v", err)
		}
	})
}
