package authcore

import (
	"fmt"
	"testing"
)

func TestCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{ErrAccountNotFound, CodeAccountNotFound},
		{ErrInvalidCredentials, CodeInvalidCredentials},
		{ErrAccountUnverified, CodeInvalidCredentials},
		{ErrUnauthorized, CodeInvalidCredentials},
		{ErrDuplicateEmail, CodeDuplicateEmail},
		{ErrPasswordMismatch, CodeConfirmMismatch},
		{ErrVerificationInvalid, CodeVerificationInvalid},
		{ErrResetInvalid, CodeTokenInvalid},
		{ErrRefreshRevoked, CodeTokenInvalid},
		{ErrTokenExpired, CodeTokenInvalid},
		{ErrTokenMalformed, CodeTokenInvalid},
		{ErrBadSignature, CodeTokenInvalid},
		{ErrStoreUnavailable, CodeUnknown},
		{fmt.Errorf("arbitrary"), CodeUnknown},
	}
	for _, tc := range cases {
		if got := Code(tc.err); got != tc.want {
			t.Errorf("Code(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestCodeSeesWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", ErrInvalidCredentials)
	if got := Code(wrapped); got != CodeInvalidCredentials {
		t.Errorf("Code(wrapped) = %s, want %s", got, CodeInvalidCredentials)
	}
}

func TestMessageLocalization(t *testing.T) {
	if got := Message(CodeAccountNotFound, LangEn); got != "User not found" {
		t.Errorf("en message = %q", got)
	}
	if got := Message(CodeAccountNotFound, LangCn); got != "找不到用戶" {
		t.Errorf("cn message = %q", got)
	}
}

func TestMessageFallbacks(t *testing.T) {
	if got := Message(ErrorCode("E_9999"), LangEn); got != "Unknown error" {
		t.Errorf("unknown code message = %q", got)
	}
	if got := Message(CodeAccountNotFound, Lang("fr")); got != "User not found" {
		t.Errorf("unknown lang message = %q", got)
	}
}
