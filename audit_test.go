package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAuditEventsFlowToSink(t *testing.T) {
	sink := NewChannelSink(64)

	mr, rdb := newTestRedisClient(t)
	_ = mr

	engine, err := New().
		WithConfig(func() Config {
			cfg := testConfig()
			cfg.Audit.Enabled = true
			return cfg
		}()).
		WithRedis(rdb).
		WithCredentialStore(newMockStore()).
		WithMailSender(&mockMail{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := WithClientIP(WithRequestID(context.Background(), "req-1"), "203.0.113.9")
	_, loginErr := engine.Login(ctx, "nobody@example.com", "whatever pass")
	if !errors.Is(loginErr, ErrAccountNotFound) {
		t.Fatalf("Login = %v", loginErr)
	}

	select {
	case event := <-sink.Events():
		if event.EventType != auditEventLoginFailure {
			t.Errorf("event type = %q", event.EventType)
		}
		if event.Success {
			t.Error("failed login audited as success")
		}
		if event.Error != string(auditErrAccountNotFound) {
			t.Errorf("event error = %q", event.Error)
		}
		if event.IP != "203.0.113.9" || event.RequestID != "req-1" {
			t.Errorf("context fields = ip %q request %q", event.IP, event.RequestID)
		}
	case <-time.After(time.Second):
		t.Fatal("no audit event emitted")
	}
}

func TestJSONWriterSinkOutput(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLoginSuccess,
		AccountID: "acct-1",
		Success:   true,
	})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("sink output not JSON: %v", err)
	}
	if decoded["event_type"] != auditEventLoginSuccess {
		t.Errorf("event_type = %v", decoded["event_type"])
	}
	if decoded["account_id"] != "acct-1" {
		t.Errorf("account_id = %v", decoded["account_id"])
	}
}

func TestClassifyAuditError(t *testing.T) {
	cases := []struct {
		err  error
		want auditErrorCode
	}{
		{nil, ""},
		{ErrInvalidCredentials, auditErrInvalidCredentials},
		{ErrAccountUnverified, auditErrAccountUnverified},
		{ErrRefreshRevoked, auditErrTokenRevoked},
		{ErrTokenExpired, auditErrTokenExpired},
		{ErrBadSignature, auditErrTokenInvalid},
		{ErrStoreUnavailable, auditErrUnavailable},
		{errors.New("surprise"), auditErrInternal},
	}
	for _, tc := range cases {
		if got := classifyAuditError(tc.err); got != tc.want {
			t.Errorf("classifyAuditError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
