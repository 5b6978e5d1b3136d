package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newBufferAuditor(enabled bool) (*Auditor, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewAuditor(logger, enabled), &buf
}

func TestAuditor_LogEvent(t *testing.T) {
	auditor, buf := newBufferAuditor(true)

	auditor.LogEvent(Event{
		Type:      EventTokenIssued,
		UserID:    "operator",
		ClientID:  "chatgpt-apps-sdk",
		IPAddress: "203.0.113.7",
		Details:   map[string]any{"scope": "loadouts:read"},
	})

	out := buf.String()
	if out == "" {
		t.Fatal("expected audit output")
	}
	if !strings.Contains(out, EventTokenIssued) {
		t.Errorf("output missing event type: %s", out)
	}
	if !strings.Contains(out, "chatgpt-apps-sdk") {
		t.Errorf("output missing client ID: %s", out)
	}
}

func TestAuditor_Disabled(t *testing.T) {
	auditor, buf := newBufferAuditor(false)

	auditor.LogEvent(Event{Type: EventAuthFailure, UserID: "operator"})
	auditor.LogTokenIssued("operator", "client", "203.0.113.7", "loadouts:read")

	if buf.Len() != 0 {
		t.Errorf("disabled auditor should not log, got: %s", buf.String())
	}
}

func TestAuditor_NilReceiver(t *testing.T) {
	var auditor *Auditor

	// Every logging method must be safe on a nil auditor.
	auditor.LogEvent(Event{Type: EventAuthFailure})
	auditor.LogTokenIssued("u", "c", "ip", "s")
	auditor.LogTokenRefreshed("u", "c", "ip", true)
	auditor.LogTokenRevoked("u", "c", "ip", "access")
	auditor.LogAuthFailure("u", "c", "ip", "bad secret")
	auditor.LogRateLimitExceeded("ip", "u")
	auditor.LogClientRegistered("c", "public", "ip")
	auditor.LogToolInvoked("u", "sess", "search_weapons", true)
}

func TestAuditor_HashesUserID(t *testing.T) {
	auditor, buf := newBufferAuditor(true)

	auditor.LogTokenIssued("operator", "client", "203.0.113.7", "loadouts:read")

	out := buf.String()
	if strings.Contains(out, "user_id_hash=operator") {
		t.Error("raw user ID leaked into audit log")
	}
	if !strings.Contains(out, "user_id_hash="+hashForLogging("operator")) {
		t.Errorf("expected hashed user ID in output: %s", out)
	}
}

func TestHashForLogging(t *testing.T) {
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q, want <empty>", got)
	}

	h1 := hashForLogging("operator")
	h2 := hashForLogging("operator")
	if h1 != h2 {
		t.Error("hash must be deterministic")
	}
	if len(h1) != 16 {
		t.Errorf("hash length = %d, want 16", len(h1))
	}
	if h1 == "operator" {
		t.Error("hash must not equal the input")
	}
	if h1 == hashForLogging("someone-else") {
		t.Error("distinct inputs should hash differently")
	}
}
