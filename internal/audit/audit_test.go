package audit

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:4433"
	if got := ClientIP(req); got != "10.0.0.5" {
		t.Fatalf("expected remote host, got %q", got)
	}
	req.Header.Set("X-Real-IP", "192.168.1.9")
	if got := ClientIP(req); got != "192.168.1.9" {
		t.Fatalf("expected real ip, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected forwarded ip, got %q", got)
	}
}

func TestZapLoggerCompletesEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := NewZapLogger(zap.New(core))
	if err := logger.Log(context.Background(), Entry{Action: "shift_closure.create", Metadata: []byte(`{"a":1}`)}); err != nil {
		t.Fatalf("log: %v", err)
	}
	entries := logs.All()
	if len(entries) != 1 || entries[0].Message != "shift_closure.create" {
		t.Fatalf("unexpected log entries %+v", entries)
	}
	fields := entries[0].ContextMap()
	if id, _ := fields["audit_id"].(string); !strings.HasPrefix(id, "audit-") {
		t.Fatalf("expected generated id, got %v", fields["audit_id"])
	}
	if digest, _ := fields["payload_digest"].(string); len(digest) != 64 {
		t.Fatalf("expected sha256 digest, got %v", fields["payload_digest"])
	}
}
