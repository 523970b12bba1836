package push

import (
	"encoding/base64"
	"log/slog"
	"testing"

	"github.com/calebwray/tock/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	if pub == "" {
		t.Error("expected non-empty public key")
	}
	if priv == "" {
		t.Error("expected non-empty private key")
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key should be base64url-encoded, 32 bytes P-256 scalar
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	// Generate again — should be different
	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func TestServiceConfigured(t *testing.T) {
	if NewService("", "", "").Configured() {
		t.Error("service without keys should not be configured")
	}
	if !NewService("pub", "priv", "").Configured() {
		t.Error("service with keys should be configured")
	}
}

type recordingStore struct {
	listed  int
	deleted []string
}

func (s *recordingStore) ListByUser(userID int64) ([]model.PushSubscription, error) {
	s.listed++
	return nil, nil
}

func (s *recordingStore) DeleteByEndpoint(endpoint string) error {
	s.deleted = append(s.deleted, endpoint)
	return nil
}

func TestFanoutSkipsWhenUnconfigured(t *testing.T) {
	store := &recordingStore{}
	f := NewFanout(NewService("", "", ""), store, slog.New(slog.DiscardHandler))

	if err := f.SendToUser(1, Payload{Title: "x"}); err != nil {
		t.Fatalf("send to user: %v", err)
	}
	if store.listed != 0 {
		t.Error("unconfigured service should not even list subscriptions")
	}
}

func TestFanoutNoSubscriptions(t *testing.T) {
	store := &recordingStore{}
	f := NewFanout(NewService("pub", "priv", ""), store, slog.New(slog.DiscardHandler))

	if err := f.SendToUser(1, Payload{Title: "x"}); err != nil {
		t.Fatalf("send to user: %v", err)
	}
	if store.listed != 1 {
		t.Errorf("listed = %d, want 1", store.listed)
	}
	if len(store.deleted) != 0 {
		t.Errorf("deleted = %v, want none", store.deleted)
	}
}
