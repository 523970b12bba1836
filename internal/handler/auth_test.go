package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calebwray/tock/internal/database"
	"github.com/calebwray/tock/internal/middleware"
	"github.com/calebwray/tock/internal/store"
)

func setupAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.DiscardHandler)
	return NewAuthHandler(store.NewUserStore(db), store.NewSessionStore(db), logger)
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestRegisterSetsSessionCookie(t *testing.T) {
	h := setupAuthHandler(t)

	rec := postJSON(t, h.Register, map[string]string{
		"email":    "Ann@Example.com",
		"name":     "Ann",
		"password": "correct horse",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected session cookie to be set")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	var user map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if user["email"] != "ann@example.com" {
		t.Errorf("email = %v, want lowercased ann@example.com", user["email"])
	}
	if _, ok := user["password_hash"]; ok {
		t.Error("password hash must not appear in the response")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := setupAuthHandler(t)

	body := map[string]string{"email": "bob@example.com", "password": "long enough"}
	if rec := postJSON(t, h.Register, body); rec.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", rec.Code)
	}
	if rec := postJSON(t, h.Register, body); rec.Code != http.StatusConflict {
		t.Errorf("second register status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestRegisterShortPassword(t *testing.T) {
	h := setupAuthHandler(t)

	rec := postJSON(t, h.Register, map[string]string{"email": "c@example.com", "password": "short"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	h := setupAuthHandler(t)

	if rec := postJSON(t, h.Register, map[string]string{
		"email": "dana@example.com", "password": "valid password",
	}); rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}

	wrongPass := postJSON(t, h.Login, map[string]string{
		"email": "dana@example.com", "password": "not it",
	})
	unknown := postJSON(t, h.Login, map[string]string{
		"email": "nobody@example.com", "password": "not it",
	})

	if wrongPass.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d, want both 401", wrongPass.Code, unknown.Code)
	}
	if wrongPass.Body.String() != unknown.Body.String() {
		t.Error("wrong-password and unknown-email responses should be identical")
	}
}

func TestLoginSuccess(t *testing.T) {
	h := setupAuthHandler(t)

	if rec := postJSON(t, h.Register, map[string]string{
		"email": "eve@example.com", "password": "valid password",
	}); rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}

	rec := postJSON(t, h.Login, map[string]string{
		"email": "EVE@example.com", "password": "valid password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d (%s)", rec.Code, rec.Body.String())
	}
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected a session cookie on login")
	}
}
