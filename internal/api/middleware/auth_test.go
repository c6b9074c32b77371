package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scholarsync/collab-plane/internal/auth"
)

func testAuthService(expiry time.Duration) *auth.Service {
	return auth.NewService(&auth.Config{
		JWTSecret:   []byte("test-secret-key-for-middleware-tests"),
		TokenExpiry: expiry,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func authenticatedRequest(t *testing.T, mw *AuthMiddleware, header string) (*httptest.ResponseRecorder, string, string) {
	t.Helper()

	var gotUserID, gotEmail string
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotEmail = GetUserEmail(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/rooms", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, gotUserID, gotEmail
}

func TestAuthenticateValidToken(t *testing.T) {
	svc := testAuthService(time.Hour)
	mw := NewAuthMiddleware(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	token, err := svc.GenerateToken("user-1", "user-1@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	rec, userID, email := authenticatedRequest(t, mw, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if userID != "user-1" {
		t.Errorf("user id in context = %q, want %q", userID, "user-1")
	}
	if email != "user-1@example.com" {
		t.Errorf("email in context = %q, want %q", email, "user-1@example.com")
	}
}

func TestAuthenticateMissingHeader(t *testing.T) {
	mw := NewAuthMiddleware(testAuthService(time.Hour), slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec, userID, _ := authenticatedRequest(t, mw, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if userID != "" {
		t.Errorf("handler ran with user id %q, want none", userID)
	}
}

func TestAuthenticateGarbageToken(t *testing.T) {
	mw := NewAuthMiddleware(testAuthService(time.Hour), slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec, _, _ := authenticatedRequest(t, mw, "Bearer not-a-jwt")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	svc := testAuthService(-time.Minute)
	mw := NewAuthMiddleware(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	token, err := svc.GenerateToken("user-1", "user-1@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	rec, _, _ := authenticatedRequest(t, mw, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if body := rec.Body.String(); !strings.Contains(body, "expired") {
		t.Errorf("body = %q, want an expiry message", body)
	}
}
