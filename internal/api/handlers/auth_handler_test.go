package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketmaker/internal/api/middleware"
	"marketmaker/internal/service"
)

func TestAuthHandler_LoginSuccess(t *testing.T) {
	h := NewAuthHandler(&MockAuthenticator{token: "test-token"})

	body := strings.NewReader(`{"username":"admin","password":"secret"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token != "test-token" {
		t.Errorf("token = %q, want test-token", resp.Token)
	}
}

func TestAuthHandler_LoginRejected(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		authErr  error
		wantCode int
	}{
		{"wrong password", `{"username":"admin","password":"wrong"}`, service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"inactive user", `{"username":"old","password":"secret"}`, service.ErrUserInactive, http.StatusUnauthorized},
		{"empty username", `{"username":"","password":"secret"}`, nil, http.StatusBadRequest},
		{"empty password", `{"username":"admin","password":""}`, nil, http.StatusBadRequest},
		{"malformed json", `{"username":`, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&MockAuthenticator{token: "t", err: tt.authErr})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Login(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			if strings.Contains(rec.Body.String(), "token") {
				t.Error("rejected login must not return a token")
			}
		})
	}
}

// stubValidator подставляет фиксированные клеймы вместо разбора JWT
type stubValidator struct {
	claims *service.AuthClaims
}

func (s *stubValidator) ValidateToken(token string) (*service.AuthClaims, error) {
	return s.claims, nil
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&MockAuthenticator{token: "t"})

	// Без Auth middleware клеймов в контексте нет
	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status code without claims = %d, want 401", rec.Code)
	}

	// Через middleware клеймы доезжают до handler
	chain := middleware.Auth(&stubValidator{claims: &service.AuthClaims{UserID: 1, Username: "admin"}})(
		http.HandlerFunc(h.Me))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer any")
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	var resp MeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.UserID != 1 || resp.Username != "admin" {
		t.Errorf("me = %+v, want user 1/admin", resp)
	}
}
