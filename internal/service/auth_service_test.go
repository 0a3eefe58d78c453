package service

import (
	"errors"
	"testing"
	"time"

	"marketmaker/pkg/crypto"
)

const testJWTSecret = "test-jwt-secret-for-unit-tests-only"

func newTestAuthService(t *testing.T) (*AuthService, *MockKeysRepository) {
	t.Helper()
	repo := NewMockKeysRepository()
	svc := NewAuthService(repo, testJWTSecret)
	if err := svc.EnsureDefaultAdmin("admin", "correct-password"); err != nil {
		t.Fatalf("EnsureDefaultAdmin() error = %v", err)
	}
	return svc, repo
}

func TestAuthService_LoginAndValidate(t *testing.T) {
	svc, _ := newTestAuthService(t)

	token, err := svc.Login("admin", "correct-password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if token == "" {
		t.Fatal("Login() returned empty token")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("Username = %q, want admin", claims.Username)
	}
	if claims.UserID == 0 {
		t.Error("UserID is zero")
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) <= 0 {
		t.Error("token expiry not set in the future")
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, _ := newTestAuthService(t)

	if _, err := svc.Login("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	svc, _ := newTestAuthService(t)

	// неизвестный пользователь неотличим от неверного пароля
	if _, err := svc.Login("ghost", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	svc, repo := newTestAuthService(t)
	repo.users["admin"].IsActive = false

	if _, err := svc.Login("admin", "correct-password"); !errors.Is(err, ErrUserInactive) {
		t.Errorf("Login() error = %v, want ErrUserInactive", err)
	}
}

func TestAuthService_ValidateToken_Garbage(t *testing.T) {
	svc, _ := newTestAuthService(t)

	if _, err := svc.ValidateToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestAuthService_ValidateToken_WrongSecret(t *testing.T) {
	svc, repo := newTestAuthService(t)

	token, err := svc.Login("admin", "correct-password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	other := NewAuthService(repo, "another-secret")
	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestAuthService_EnsureDefaultAdmin_Idempotent(t *testing.T) {
	svc, repo := newTestAuthService(t)

	originalHash := repo.users["admin"].PasswordHash
	if err := svc.EnsureDefaultAdmin("admin", "different-password"); err != nil {
		t.Fatalf("EnsureDefaultAdmin() error = %v", err)
	}
	if repo.users["admin"].PasswordHash != originalHash {
		t.Error("existing admin password must not be overwritten")
	}
	if !crypto.CheckPasswordMatch("correct-password", repo.users["admin"].PasswordHash) {
		t.Error("stored hash does not match original password")
	}
}
