package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"marketmaker/internal/models"
)

// ============================================================
// KeysRepository Tests
// ============================================================

func TestKeysRepositorySaveKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO api_keys`).
		WithArgs("enc-api", "enc-priv", "123", "10.0.0.1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewKeysRepository(db)
	err = repo.SaveKeys(&models.APIKeyRecord{
		EncryptedAPIKey:     "enc-api",
		EncryptedPrivateKey: "enc-priv",
		SubAccountID:        "123",
		IPWhitelist:         "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestKeysRepositoryGetKeysNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM api_keys`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewKeysRepository(db)
	_, err = repo.GetKeys()
	if !errors.Is(err, ErrAPIKeysNotFound) {
		t.Errorf("expected ErrAPIKeysNotFound, got %v", err)
	}
}

func TestKeysRepositoryGetUserByUsername(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "is_active", "created_at"}).
		AddRow(1, "admin", "$2a$10$hash", true, now)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
		WithArgs("admin").
		WillReturnRows(rows)

	repo := NewKeysRepository(db)
	user, err := repo.GetUserByUsername("admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Username != "admin" || !user.IsActive {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestKeysRepositoryGetUserNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewKeysRepository(db)
	_, err = repo.GetUserByUsername("ghost")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
