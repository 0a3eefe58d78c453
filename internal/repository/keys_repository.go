package repository

import (
	"database/sql"
	"errors"
	"time"

	"marketmaker/internal/models"
)

// Ошибки репозитория ключей и пользователей
var (
	ErrAPIKeysNotFound = errors.New("api keys not found")
	ErrUserNotFound    = errors.New("user not found")
)

// KeysRepository - работа с таблицами api_keys (единственная строка,
// зашифрованные учетные данные биржи) и users (админ-консоль)
type KeysRepository struct {
	db *sql.DB
}

// NewKeysRepository создает новый экземпляр репозитория
func NewKeysRepository(db *sql.DB) *KeysRepository {
	return &KeysRepository{db: db}
}

// SaveKeys заменяет учетные данные биржи (единственная строка, id = 1)
func (r *KeysRepository) SaveKeys(rec *models.APIKeyRecord) error {
	query := `
		INSERT INTO api_keys (id, encrypted_api_key, encrypted_private_key, sub_account_id, ip_whitelist, created_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET encrypted_api_key = EXCLUDED.encrypted_api_key,
		    encrypted_private_key = EXCLUDED.encrypted_private_key,
		    sub_account_id = EXCLUDED.sub_account_id,
		    ip_whitelist = EXCLUDED.ip_whitelist,
		    created_at = EXCLUDED.created_at`

	rec.CreatedAt = time.Now()

	_, err := r.db.Exec(
		query,
		rec.EncryptedAPIKey,
		rec.EncryptedPrivateKey,
		rec.SubAccountID,
		rec.IPWhitelist,
		rec.CreatedAt,
	)
	return err
}

// GetKeys возвращает сохраненные учетные данные биржи
func (r *KeysRepository) GetKeys() (*models.APIKeyRecord, error) {
	query := `
		SELECT id, encrypted_api_key, encrypted_private_key, sub_account_id, ip_whitelist, created_at
		FROM api_keys
		ORDER BY id
		LIMIT 1`

	rec := &models.APIKeyRecord{}
	err := r.db.QueryRow(query).Scan(
		&rec.ID,
		&rec.EncryptedAPIKey,
		&rec.EncryptedPrivateKey,
		&rec.SubAccountID,
		&rec.IPWhitelist,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeysNotFound
		}
		return nil, err
	}
	return rec, nil
}

// DeleteKeys удаляет сохраненные учетные данные
func (r *KeysRepository) DeleteKeys() error {
	_, err := r.db.Exec(`DELETE FROM api_keys`)
	return err
}

// GetUserByUsername возвращает пользователя по имени
func (r *KeysRepository) GetUserByUsername(username string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, is_active, created_at
		FROM users
		WHERE username = $1`

	user := &models.User{}
	err := r.db.QueryRow(query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// CreateUser создает пользователя админ-консоли
func (r *KeysRepository) CreateUser(user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	return r.db.QueryRow(
		query,
		user.Username,
		user.PasswordHash,
		user.IsActive,
		user.CreatedAt,
	).Scan(&user.ID)
}
