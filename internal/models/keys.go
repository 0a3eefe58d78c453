package models

import "time"

// APIKeyRecord представляет сохраненные учетные данные биржи.
// Сами ключи хранятся зашифрованными (AES-256-GCM) и НИКОГДА не
// возвращаются наружу: API отдает только sub_account_id и ip_whitelist.
type APIKeyRecord struct {
	ID                  int       `json:"-" db:"id"`
	EncryptedAPIKey     string    `json:"-" db:"encrypted_api_key"`
	EncryptedPrivateKey string    `json:"-" db:"encrypted_private_key"`
	SubAccountID        string    `json:"sub_account_id" db:"sub_account_id"`
	IPWhitelist         string    `json:"ip_whitelist" db:"ip_whitelist"`
	CreatedAt           time.Time `json:"-" db:"created_at"`
}

// User представляет пользователя админ-консоли
type User struct {
	ID           int       `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"-" db:"created_at"`
}
