package service

import (
	"errors"
	"fmt"
	"time"

	"marketmaker/internal/models"
	"marketmaker/internal/repository"
	"marketmaker/pkg/crypto"
)

// Ошибки сервиса ключей
var (
	ErrEmptyAPIKey = errors.New("api key cannot be empty")
)

// KeysInfo - безопасное представление сохраненных ключей для API.
// Сами ключи никогда не покидают сервер.
type KeysInfo struct {
	HasKeys      bool   `json:"has_keys"`
	SubAccountID string `json:"sub_account_id,omitempty"`
	IPWhitelist  string `json:"ip_whitelist,omitempty"`
}

// Credentials - расшифрованные учетные данные для создания шлюза биржи.
// Используются только внутри процесса при старте движка.
type Credentials struct {
	APIKey       string
	PrivateKey   string
	SubAccountID string
}

// KeysService предоставляет бизнес-логику для управления ключами биржи.
//
// Отвечает за:
// - Шифрование ключей (AES-256-GCM) перед сохранением
// - Расшифровку для внутреннего использования (создание шлюза)
// - Маскированное чтение для дашборда (ключи наружу не отдаются)
type KeysService struct {
	keysRepo  KeysRepositoryInterface
	cryptoKey string
}

// NewKeysService создает новый экземпляр KeysService.
// cryptoKey - 32-байтный ключ AES-256 (из ENCRYPTION_KEY).
func NewKeysService(keysRepo KeysRepositoryInterface, cryptoKey string) *KeysService {
	return &KeysService{
		keysRepo:  keysRepo,
		cryptoKey: cryptoKey,
	}
}

// SaveKeys шифрует и сохраняет учетные данные биржи (единственная запись,
// повторный вызов замещает предыдущую).
func (s *KeysService) SaveKeys(apiKey, privateKey, subAccountID, ipWhitelist string) error {
	if apiKey == "" {
		return ErrEmptyAPIKey
	}

	encAPIKey, err := crypto.EncryptWithKeyString(apiKey, s.cryptoKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}
	encPrivateKey := ""
	if privateKey != "" {
		encPrivateKey, err = crypto.EncryptWithKeyString(privateKey, s.cryptoKey)
		if err != nil {
			return fmt.Errorf("encrypt private key: %w", err)
		}
	}

	return s.keysRepo.SaveKeys(&models.APIKeyRecord{
		EncryptedAPIKey:     encAPIKey,
		EncryptedPrivateKey: encPrivateKey,
		SubAccountID:        subAccountID,
		IPWhitelist:         ipWhitelist,
		CreatedAt:           time.Now().UTC(),
	})
}

// GetKeysInfo возвращает маскированную информацию о сохраненных ключах.
// Отсутствие ключей - не ошибка: возвращается HasKeys=false.
func (s *KeysService) GetKeysInfo() (*KeysInfo, error) {
	rec, err := s.keysRepo.GetKeys()
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeysNotFound) {
			return &KeysInfo{HasKeys: false}, nil
		}
		return nil, err
	}
	return &KeysInfo{
		HasKeys:      true,
		SubAccountID: rec.SubAccountID,
		IPWhitelist:  rec.IPWhitelist,
	}, nil
}

// Credentials возвращает расшифрованные учетные данные.
// Только для внутреннего использования при сборке шлюза биржи.
func (s *KeysService) Credentials() (*Credentials, error) {
	rec, err := s.keysRepo.GetKeys()
	if err != nil {
		return nil, err
	}

	apiKey, err := crypto.DecryptWithKeyString(rec.EncryptedAPIKey, s.cryptoKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt api key: %w", err)
	}
	privateKey := ""
	if rec.EncryptedPrivateKey != "" {
		privateKey, err = crypto.DecryptWithKeyString(rec.EncryptedPrivateKey, s.cryptoKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt private key: %w", err)
		}
	}

	return &Credentials{
		APIKey:       apiKey,
		PrivateKey:   privateKey,
		SubAccountID: rec.SubAccountID,
	}, nil
}

// DeleteKeys удаляет сохраненные учетные данные
func (s *KeysService) DeleteKeys() error {
	return s.keysRepo.DeleteKeys()
}
