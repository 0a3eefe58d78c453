package service

import (
	"fmt"

	"marketmaker/internal/models"
	"marketmaker/pkg/crypto"
)

// ConfigService предоставляет бизнес-логику системной конфигурации дашборда.
//
// Отвечает за:
// - Чтение и обновление конфигурации (окружение, символ, калибровка, SMTP)
// - Шифрование SMTP-пароля перед сохранением
// - Сигнал о необходимости перезапуска (смена окружения/символа требует
//   пересборки шлюза и движка, наживую не применяется)
type ConfigService struct {
	configRepo AppConfigRepositoryInterface
	cryptoKey  string
}

// NewConfigService создает новый экземпляр ConfigService.
func NewConfigService(configRepo AppConfigRepositoryInterface, cryptoKey string) *ConfigService {
	return &ConfigService{
		configRepo: configRepo,
		cryptoKey:  cryptoKey,
	}
}

// GetConfig возвращает текущую системную конфигурацию.
// Зашифрованный SMTP-пароль наружу не сериализуется (json:"-").
func (s *ConfigService) GetConfig() (*models.AppConfig, error) {
	return s.configRepo.Get()
}

// UpdateConfigRequest представляет запрос на обновление конфигурации.
// Все поля опциональны - обновляются только переданные.
// SMTPPassword принимается открытым текстом и сохраняется зашифрованным.
type UpdateConfigRequest struct {
	ExchangeEnv            *string `json:"exchange_env,omitempty"`
	Symbol                 *string `json:"symbol,omitempty"`
	QuoteIntervalMS        *int    `json:"quote_interval_ms,omitempty"`
	OrderDurationSecs      *int    `json:"order_duration_secs,omitempty"`
	CalibrationWindowDays  *int    `json:"calibration_window_days,omitempty"`
	CalibrationTimeframe   *string `json:"calibration_timeframe,omitempty"`
	CalibrationUpdateTime  *string `json:"calibration_update_time,omitempty"`
	CalibrationTradeSample *int    `json:"calibration_trade_sample,omitempty"`
	LogRetentionDays       *int    `json:"log_retention_days,omitempty"`
	AlertEmailTo           *string `json:"alert_email_to,omitempty"`
	SMTPHost               *string `json:"smtp_host,omitempty"`
	SMTPPort               *int    `json:"smtp_port,omitempty"`
	SMTPUser               *string `json:"smtp_user,omitempty"`
	SMTPPassword           *string `json:"smtp_password,omitempty"`
	SMTPTLS                *bool   `json:"smtp_tls,omitempty"`
}

// UpdateConfig обновляет системную конфигурацию.
//
// Возвращает обновленную конфигурацию и флаг restartRequired: true, если
// изменилось окружение биржи или торговый символ - такие изменения
// вступают в силу только после перезапуска сервиса.
func (s *ConfigService) UpdateConfig(req *UpdateConfigRequest) (*models.AppConfig, bool, error) {
	cfg, err := s.configRepo.Get()
	if err != nil {
		return nil, false, err
	}

	restartRequired := false

	// Обновляем только переданные поля
	if req.ExchangeEnv != nil && *req.ExchangeEnv != cfg.ExchangeEnv {
		cfg.ExchangeEnv = *req.ExchangeEnv
		restartRequired = true
	}
	if req.Symbol != nil && *req.Symbol != cfg.Symbol {
		cfg.Symbol = *req.Symbol
		restartRequired = true
	}
	if req.QuoteIntervalMS != nil {
		cfg.QuoteIntervalMS = *req.QuoteIntervalMS
	}
	if req.OrderDurationSecs != nil {
		cfg.OrderDurationSecs = *req.OrderDurationSecs
	}
	if req.CalibrationWindowDays != nil {
		cfg.CalibrationWindowDays = *req.CalibrationWindowDays
	}
	if req.CalibrationTimeframe != nil {
		cfg.CalibrationTimeframe = *req.CalibrationTimeframe
	}
	if req.CalibrationUpdateTime != nil {
		cfg.CalibrationUpdateTime = *req.CalibrationUpdateTime
	}
	if req.CalibrationTradeSample != nil {
		cfg.CalibrationTradeSample = *req.CalibrationTradeSample
	}
	if req.LogRetentionDays != nil {
		cfg.LogRetentionDays = *req.LogRetentionDays
	}
	if req.AlertEmailTo != nil {
		cfg.AlertEmailTo = *req.AlertEmailTo
	}
	if req.SMTPHost != nil {
		cfg.SMTPHost = *req.SMTPHost
	}
	if req.SMTPPort != nil {
		cfg.SMTPPort = *req.SMTPPort
	}
	if req.SMTPUser != nil {
		cfg.SMTPUser = *req.SMTPUser
	}
	if req.SMTPPassword != nil {
		encrypted, err := crypto.EncryptWithKeyString(*req.SMTPPassword, s.cryptoKey)
		if err != nil {
			return nil, false, fmt.Errorf("encrypt smtp password: %w", err)
		}
		cfg.EncryptedSMTPPassword = encrypted
	}
	if req.SMTPTLS != nil {
		cfg.SMTPTLS = *req.SMTPTLS
	}

	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}

	if err := s.configRepo.Save(cfg); err != nil {
		return nil, false, err
	}

	return cfg, restartRequired, nil
}
