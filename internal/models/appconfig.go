package models

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки валидации системной конфигурации
var ErrInvalidConfig = errors.New("invalid system config")

// AppConfig представляет системную конфигурацию, редактируемую из дашборда.
// SMTP-пароль хранится только в зашифрованном виде (см. pkg/crypto).
type AppConfig struct {
	ID                    int       `json:"-" db:"id"`
	ExchangeEnv           string    `json:"exchange_env" db:"exchange_env"` // prod, testnet
	Symbol                string    `json:"symbol" db:"symbol"`
	QuoteIntervalMS       int       `json:"quote_interval_ms" db:"quote_interval_ms"`
	OrderDurationSecs     int       `json:"order_duration_secs" db:"order_duration_secs"`
	CalibrationWindowDays int       `json:"calibration_window_days" db:"calibration_window_days"`
	CalibrationTimeframe  string    `json:"calibration_timeframe" db:"calibration_timeframe"`
	CalibrationUpdateTime string    `json:"calibration_update_time" db:"calibration_update_time"` // "HH:MM" UTC
	CalibrationTradeSample int      `json:"calibration_trade_sample" db:"calibration_trade_sample"`
	LogRetentionDays      int       `json:"log_retention_days" db:"log_retention_days"`
	AlertEmailTo          string    `json:"alert_email_to" db:"alert_email_to"`
	SMTPHost              string    `json:"smtp_host" db:"smtp_host"`
	SMTPPort              int       `json:"smtp_port" db:"smtp_port"`
	SMTPUser              string    `json:"smtp_user" db:"smtp_user"`
	EncryptedSMTPPassword string    `json:"-" db:"encrypted_smtp_password"`
	SMTPTLS               bool      `json:"smtp_tls" db:"smtp_tls"`
	UpdatedAt             time.Time `json:"-" db:"updated_at"`
}

// Validate проверяет диапазоны конфигурации
func (c *AppConfig) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidConfig)
	}
	if c.QuoteIntervalMS <= 0 {
		return fmt.Errorf("%w: quote_interval_ms must be > 0, got %d", ErrInvalidConfig, c.QuoteIntervalMS)
	}
	if c.OrderDurationSecs <= 0 {
		return fmt.Errorf("%w: order_duration_secs must be > 0, got %d", ErrInvalidConfig, c.OrderDurationSecs)
	}
	if c.CalibrationWindowDays <= 0 {
		return fmt.Errorf("%w: calibration_window_days must be > 0, got %d", ErrInvalidConfig, c.CalibrationWindowDays)
	}
	if c.CalibrationTradeSample <= 0 {
		return fmt.Errorf("%w: calibration_trade_sample must be > 0, got %d", ErrInvalidConfig, c.CalibrationTradeSample)
	}
	if len(c.CalibrationUpdateTime) != 5 || c.CalibrationUpdateTime[2] != ':' {
		return fmt.Errorf("%w: calibration_update_time must be HH:MM, got %q", ErrInvalidConfig, c.CalibrationUpdateTime)
	}
	if c.SMTPPort < 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("%w: smtp_port out of range, got %d", ErrInvalidConfig, c.SMTPPort)
	}
	return nil
}
