package repository

import (
	"database/sql"
	"errors"
	"time"

	"marketmaker/internal/models"
)

// Ошибки репозитория системной конфигурации
var (
	ErrAppConfigNotFound = errors.New("app config not found")
)

// AppConfigRepository - работа с таблицей app_config (единственная строка)
type AppConfigRepository struct {
	db *sql.DB
}

// NewAppConfigRepository создает новый экземпляр репозитория
func NewAppConfigRepository(db *sql.DB) *AppConfigRepository {
	return &AppConfigRepository{db: db}
}

// Get возвращает системную конфигурацию
func (r *AppConfigRepository) Get() (*models.AppConfig, error) {
	query := `
		SELECT id, exchange_env, symbol, quote_interval_ms, order_duration_secs,
		       calibration_window_days, calibration_timeframe, calibration_update_time,
		       calibration_trade_sample, log_retention_days,
		       alert_email_to, smtp_host, smtp_port, smtp_user,
		       encrypted_smtp_password, smtp_tls, updated_at
		FROM app_config
		ORDER BY id
		LIMIT 1`

	cfg := &models.AppConfig{}
	err := r.db.QueryRow(query).Scan(
		&cfg.ID,
		&cfg.ExchangeEnv,
		&cfg.Symbol,
		&cfg.QuoteIntervalMS,
		&cfg.OrderDurationSecs,
		&cfg.CalibrationWindowDays,
		&cfg.CalibrationTimeframe,
		&cfg.CalibrationUpdateTime,
		&cfg.CalibrationTradeSample,
		&cfg.LogRetentionDays,
		&cfg.AlertEmailTo,
		&cfg.SMTPHost,
		&cfg.SMTPPort,
		&cfg.SMTPUser,
		&cfg.EncryptedSMTPPassword,
		&cfg.SMTPTLS,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAppConfigNotFound
		}
		return nil, err
	}
	return cfg, nil
}

// Save заменяет системную конфигурацию (единственная строка, id = 1)
func (r *AppConfigRepository) Save(cfg *models.AppConfig) error {
	query := `
		INSERT INTO app_config (id, exchange_env, symbol, quote_interval_ms, order_duration_secs,
		                        calibration_window_days, calibration_timeframe, calibration_update_time,
		                        calibration_trade_sample, log_retention_days,
		                        alert_email_to, smtp_host, smtp_port, smtp_user,
		                        encrypted_smtp_password, smtp_tls, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE
		SET exchange_env = EXCLUDED.exchange_env,
		    symbol = EXCLUDED.symbol,
		    quote_interval_ms = EXCLUDED.quote_interval_ms,
		    order_duration_secs = EXCLUDED.order_duration_secs,
		    calibration_window_days = EXCLUDED.calibration_window_days,
		    calibration_timeframe = EXCLUDED.calibration_timeframe,
		    calibration_update_time = EXCLUDED.calibration_update_time,
		    calibration_trade_sample = EXCLUDED.calibration_trade_sample,
		    log_retention_days = EXCLUDED.log_retention_days,
		    alert_email_to = EXCLUDED.alert_email_to,
		    smtp_host = EXCLUDED.smtp_host,
		    smtp_port = EXCLUDED.smtp_port,
		    smtp_user = EXCLUDED.smtp_user,
		    encrypted_smtp_password = EXCLUDED.encrypted_smtp_password,
		    smtp_tls = EXCLUDED.smtp_tls,
		    updated_at = EXCLUDED.updated_at`

	cfg.UpdatedAt = time.Now()

	_, err := r.db.Exec(
		query,
		cfg.ExchangeEnv,
		cfg.Symbol,
		cfg.QuoteIntervalMS,
		cfg.OrderDurationSecs,
		cfg.CalibrationWindowDays,
		cfg.CalibrationTimeframe,
		cfg.CalibrationUpdateTime,
		cfg.CalibrationTradeSample,
		cfg.LogRetentionDays,
		cfg.AlertEmailTo,
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.EncryptedSMTPPassword,
		cfg.SMTPTLS,
		cfg.UpdatedAt,
	)
	return err
}
