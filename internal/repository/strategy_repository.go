package repository

import (
	"database/sql"
	"errors"
	"time"

	"marketmaker/internal/models"
)

// Ошибки репозитория параметров стратегии
var (
	ErrStrategyParamsNotFound = errors.New("strategy params not found")
)

// StrategyRepository - работа с таблицей strategy_params (единственная строка)
type StrategyRepository struct {
	db *sql.DB
}

// NewStrategyRepository создает новый экземпляр репозитория
func NewStrategyRepository(db *sql.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

// Get возвращает текущие параметры модели котирования
func (r *StrategyRepository) Get() (*models.StrategyParams, error) {
	query := `
		SELECT id, gamma, sigma, a, k, time_horizon_seconds,
		       inventory_cap_usd, order_cap_usd, leverage_limit,
		       auto_tuning_enabled, updated_at
		FROM strategy_params
		ORDER BY id
		LIMIT 1`

	params := &models.StrategyParams{}
	err := r.db.QueryRow(query).Scan(
		&params.ID,
		&params.Gamma,
		&params.Sigma,
		&params.A,
		&params.K,
		&params.TimeHorizonSeconds,
		&params.InventoryCapUSD,
		&params.OrderCapUSD,
		&params.LeverageLimit,
		&params.AutoTuningEnabled,
		&params.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStrategyParamsNotFound
		}
		return nil, err
	}
	return params, nil
}

// Save заменяет параметры модели (единственная строка, id = 1)
func (r *StrategyRepository) Save(params *models.StrategyParams) error {
	query := `
		INSERT INTO strategy_params (id, gamma, sigma, a, k, time_horizon_seconds,
		                             inventory_cap_usd, order_cap_usd, leverage_limit,
		                             auto_tuning_enabled, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET gamma = EXCLUDED.gamma,
		    sigma = EXCLUDED.sigma,
		    a = EXCLUDED.a,
		    k = EXCLUDED.k,
		    time_horizon_seconds = EXCLUDED.time_horizon_seconds,
		    inventory_cap_usd = EXCLUDED.inventory_cap_usd,
		    order_cap_usd = EXCLUDED.order_cap_usd,
		    leverage_limit = EXCLUDED.leverage_limit,
		    auto_tuning_enabled = EXCLUDED.auto_tuning_enabled,
		    updated_at = EXCLUDED.updated_at`

	params.UpdatedAt = time.Now()

	_, err := r.db.Exec(
		query,
		params.Gamma,
		params.Sigma,
		params.A,
		params.K,
		params.TimeHorizonSeconds,
		params.InventoryCapUSD,
		params.OrderCapUSD,
		params.LeverageLimit,
		params.AutoTuningEnabled,
		params.UpdatedAt,
	)
	return err
}
