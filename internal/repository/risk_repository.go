package repository

import (
	"database/sql"
	"errors"
	"time"

	"marketmaker/internal/models"
)

// Ошибки репозитория риска
var (
	ErrRiskLimitsNotFound = errors.New("risk limits not found")
	ErrRiskEventNotFound  = errors.New("risk event not found")
)

// RiskRepository - работа с таблицами risk_limits (единственная строка)
// и risk_events (append-only журнал аудита)
type RiskRepository struct {
	db *sql.DB
}

// NewRiskRepository создает новый экземпляр репозитория
func NewRiskRepository(db *sql.DB) *RiskRepository {
	return &RiskRepository{db: db}
}

// GetLimits возвращает текущие торговые лимиты
func (r *RiskRepository) GetLimits() (*models.RiskLimits, error) {
	query := `
		SELECT id, max_inventory_usd, max_order_usd, max_leverage,
		       max_cancel_rate_per_min, max_order_rate_per_min, updated_at
		FROM risk_limits
		ORDER BY id
		LIMIT 1`

	limits := &models.RiskLimits{}
	err := r.db.QueryRow(query).Scan(
		&limits.ID,
		&limits.MaxInventoryUSD,
		&limits.MaxOrderUSD,
		&limits.MaxLeverage,
		&limits.MaxCancelRatePerMin,
		&limits.MaxOrderRatePerMin,
		&limits.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRiskLimitsNotFound
		}
		return nil, err
	}
	return limits, nil
}

// SaveLimits заменяет торговые лимиты (единственная строка, id = 1)
func (r *RiskRepository) SaveLimits(limits *models.RiskLimits) error {
	query := `
		INSERT INTO risk_limits (id, max_inventory_usd, max_order_usd, max_leverage,
		                         max_cancel_rate_per_min, max_order_rate_per_min, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET max_inventory_usd = EXCLUDED.max_inventory_usd,
		    max_order_usd = EXCLUDED.max_order_usd,
		    max_leverage = EXCLUDED.max_leverage,
		    max_cancel_rate_per_min = EXCLUDED.max_cancel_rate_per_min,
		    max_order_rate_per_min = EXCLUDED.max_order_rate_per_min,
		    updated_at = EXCLUDED.updated_at`

	limits.UpdatedAt = time.Now()

	_, err := r.db.Exec(
		query,
		limits.MaxInventoryUSD,
		limits.MaxOrderUSD,
		limits.MaxLeverage,
		limits.MaxCancelRatePerMin,
		limits.MaxOrderRatePerMin,
		limits.UpdatedAt,
	)
	return err
}

// CreateEvent создает запись риск-события
func (r *RiskRepository) CreateEvent(event *models.RiskEvent) error {
	query := `
		INSERT INTO risk_events (level, event_type, message, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	return r.db.QueryRow(
		query,
		event.Level,
		event.EventType,
		event.Message,
		event.Resolved,
		event.CreatedAt,
	).Scan(&event.ID)
}

// GetRecentEvents возвращает последние N риск-событий
func (r *RiskRepository) GetRecentEvents(limit int) ([]*models.RiskEvent, error) {
	query := `
		SELECT id, level, event_type, message, resolved, created_at
		FROM risk_events
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.RiskEvent
	for rows.Next() {
		event := &models.RiskEvent{}
		err := rows.Scan(
			&event.ID,
			&event.Level,
			&event.EventType,
			&event.Message,
			&event.Resolved,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// ResolveEvent помечает риск-событие обработанным
func (r *RiskRepository) ResolveEvent(id int) error {
	result, err := r.db.Exec(`UPDATE risk_events SET resolved = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRiskEventNotFound
	}
	return nil
}

// DeleteEventsOlderThan удаляет риск-события старше указанной даты
func (r *RiskRepository) DeleteEventsOlderThan(timestamp time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM risk_events WHERE created_at < $1`, timestamp)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
