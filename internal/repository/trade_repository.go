package repository

import (
	"database/sql"
	"time"

	"marketmaker/internal/models"
)

// TradeRepository - работа с таблицей trades (append-only журнал сделок)
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

const tradeColumns = `id, trade_id, symbol, side, price, size, fee, realized_pnl, created_at`

// Create создает запись о сделке
func (r *TradeRepository) Create(trade *models.Trade) error {
	query := `
		INSERT INTO trades (trade_id, symbol, side, price, size, fee, realized_pnl, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now()
	}

	return r.db.QueryRow(
		query,
		trade.TradeID,
		trade.Symbol,
		trade.Side,
		trade.Price,
		trade.Size,
		trade.Fee,
		trade.RealizedPnl,
		trade.CreatedAt,
	).Scan(&trade.ID)
}

// Exists проверяет наличие сделки по идентификатору биржи (дедупликация fill'ов)
func (r *TradeRepository) Exists(tradeID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM trades WHERE trade_id = $1)`, tradeID).Scan(&exists)
	return exists, err
}

// GetRecent возвращает последние N сделок
func (r *TradeRepository) GetRecent(limit int) ([]*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTrades(rows)
}

// GetInTimeRange возвращает сделки за период (для отчетов)
func (r *TradeRepository) GetInTimeRange(from, to time.Time) ([]*models.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC`

	rows, err := r.db.Query(query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTrades(rows)
}

func collectTrades(rows *sql.Rows) ([]*models.Trade, error) {
	var trades []*models.Trade
	for rows.Next() {
		trade := &models.Trade{}
		err := rows.Scan(
			&trade.ID,
			&trade.TradeID,
			&trade.Symbol,
			&trade.Side,
			&trade.Price,
			&trade.Size,
			&trade.Fee,
			&trade.RealizedPnl,
			&trade.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return trades, nil
}

// SumRealizedPnlSince возвращает суммарный реализованный PnL и комиссии с момента from
func (r *TradeRepository) SumRealizedPnlSince(from time.Time) (pnl, fees float64, err error) {
	query := `
		SELECT COALESCE(SUM(realized_pnl), 0), COALESCE(SUM(fee), 0)
		FROM trades
		WHERE created_at >= $1`

	err = r.db.QueryRow(query, from).Scan(&pnl, &fees)
	return pnl, fees, err
}

// Count возвращает общее количество сделок
func (r *TradeRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&count)
	return count, err
}

// DeleteOlderThan удаляет сделки старше указанной даты
func (r *TradeRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM trades WHERE created_at < $1`, timestamp)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
