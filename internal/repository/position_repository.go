package repository

import (
	"database/sql"
	"errors"
	"time"

	"marketmaker/internal/models"
)

// Ошибки репозитория позиций
var (
	ErrPositionNotFound = errors.New("position not found")
)

// PositionRepository - работа с таблицей positions.
// На символ существует ровно одна строка, изменяемая upsert'ом.
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Upsert создает или обновляет позицию по символу
func (r *PositionRepository) Upsert(pos *models.Position) error {
	query := `
		INSERT INTO positions (symbol, size, entry_price, mark_price, unrealized_pnl, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE
		SET size = EXCLUDED.size,
		    entry_price = EXCLUDED.entry_price,
		    mark_price = EXCLUDED.mark_price,
		    unrealized_pnl = EXCLUDED.unrealized_pnl,
		    updated_at = EXCLUDED.updated_at
		RETURNING id`

	pos.UpdatedAt = time.Now()

	return r.db.QueryRow(
		query,
		pos.Symbol,
		pos.Size,
		pos.EntryPrice,
		pos.MarkPrice,
		pos.UnrealizedPnl,
		pos.UpdatedAt,
	).Scan(&pos.ID)
}

// GetBySymbol возвращает позицию по символу
func (r *PositionRepository) GetBySymbol(symbol string) (*models.Position, error) {
	query := `
		SELECT id, symbol, size, entry_price, mark_price, unrealized_pnl, updated_at
		FROM positions
		WHERE symbol = $1`

	pos := &models.Position{}
	err := r.db.QueryRow(query, symbol).Scan(
		&pos.ID,
		&pos.Symbol,
		&pos.Size,
		&pos.EntryPrice,
		&pos.MarkPrice,
		&pos.UnrealizedPnl,
		&pos.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}
	return pos, nil
}

// GetAll возвращает все позиции
func (r *PositionRepository) GetAll() ([]*models.Position, error) {
	query := `
		SELECT id, symbol, size, entry_price, mark_price, unrealized_pnl, updated_at
		FROM positions
		ORDER BY symbol`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		pos := &models.Position{}
		err := rows.Scan(
			&pos.ID,
			&pos.Symbol,
			&pos.Size,
			&pos.EntryPrice,
			&pos.MarkPrice,
			&pos.UnrealizedPnl,
			&pos.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return positions, nil
}
