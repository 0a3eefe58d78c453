// Package repository содержит слой доступа к PostgreSQL.
// Все запросы используют плейсхолдеры $n, отсутствие строки выражается
// сентинельными ошибками ErrXxxNotFound.
package repository

import (
	"database/sql"
	"errors"
	"time"

	"marketmaker/internal/models"
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository - работа с таблицей orders
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, order_id, symbol, side, price, size, filled_qty, status, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.OrderID,
		&order.Symbol,
		&order.Side,
		&order.Price,
		&order.Size,
		&order.FilledQty,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Create создает запись об ордере
func (r *OrderRepository) Create(order *models.Order) error {
	query := `
		INSERT INTO orders (order_id, symbol, side, price, size, filled_qty, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}

	return r.db.QueryRow(
		query,
		order.OrderID,
		order.Symbol,
		order.Side,
		order.Price,
		order.Size,
		order.FilledQty,
		order.Status,
		order.CreatedAt,
	).Scan(&order.ID)
}

// GetByOrderID возвращает ордер по идентификатору биржи
func (r *OrderRepository) GetByOrderID(orderID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	order, err := scanOrder(r.db.QueryRow(query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// GetRecent возвращает последние N ордеров
func (r *OrderRepository) GetRecent(limit int) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

// GetByStatus возвращает ордера с определенным статусом
func (r *OrderRepository) GetByStatus(status models.OrderStatus) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus обновляет статус и исполненное количество по идентификатору биржи
func (r *OrderRepository) UpdateStatus(orderID string, status models.OrderStatus, filledQty float64) error {
	query := `
		UPDATE orders
		SET status = $1, filled_qty = $2, updated_at = $3
		WHERE order_id = $4`

	result, err := r.db.Exec(query, status, filledQty, time.Now(), orderID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// Count возвращает общее количество ордеров
func (r *OrderRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&count)
	return count, err
}

// CountByStatus возвращает количество ордеров с определенным статусом
func (r *OrderRepository) CountByStatus(status models.OrderStatus) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM orders WHERE status = $1`, status).Scan(&count)
	return count, err
}

// DeleteOlderThan удаляет терминальные ордера старше указанной даты
// (используется ретенцией журналов)
func (r *OrderRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	query := `
		DELETE FROM orders
		WHERE created_at < $1 AND status IN ($2, $3, $4)`

	result, err := r.db.Exec(query, timestamp,
		models.OrderStatusFilled, models.OrderStatusCancelled, models.OrderStatusRejected)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
