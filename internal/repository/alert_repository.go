package repository

import (
	"database/sql"
	"errors"
	"time"

	"marketmaker/internal/models"
)

// Ошибки репозитория оповещений
var (
	ErrAlertNotFound = errors.New("alert not found")
)

// AlertRepository - работа с таблицей alerts (центр оповещений дашборда)
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository создает новый экземпляр репозитория
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create создает оповещение
func (r *AlertRepository) Create(alert *models.Alert) error {
	query := `
		INSERT INTO alerts (level, message, is_read, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	return r.db.QueryRow(
		query,
		alert.Level,
		alert.Message,
		alert.IsRead,
		alert.CreatedAt,
	).Scan(&alert.ID)
}

// GetRecent возвращает последние N оповещений
func (r *AlertRepository) GetRecent(limit int) ([]*models.Alert, error) {
	query := `
		SELECT id, level, message, is_read, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert := &models.Alert{}
		err := rows.Scan(
			&alert.ID,
			&alert.Level,
			&alert.Message,
			&alert.IsRead,
			&alert.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

// MarkRead помечает оповещение прочитанным
func (r *AlertRepository) MarkRead(id int) error {
	result, err := r.db.Exec(`UPDATE alerts SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// MarkAllRead помечает все оповещения прочитанными
func (r *AlertRepository) MarkAllRead() error {
	_, err := r.db.Exec(`UPDATE alerts SET is_read = TRUE WHERE is_read = FALSE`)
	return err
}

// CountUnread возвращает количество непрочитанных оповещений
func (r *AlertRepository) CountUnread() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM alerts WHERE is_read = FALSE`).Scan(&count)
	return count, err
}

// DeleteOlderThan удаляет оповещения старше указанной даты
func (r *AlertRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM alerts WHERE created_at < $1`, timestamp)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
