package models

import "time"

// Alert представляет уведомление для центра оповещений дашборда
type Alert struct {
	ID        int       `json:"id" db:"id"`
	Level     string    `json:"level" db:"level"` // info, warn, error
	Message   string    `json:"message" db:"message"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Уровни важности
const (
	AlertLevelInfo  = "info"
	AlertLevelWarn  = "warn"
	AlertLevelError = "error"
)
