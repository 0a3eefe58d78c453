package models

import "time"

// Trade представляет исполненную сделку.
// Запись создается из fill-события биржи и после этого неизменяема (append-only).
type Trade struct {
	ID          int       `json:"id" db:"id"`
	TradeID     string    `json:"trade_id" db:"trade_id"` // идентификатор биржи
	Symbol      string    `json:"symbol" db:"symbol"`
	Side        Side      `json:"side" db:"side"`
	Price       float64   `json:"price" db:"price"`
	Size        float64   `json:"size" db:"size"`
	Fee         float64   `json:"fee" db:"fee"`
	RealizedPnl float64   `json:"realized_pnl" db:"realized_pnl"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
