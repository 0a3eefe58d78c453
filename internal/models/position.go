package models

import "time"

// Position представляет позицию по символу.
// На символ существует ровно одна живая запись: она изменяется каждым fill'ом
// и обновлением mark-цены, никогда не удаляется, только обнуляется.
type Position struct {
	ID            int       `json:"id" db:"id"`
	Symbol        string    `json:"symbol" db:"symbol"`
	Size          float64   `json:"size" db:"size"` // знаковый размер в базовой валюте (+ long, - short)
	EntryPrice    float64   `json:"entry_price" db:"entry_price"`
	MarkPrice     float64   `json:"mark_price" db:"mark_price"`
	UnrealizedPnl float64   `json:"unrealized_pnl" db:"unrealized_pnl"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// NotionalUSD возвращает знаковый размер позиции в котируемой валюте
func (p *Position) NotionalUSD(markPrice float64) float64 {
	return p.Size * markPrice
}
