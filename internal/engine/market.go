package engine

import (
	"sync"
	"time"

	"marketmaker/internal/exchange"
)

// MarketSnapshot - срез рыночного состояния, читаемый на границе тика
type MarketSnapshot struct {
	Symbol     string    `json:"symbol"`
	MidPrice   float64   `json:"mid_price"`
	BestBid    float64   `json:"best_bid"`
	BestAsk    float64   `json:"best_ask"`
	MarkPrice  float64   `json:"mark_price"`
	LastUpdate time.Time `json:"last_update"`
}

// Spread возвращает текущий рыночный спред
func (s MarketSnapshot) Spread() float64 {
	if s.BestBid <= 0 || s.BestAsk <= 0 {
		return 0
	}
	return s.BestAsk - s.BestBid
}

// MarketState нормализует тикеры фида в сигнал mid-цены и спреда.
// Обновления приходят асинхронно от WebSocket и буферизуются до границы
// тика; движок читает Snapshot() ровно один раз за тик.
type MarketState struct {
	mu         sync.RWMutex
	symbol     string
	midPrice   float64
	bestBid    float64
	bestAsk    float64
	markPrice  float64
	lastUpdate time.Time
}

// NewMarketState создает состояние рынка для символа
func NewMarketState(symbol string) *MarketState {
	return &MarketState{symbol: symbol}
}

// ApplyTicker применяет нормализованный тикер.
// Нулевые поля тикера не затирают последние известные значения.
func (m *MarketState) ApplyTicker(t *exchange.Ticker) {
	if t == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.BestBid > 0 {
		m.bestBid = t.BestBid
	}
	if t.BestAsk > 0 {
		m.bestAsk = t.BestAsk
	}
	switch {
	case t.MidPrice > 0:
		m.midPrice = t.MidPrice
	case m.bestBid > 0 && m.bestAsk > 0:
		m.midPrice = (m.bestBid + m.bestAsk) / 2
	case t.MarkPrice > 0:
		m.midPrice = t.MarkPrice
	case t.LastPrice > 0:
		m.midPrice = t.LastPrice
	}
	if t.MarkPrice > 0 {
		m.markPrice = t.MarkPrice
	}
	if !t.Timestamp.IsZero() {
		m.lastUpdate = t.Timestamp
	}
}

// Snapshot возвращает консистентный срез состояния
func (m *MarketState) Snapshot() MarketSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MarketSnapshot{
		Symbol:     m.symbol,
		MidPrice:   m.midPrice,
		BestBid:    m.bestBid,
		BestAsk:    m.bestAsk,
		MarkPrice:  m.markPrice,
		LastUpdate: m.lastUpdate,
	}
}

// Symbol возвращает торгуемый символ
func (m *MarketState) Symbol() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.symbol
}
