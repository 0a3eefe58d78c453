// Package exchange предоставляет непрозрачный шлюз к бирже:
// REST-клиент для ордеров/истории и WebSocket-фид рыночных данных.
package exchange

import (
	"context"
	"errors"
	"time"

	"marketmaker/internal/models"
)

// Gateway определяет унифицированный интерфейс биржевого шлюза.
// Все блокирующие вызовы принимают context с таймаутом: по истечении
// вызов считается неудачным и переигрывается reconciliation'ом на
// следующем тике, а не блокирующим retry-циклом.
type Gateway interface {
	// Name возвращает имя окружения биржи (для логирования)
	Name() string

	// LoadMarkets загружает справочник инструментов
	LoadMarkets(ctx context.Context) error

	// Instrument возвращает параметры инструмента (tick size, lot size)
	Instrument(symbol string) (*Instrument, bool)

	// FetchTicker получает текущую цену инструмента
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)

	// FetchBalance получает доступный баланс аккаунта в USDT
	FetchBalance(ctx context.Context) (float64, error)

	// FetchPositions получает открытые позиции по символу
	FetchPositions(ctx context.Context, symbol string) ([]*PositionInfo, error)

	// FetchMyTrades получает последние сделки аккаунта
	FetchMyTrades(ctx context.Context, symbol string, limit int) ([]*Fill, error)

	// FetchCandles получает исторические свечи начиная с startNS (unix наносекунды)
	FetchCandles(ctx context.Context, symbol, timeframe string, startNS int64, limit int) ([]*Candle, error)

	// FetchTrades получает публичные сделки рынка начиная с startNS
	FetchTrades(ctx context.Context, symbol string, startNS int64, limit int) ([]*PublicTrade, error)

	// CreateLimitOrder размещает лимитный post-only ордер
	CreateLimitOrder(ctx context.Context, req OrderRequest) (*OrderAck, error)

	// CancelOrder отменяет ордер по идентификатору биржи
	CancelOrder(ctx context.Context, orderID string) error

	// RoundPrice округляет цену вниз до tick size инструмента
	RoundPrice(symbol string, price float64) float64

	// RoundSize округляет размер вниз до lot size инструмента
	RoundSize(symbol string, size float64) float64

	// Close закрывает соединения с биржей
	Close() error
}

// Instrument содержит параметры торгового инструмента
type Instrument struct {
	Symbol       string  `json:"symbol"`
	Base         string  `json:"base"`
	Quote        string  `json:"quote"`
	TickSize     float64 `json:"tick_size"` // шаг цены
	MinSize      float64 `json:"min_size"`  // минимальный размер ордера
	BaseDecimals int     `json:"base_decimals"`
}

// LotSize возвращает шаг размера, выведенный из base_decimals
func (i *Instrument) LotSize() float64 {
	step := 1.0
	for d := 0; d < i.BaseDecimals; d++ {
		step /= 10
	}
	return step
}

// Ticker содержит нормализованный снимок цены
type Ticker struct {
	Symbol    string    `json:"symbol"`
	BestBid   float64   `json:"best_bid"`
	BestAsk   float64   `json:"best_ask"`
	MidPrice  float64   `json:"mid_price"`
	MarkPrice float64   `json:"mark_price"`
	LastPrice float64   `json:"last_price"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderRequest описывает размещаемый лимитный ордер
type OrderRequest struct {
	ClientOrderID     string      // uuid для идемпотентности
	Symbol            string
	Side              models.Side
	Price             float64
	Size              float64
	PostOnly          bool
	OrderDurationSecs int // TTL ордера на стороне биржи
}

// OrderAck - подтверждение биржи на размещение ордера.
// Статусы ордеров меняются ТОЛЬКО по таким подтверждениям.
type OrderAck struct {
	OrderID   string             `json:"order_id"`
	Status    models.OrderStatus `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
}

// Fill - событие исполнения (сделка аккаунта)
type Fill struct {
	TradeID   string      `json:"trade_id"`
	OrderID   string      `json:"order_id"`
	Symbol    string      `json:"symbol"`
	Side      models.Side `json:"side"`
	Price     float64     `json:"price"`
	Size      float64     `json:"size"`
	Fee       float64     `json:"fee"`
	Timestamp time.Time   `json:"timestamp"`
}

// PositionInfo - позиция по данным биржи
type PositionInfo struct {
	Symbol        string  `json:"symbol"`
	Size          float64 `json:"size"` // знаковый
	EntryPrice    float64 `json:"entry_price"`
	MarkPrice     float64 `json:"mark_price"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
}

// Candle - историческая свеча для калибровки
type Candle struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// PublicTrade - публичная сделка рынка для калибровки A и k
type PublicTrade struct {
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// Ошибки шлюза
var (
	// ErrGatewayTimeout - вызов не уложился в таймаут контекста
	ErrGatewayTimeout = errors.New("gateway call timed out")
	// ErrGatewayRejected - биржа отклонила запрос
	ErrGatewayRejected = errors.New("gateway rejected request")
	// ErrUnknownInstrument - символ отсутствует в справочнике
	ErrUnknownInstrument = errors.New("unknown instrument")
)

// GatewayError представляет ошибку от биржи
type GatewayError struct {
	Env      string
	Code     string
	Message  string
	Original error
}

func (e *GatewayError) Error() string {
	return e.Env + ": " + e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Original
}
