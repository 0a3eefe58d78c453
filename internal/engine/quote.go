package engine

import (
	"errors"
	"math"

	"marketmaker/internal/models"
)

// Ошибки модели котирования
var (
	ErrInvalidMidPrice = errors.New("mid price must be positive")
)

// Пол для gamma и k: закрытая форма GLFT делит на gamma и k,
// вырожденные значения подменяются этим минимумом вместо деления на ноль.
const (
	DefaultGammaFloor = 1e-9
	defaultKFloor     = 1e-9
)

// Quotes - целевые котировки, рассчитанные моделью
type Quotes struct {
	BidPrice float64 `json:"bid_price"`
	AskPrice float64 `json:"ask_price"`
	BidSize  float64 `json:"bid_size"`
	AskSize  float64 `json:"ask_size"`
}

// Spread возвращает полный спред котировок
func (q Quotes) Spread() float64 {
	return q.AskPrice - q.BidPrice
}

// QuoteModel - закрытая форма GLFT (Guéant–Lehalle–Fernandez-Tapia).
// Чистая функция текущего состояния: модель никогда не мутирует параметры;
// при auto_tuning_enabled их перезаписывает планировщик калибровки между тиками.
type QuoteModel struct {
	// GammaFloor подменяет gamma ниже этого значения (защита от деления на ноль)
	GammaFloor float64
	// LotSize - шаг размера ордера биржи; размеры котировок округляются вниз до него
	LotSize float64
}

// NewQuoteModel создает модель с дефолтным gamma-полом
func NewQuoteModel(lotSize float64) *QuoteModel {
	return &QuoteModel{GammaFloor: DefaultGammaFloor, LotSize: lotSize}
}

// ComputeQuotes вычисляет целевые bid/ask из mid-цены, инвентаря и параметров.
//
// Резервационная цена смещается против инвентаря:
//
//	r = mid - inventory * gamma * sigma^2 * T
//
// Полуспред складывается из члена интенсивности потока и члена инвентарного риска:
//
//	delta = (1/gamma) * ln(1 + gamma/k) + 0.5 * gamma * sigma^2 * T
//
// bid = r - delta, ask = r + delta. При sigma = 0 полуспред схлопывается
// до члена интенсивности. Размеры = order_cap_usd / цена, вниз до лота.
func (m *QuoteModel) ComputeQuotes(midPrice, inventory float64, params models.StrategyParams) (Quotes, error) {
	if midPrice <= 0 || math.IsNaN(midPrice) || math.IsInf(midPrice, 0) {
		return Quotes{}, ErrInvalidMidPrice
	}
	if err := params.Validate(); err != nil {
		return Quotes{}, err
	}

	gamma := params.Gamma
	floor := m.GammaFloor
	if floor <= 0 {
		floor = DefaultGammaFloor
	}
	if gamma < floor {
		gamma = floor
	}
	k := params.K
	if k < defaultKFloor {
		k = defaultKFloor
	}

	horizon := float64(params.TimeHorizonSeconds)
	inventoryTerm := gamma * params.Sigma * params.Sigma * horizon

	reservation := midPrice - inventory*inventoryTerm
	delta := math.Log(1+gamma/k)/gamma + 0.5*inventoryTerm

	bid := reservation - delta
	ask := reservation + delta

	q := Quotes{
		BidPrice: bid,
		AskPrice: ask,
		BidSize:  m.floorToLot(params.OrderCapUSD / bid),
		AskSize:  m.floorToLot(params.OrderCapUSD / ask),
	}
	return q, nil
}

// floorToLot округляет размер вниз до шага лота биржи
func (m *QuoteModel) floorToLot(size float64) float64 {
	if size <= 0 || math.IsInf(size, 0) || math.IsNaN(size) {
		return 0
	}
	if m.LotSize <= 0 {
		return size
	}
	return math.Floor(size/m.LotSize) * m.LotSize
}
