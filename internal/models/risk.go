package models

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки валидации лимитов
var ErrInvalidLimits = errors.New("invalid risk limits")

// RiskLimits представляет торговые лимиты риск-движка.
// Владелец - Risk Engine; лимиты заменяются атомарно без перезапуска
// цикла котирования и становятся видимыми на границе следующего тика.
type RiskLimits struct {
	ID                 int       `json:"-" db:"id"`
	MaxInventoryUSD    float64   `json:"max_inventory_usd" db:"max_inventory_usd"`
	MaxOrderUSD        float64   `json:"max_order_usd" db:"max_order_usd"`
	MaxLeverage        float64   `json:"max_leverage" db:"max_leverage"`
	MaxCancelRatePerMin float64  `json:"max_cancel_rate_per_min" db:"max_cancel_rate_per_min"`
	MaxOrderRatePerMin float64   `json:"max_order_rate_per_min" db:"max_order_rate_per_min"`
	UpdatedAt          time.Time `json:"-" db:"updated_at"`
}

// Validate проверяет инвариант: все значения лимитов >= 0
func (l *RiskLimits) Validate() error {
	for name, v := range map[string]float64{
		"max_inventory_usd":       l.MaxInventoryUSD,
		"max_order_usd":           l.MaxOrderUSD,
		"max_leverage":            l.MaxLeverage,
		"max_cancel_rate_per_min": l.MaxCancelRatePerMin,
		"max_order_rate_per_min":  l.MaxOrderRatePerMin,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s cannot be negative, got %v", ErrInvalidLimits, name, v)
		}
	}
	return nil
}

// RiskEvent представляет запись журнала риск-событий (append-only аудит)
type RiskEvent struct {
	ID        int       `json:"id" db:"id"`
	Level     string    `json:"level" db:"level"`           // INFO, WARN, ERROR
	EventType string    `json:"event_type" db:"event_type"` // RISK_BLOCK, RATE_BREACH, ORDER_FAIL, ...
	Message   string    `json:"message" db:"message"`
	Resolved  bool      `json:"resolved" db:"resolved"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Типы риск-событий
const (
	RiskEventBlock     = "RISK_BLOCK" // ордер отклонен или обрезан лимитом
	RiskEventRate      = "RATE_BREACH"
	RiskEventOrderFail = "ORDER_FAIL"
	RiskEventHalt      = "ENGINE_HALT"
)
