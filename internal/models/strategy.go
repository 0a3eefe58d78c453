package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Ошибки валидации параметров
var ErrInvalidParams = errors.New("invalid strategy params")

// StrategyParams представляет параметры GLFT-модели котирования.
// Владелец - Quote Model; изменяются только через явную операцию обновления
// с валидацией диапазонов. Контроллер читает снапшот на каждом тике.
type StrategyParams struct {
	ID                 int       `json:"-" db:"id"`
	Gamma              float64   `json:"gamma" db:"gamma"`     // неприятие инвентарного риска
	Sigma              float64   `json:"sigma" db:"sigma"`     // волатильность (в единицах цены за sqrt(сек))
	A                  float64   `json:"A" db:"a"`             // интенсивность потока заявок
	K                  float64   `json:"k" db:"k"`             // крутизна спада интенсивности
	TimeHorizonSeconds int       `json:"time_horizon_seconds" db:"time_horizon_seconds"`
	InventoryCapUSD    float64   `json:"inventory_cap_usd" db:"inventory_cap_usd"`
	OrderCapUSD        float64   `json:"order_cap_usd" db:"order_cap_usd"`
	LeverageLimit      float64   `json:"leverage_limit" db:"leverage_limit"`
	AutoTuningEnabled  bool      `json:"auto_tuning_enabled" db:"auto_tuning_enabled"`
	UpdatedAt          time.Time `json:"-" db:"updated_at"`
}

// Validate проверяет числовые диапазоны параметров.
// Все размерные поля строго положительные, коэффициенты модели конечные.
func (p *StrategyParams) Validate() error {
	for name, v := range map[string]float64{
		"gamma": p.Gamma,
		"sigma": p.Sigma,
		"A":     p.A,
		"k":     p.K,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidParams, name, v)
		}
	}
	if p.Gamma < 0 || p.Sigma < 0 || p.A < 0 || p.K < 0 {
		return fmt.Errorf("%w: gamma/sigma/A/k cannot be negative", ErrInvalidParams)
	}
	if p.TimeHorizonSeconds <= 0 {
		return fmt.Errorf("%w: time_horizon_seconds must be > 0, got %d", ErrInvalidParams, p.TimeHorizonSeconds)
	}
	if p.InventoryCapUSD <= 0 {
		return fmt.Errorf("%w: inventory_cap_usd must be > 0, got %v", ErrInvalidParams, p.InventoryCapUSD)
	}
	if p.OrderCapUSD <= 0 {
		return fmt.Errorf("%w: order_cap_usd must be > 0, got %v", ErrInvalidParams, p.OrderCapUSD)
	}
	if p.LeverageLimit <= 0 {
		return fmt.Errorf("%w: leverage_limit must be > 0, got %v", ErrInvalidParams, p.LeverageLimit)
	}
	return nil
}
