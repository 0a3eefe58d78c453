package service

import (
	"marketmaker/internal/models"
)

// LimitsApplier применяет торговые лимиты к работающему риск-движку.
// Реализуется engine.RiskEngine; лимиты заменяются атомарно и
// становятся видимыми на границе следующего тика.
type LimitsApplier interface {
	SetLimits(limits models.RiskLimits) error
	Limits() models.RiskLimits
}

// RiskService предоставляет бизнес-логику для управления риск-лимитами.
//
// Отвечает за:
// - Чтение и обновление лимитов (инвентарь, клип ордера, плечо, частоты)
// - Валидацию лимитов перед сохранением
// - Атомарную доставку новых лимитов в риск-движок без перезапуска
// - Журнал риск-событий (чтение, пометка resolved)
type RiskService struct {
	riskRepo RiskRepositoryInterface
	applier  LimitsApplier
}

// NewRiskService создает новый экземпляр RiskService.
// applier может быть nil (движок не собран): лимиты тогда только персистятся.
func NewRiskService(riskRepo RiskRepositoryInterface, applier LimitsApplier) *RiskService {
	return &RiskService{
		riskRepo: riskRepo,
		applier:  applier,
	}
}

// GetLimits возвращает действующие лимиты.
// Для работающей системы источник истины - риск-движок, БД - fallback.
func (s *RiskService) GetLimits() (*models.RiskLimits, error) {
	if s.applier != nil {
		limits := s.applier.Limits()
		return &limits, nil
	}
	return s.riskRepo.GetLimits()
}

// UpdateLimitsRequest представляет запрос на обновление лимитов.
// Все поля опциональны - обновляются только переданные.
type UpdateLimitsRequest struct {
	MaxInventoryUSD     *float64 `json:"max_inventory_usd,omitempty"`
	MaxOrderUSD         *float64 `json:"max_order_usd,omitempty"`
	MaxLeverage         *float64 `json:"max_leverage,omitempty"`
	MaxCancelRatePerMin *float64 `json:"max_cancel_rate_per_min,omitempty"`
	MaxOrderRatePerMin  *float64 `json:"max_order_rate_per_min,omitempty"`
}

// UpdateLimits обновляет риск-лимиты.
//
// Набор валидируется целиком: при ошибке валидации ни БД, ни движок
// не меняются. Успешное обновление сначала персистится, затем
// доставляется в риск-движок.
func (s *RiskService) UpdateLimits(req *UpdateLimitsRequest) (*models.RiskLimits, error) {
	limits, err := s.GetLimits()
	if err != nil {
		return nil, err
	}

	// Обновляем только переданные поля
	if req.MaxInventoryUSD != nil {
		limits.MaxInventoryUSD = *req.MaxInventoryUSD
	}
	if req.MaxOrderUSD != nil {
		limits.MaxOrderUSD = *req.MaxOrderUSD
	}
	if req.MaxLeverage != nil {
		limits.MaxLeverage = *req.MaxLeverage
	}
	if req.MaxCancelRatePerMin != nil {
		limits.MaxCancelRatePerMin = *req.MaxCancelRatePerMin
	}
	if req.MaxOrderRatePerMin != nil {
		limits.MaxOrderRatePerMin = *req.MaxOrderRatePerMin
	}

	if err := limits.Validate(); err != nil {
		return nil, err
	}

	if err := s.riskRepo.SaveLimits(limits); err != nil {
		return nil, err
	}

	if s.applier != nil {
		if err := s.applier.SetLimits(*limits); err != nil {
			return nil, err
		}
	}

	return limits, nil
}

// GetEvents возвращает последние записи журнала риск-событий
func (s *RiskService) GetEvents(limit int) ([]*models.RiskEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.riskRepo.GetRecentEvents(limit)
}

// ResolveEvent помечает риск-событие как обработанное оператором
func (s *RiskService) ResolveEvent(id int) error {
	return s.riskRepo.ResolveEvent(id)
}
