package service

import (
	"context"

	"marketmaker/internal/models"
)

// ParamsApplier применяет параметры стратегии к работающему движку.
// Реализуется engine.Controller; параметры вступают в силу на границе
// следующего тика котирования.
type ParamsApplier interface {
	SetParams(params models.StrategyParams) error
	Params() models.StrategyParams
}

// StrategyService предоставляет бизнес-логику для управления параметрами GLFT-модели.
//
// Отвечает за:
// - Чтение и обновление параметров котирования (gamma, sigma, A, k, горизонт)
// - Валидацию диапазонов перед сохранением
// - Атомарную доставку новых параметров в движок без перезапуска
// - Персистентность параметров, подобранных ежедневной калибровкой
type StrategyService struct {
	strategyRepo StrategyRepositoryInterface
	applier      ParamsApplier
}

// NewStrategyService создает новый экземпляр StrategyService.
// applier может быть nil (движок не собран): параметры тогда только персистятся.
func NewStrategyService(strategyRepo StrategyRepositoryInterface, applier ParamsApplier) *StrategyService {
	return &StrategyService{
		strategyRepo: strategyRepo,
		applier:      applier,
	}
}

// SetApplier подключает движок после сборки. Сервис создается раньше
// контроллера: он же служит ParamsSaver для планировщика калибровки.
func (s *StrategyService) SetApplier(applier ParamsApplier) {
	s.applier = applier
}

// GetParams возвращает текущие параметры стратегии.
//
// Движок - источник истины для работающей системы: его снапшот отражает
// параметры, примененные последними (в т.ч. калибровкой). БД используется
// как fallback до сборки движка.
func (s *StrategyService) GetParams() (*models.StrategyParams, error) {
	if s.applier != nil {
		params := s.applier.Params()
		return &params, nil
	}
	return s.strategyRepo.Get()
}

// UpdateParamsRequest представляет запрос на обновление параметров стратегии.
// Все поля опциональны - обновляются только переданные.
type UpdateParamsRequest struct {
	Gamma              *float64 `json:"gamma,omitempty"`
	Sigma              *float64 `json:"sigma,omitempty"`
	A                  *float64 `json:"A,omitempty"`
	K                  *float64 `json:"k,omitempty"`
	TimeHorizonSeconds *int     `json:"time_horizon_seconds,omitempty"`
	InventoryCapUSD    *float64 `json:"inventory_cap_usd,omitempty"`
	OrderCapUSD        *float64 `json:"order_cap_usd,omitempty"`
	LeverageLimit      *float64 `json:"leverage_limit,omitempty"`
	AutoTuningEnabled  *bool    `json:"auto_tuning_enabled,omitempty"`
}

// UpdateParams обновляет параметры стратегии.
//
// Принимает только те поля, которые нужно обновить.
// Набор валидируется целиком: при ошибке валидации ни БД, ни движок
// не меняются. Успешное обновление сначала персистится, затем
// доставляется в движок.
func (s *StrategyService) UpdateParams(req *UpdateParamsRequest) (*models.StrategyParams, error) {
	params, err := s.GetParams()
	if err != nil {
		return nil, err
	}

	// Обновляем только переданные поля
	if req.Gamma != nil {
		params.Gamma = *req.Gamma
	}
	if req.Sigma != nil {
		params.Sigma = *req.Sigma
	}
	if req.A != nil {
		params.A = *req.A
	}
	if req.K != nil {
		params.K = *req.K
	}
	if req.TimeHorizonSeconds != nil {
		params.TimeHorizonSeconds = *req.TimeHorizonSeconds
	}
	if req.InventoryCapUSD != nil {
		params.InventoryCapUSD = *req.InventoryCapUSD
	}
	if req.OrderCapUSD != nil {
		params.OrderCapUSD = *req.OrderCapUSD
	}
	if req.LeverageLimit != nil {
		params.LeverageLimit = *req.LeverageLimit
	}
	if req.AutoTuningEnabled != nil {
		params.AutoTuningEnabled = *req.AutoTuningEnabled
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	if err := s.strategyRepo.Save(params); err != nil {
		return nil, err
	}

	if s.applier != nil {
		if err := s.applier.SetParams(*params); err != nil {
			return nil, err
		}
	}

	return params, nil
}

// SaveParams персистит параметры, подобранные калибровкой.
// Реализует engine.ParamsSaver: в движок их применяет сам планировщик.
func (s *StrategyService) SaveParams(_ context.Context, params models.StrategyParams) error {
	return s.strategyRepo.Save(&params)
}
