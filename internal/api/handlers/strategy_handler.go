package handlers

import (
	"errors"
	"net/http"

	"marketmaker/internal/models"
	"marketmaker/internal/service"
)

// StrategyHandler отвечает за параметры GLFT-модели котирования
//
// Функции:
// - Получение текущих параметров (GET /api/v1/strategy/params)
// - Частичное обновление с валидацией (PATCH /api/v1/strategy/params)
type StrategyHandler struct {
	strategy service.StrategyServiceInterface
}

// NewStrategyHandler создает новый StrategyHandler
func NewStrategyHandler(strategy service.StrategyServiceInterface) *StrategyHandler {
	return &StrategyHandler{strategy: strategy}
}

// GetParams возвращает текущие параметры стратегии
// GET /api/v1/strategy/params
func (h *StrategyHandler) GetParams(w http.ResponseWriter, r *http.Request) {
	params, err := h.strategy.GetParams()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load strategy params")
		return
	}
	writeJSON(w, http.StatusOK, params)
}

// UpdateParams частично обновляет параметры стратегии
// PATCH /api/v1/strategy/params
func (h *StrategyHandler) UpdateParams(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateParamsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	params, err := h.strategy.UpdateParams(&req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidParams) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update strategy params")
		return
	}
	writeJSON(w, http.StatusOK, params)
}
