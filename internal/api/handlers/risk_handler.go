package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"marketmaker/internal/engine"
	"marketmaker/internal/models"
	"marketmaker/internal/repository"
	"marketmaker/internal/service"
)

// RiskHandler отвечает за риск-лимиты и журнал риск-событий
//
// Функции:
// - Статус риск-движка (GET /api/v1/risk/status)
// - Получение действующих лимитов (GET /api/v1/risk/limits)
// - Частичное обновление лимитов (PATCH /api/v1/risk/limits)
// - Журнал риск-событий (GET /api/v1/risk/events)
// - Пометка события обработанным (POST /api/v1/risk/events/{id}/resolve)
type RiskHandler struct {
	risk    service.RiskServiceInterface
	control EngineControl // nil, пока движок не собран
}

// NewRiskHandler создает новый RiskHandler
func NewRiskHandler(risk service.RiskServiceInterface, control EngineControl) *RiskHandler {
	return &RiskHandler{risk: risk, control: control}
}

// RiskStatusResponse - оперативный статус риск-движка
type RiskStatusResponse struct {
	IsTrading        bool              `json:"is_trading"`
	LastEvent        *models.RiskEvent `json:"last_event"`
	CancelRatePerMin float64           `json:"cancel_rate_per_min"`
	OrderRatePerMin  float64           `json:"order_rate_per_min"`
}

// GetStatus возвращает статус риск-движка: торгует ли движок,
// последнее риск-событие и текущие счетчики частоты
// GET /api/v1/risk/status
func (h *RiskHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := RiskStatusResponse{}
	if h.control != nil {
		resp.IsTrading = h.control.Status().Status == engine.StatusRunning
		resp.CancelRatePerMin = h.control.CancelRatePerMin()
		resp.OrderRatePerMin = h.control.OrderRatePerMin()
	}
	events, err := h.risk.GetEvents(1)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load risk events")
		return
	}
	if len(events) > 0 {
		resp.LastEvent = events[0]
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLimits возвращает действующие риск-лимиты
// GET /api/v1/risk/limits
func (h *RiskHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := h.risk.GetLimits()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load risk limits")
		return
	}
	writeJSON(w, http.StatusOK, limits)
}

// UpdateLimits частично обновляет риск-лимиты
// PATCH /api/v1/risk/limits
func (h *RiskHandler) UpdateLimits(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateLimitsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	limits, err := h.risk.UpdateLimits(&req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidLimits) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update risk limits")
		return
	}
	writeJSON(w, http.StatusOK, limits)
}

// GetEvents возвращает последние риск-события
// GET /api/v1/risk/events?limit=N
func (h *RiskHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimitParam(r, 50)
	events, err := h.risk.GetEvents(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load risk events")
		return
	}
	if events == nil {
		events = []*models.RiskEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ResolveEvent помечает риск-событие обработанным
// POST /api/v1/risk/events/{id}/resolve
func (h *RiskHandler) ResolveEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if err := h.risk.ResolveEvent(id); err != nil {
		if errors.Is(err, repository.ErrRiskEventNotFound) {
			writeError(w, http.StatusNotFound, "risk event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve risk event")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Message: "resolved"})
}

// parseLimitParam читает ?limit=N с дефолтом
func parseLimitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}
