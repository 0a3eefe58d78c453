package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"marketmaker/internal/models"
	"marketmaker/internal/repository"
	"marketmaker/internal/service"
)

// AlertHandler отвечает за центр оповещений дашборда
//
// Функции:
// - Лента оповещений (GET /api/v1/alerts)
// - Счетчик непрочитанных (GET /api/v1/alerts/unread)
// - Пометка прочитанным (POST /api/v1/alerts/{id}/read)
// - Пометка всех прочитанными (POST /api/v1/alerts/read-all)
type AlertHandler struct {
	alerts service.AlertServiceInterface
}

// NewAlertHandler создает новый AlertHandler
func NewAlertHandler(alerts service.AlertServiceInterface) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// GetAlerts возвращает последние оповещения
// GET /api/v1/alerts?limit=N
func (h *AlertHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.GetAlerts(parseLimitParam(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// GetUnreadCount возвращает число непрочитанных оповещений
// GET /api/v1/alerts/unread
func (h *AlertHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.alerts.CountUnread()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count unread alerts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead помечает оповещение прочитанным
// POST /api/v1/alerts/{id}/read
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	if err := h.alerts.MarkRead(id); err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to mark alert read")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Message: "read"})
}

// MarkAllRead помечает все оповещения прочитанными
// POST /api/v1/alerts/read-all
func (h *AlertHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.alerts.MarkAllRead(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark alerts read")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Message: "all read"})
}
