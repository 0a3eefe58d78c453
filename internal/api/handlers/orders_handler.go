package handlers

import (
	"net/http"

	"marketmaker/internal/models"
	"marketmaker/internal/service"
)

// OrdersHandler отвечает за журналы ордеров и сделок
//
// Функции:
// - Живые ордера движка (GET /api/v1/orders/open)
// - История ордеров (GET /api/v1/orders)
// - История сделок (GET /api/v1/trades)
// - Позиции движка (GET /api/v1/positions)
type OrdersHandler struct {
	orders  service.OrderRepositoryInterface
	reports *service.ReportService
	control EngineControl
}

// NewOrdersHandler создает новый OrdersHandler
func NewOrdersHandler(orders service.OrderRepositoryInterface, reports *service.ReportService, control EngineControl) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		reports: reports,
		control: control,
	}
}

// GetOpenOrders возвращает живые ордера из движка
// GET /api/v1/orders/open
func (h *OrdersHandler) GetOpenOrders(w http.ResponseWriter, r *http.Request) {
	open := h.control.OpenOrders()
	if open == nil {
		open = []models.Order{}
	}
	writeJSON(w, http.StatusOK, open)
}

// GetPositions возвращает живые позиции движка.
// Движок котирует один инструмент, поэтому список из одной записи.
// GET /api/v1/positions
func (h *OrdersHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []models.Position{h.control.Position()})
}

// GetOrders возвращает историю ордеров
// GET /api/v1/orders?limit=N
func (h *OrdersHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.GetRecent(parseLimitParam(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetTrades возвращает историю сделок
// GET /api/v1/trades?limit=N
func (h *OrdersHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.reports.GetRecentTrades(parseLimitParam(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}
	if trades == nil {
		trades = []*models.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}
