package handlers

import (
	"errors"
	"net/http"

	"marketmaker/internal/engine"
	"marketmaker/internal/models"
	"marketmaker/internal/service"
)

// EngineControl - срез торгового движка, нужный HTTP-слою.
// Реализуется адаптером над engine.Controller (см. api.NewEngineControl).
type EngineControl interface {
	Start() error
	Stop() error
	Status() engine.State
	EquityUSD() float64
	Position() models.Position
	OpenOrders() []models.Order
	MarketSnapshot() engine.MarketSnapshot
	Limits() models.RiskLimits
	OrderRatePerMin() float64
	CancelRatePerMin() float64
}

// EngineHandler отвечает за управление торговым движком
//
// Функции:
// - Статус движка (GET /api/v1/engine/status)
// - Запуск котирования (POST /api/v1/engine/start)
// - Остановка котирования (POST /api/v1/engine/stop)
// - Сводный снапшот для дашборда (GET /api/v1/dashboard)
// - Плоские метрики для поллинга (GET /api/v1/dashboard/metrics)
type EngineHandler struct {
	control EngineControl
	reports *service.ReportService
	alerts  service.AlertServiceInterface
}

// NewEngineHandler создает новый EngineHandler
func NewEngineHandler(control EngineControl, reports *service.ReportService, alerts service.AlertServiceInterface) *EngineHandler {
	return &EngineHandler{
		control: control,
		reports: reports,
		alerts:  alerts,
	}
}

// EngineStatusResponse - состояние движка для UI
type EngineStatusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Info   string `json:"info"`
}

func stateResponse(s engine.State) EngineStatusResponse {
	return EngineStatusResponse{
		Status: s.Status.String(),
		Reason: s.Reason,
		Info:   engine.StateInfo(s),
	}
}

// GetStatus возвращает текущее состояние движка
// GET /api/v1/engine/status
func (h *EngineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse(h.control.Status()))
}

// Start запускает цикл котирования
// POST /api/v1/engine/start
func (h *EngineHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Start(); err != nil {
		if errors.Is(err, engine.ErrInvalidState) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(h.control.Status()))
}

// Stop останавливает цикл котирования (с отменой живых ордеров)
// POST /api/v1/engine/stop
func (h *EngineHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Stop(); err != nil {
		if errors.Is(err, engine.ErrInvalidState) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(h.control.Status()))
}

// MetricsResponse - плоский снапшот торговых метрик для виджетов дашборда
type MetricsResponse struct {
	MidPrice         float64 `json:"mid_price"`
	InventoryBase    float64 `json:"inventory_base"`
	InventoryUSD     float64 `json:"inventory_usd"`
	UnrealizedPnl    float64 `json:"unrealized_pnl"`
	OpenOrders       int     `json:"open_orders"`
	Spread           float64 `json:"spread"`
	CancelRatePerMin float64 `json:"cancel_rate_per_min"`
	OrderRatePerMin  float64 `json:"order_rate_per_min"`
}

// GetMetrics возвращает метрики для виджетов
// GET /api/v1/dashboard/metrics
func (h *EngineHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	snap := h.control.MarketSnapshot()
	pos := h.control.Position()
	writeJSON(w, http.StatusOK, MetricsResponse{
		MidPrice:         snap.MidPrice,
		InventoryBase:    pos.Size,
		InventoryUSD:     pos.NotionalUSD(pos.MarkPrice),
		UnrealizedPnl:    pos.UnrealizedPnl,
		OpenOrders:       len(h.control.OpenOrders()),
		Spread:           snap.Spread(),
		CancelRatePerMin: h.control.CancelRatePerMin(),
		OrderRatePerMin:  h.control.OrderRatePerMin(),
	})
}

// DashboardResponse - сводный снапшот для главного экрана дашборда
type DashboardResponse struct {
	Engine       EngineStatusResponse   `json:"engine"`
	Market       engine.MarketSnapshot  `json:"market"`
	MarketSpread float64                `json:"market_spread"`
	Position     models.Position        `json:"position"`
	OpenOrders   []models.Order         `json:"open_orders"`
	Limits       models.RiskLimits      `json:"limits"`
	OrderRate    float64                `json:"order_rate_per_min"`
	CancelRate   float64                `json:"cancel_rate_per_min"`
	Pnl          *service.PnlSummary    `json:"pnl,omitempty"`
	UnreadAlerts int                    `json:"unread_alerts"`
}

// GetDashboard возвращает сводный снапшот состояния системы
// GET /api/v1/dashboard
func (h *EngineHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	snap := h.control.MarketSnapshot()
	resp := DashboardResponse{
		Engine:       stateResponse(h.control.Status()),
		Market:       snap,
		MarketSpread: snap.Spread(),
		Position:     h.control.Position(),
		OpenOrders:   h.control.OpenOrders(),
		Limits:       h.control.Limits(),
		OrderRate:    h.control.OrderRatePerMin(),
		CancelRate:   h.control.CancelRatePerMin(),
	}
	if resp.OpenOrders == nil {
		resp.OpenOrders = []models.Order{}
	}

	if h.reports != nil {
		pnl, err := h.reports.GetSummary()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to build pnl summary")
			return
		}
		resp.Pnl = pnl
	}
	if h.alerts != nil {
		if unread, err := h.alerts.CountUnread(); err == nil {
			resp.UnreadAlerts = unread
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
