// Package api собирает HTTP-слой дашборда: маршруты, middleware, handlers.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"marketmaker/internal/api/handlers"
	"marketmaker/internal/api/middleware"
	"marketmaker/internal/engine"
	"marketmaker/internal/models"
	"marketmaker/internal/service"
	"marketmaker/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	AuthService     *service.AuthService
	StrategyService *service.StrategyService
	RiskService     *service.RiskService
	AlertService    *service.AlertService
	ConfigService   *service.ConfigService
	KeysService     *service.KeysService
	ReportService   *service.ReportService
	OrderRepo       service.OrderRepositoryInterface

	Engine handlers.EngineControl
	Hub    *websocket.Hub
	Log    *zap.Logger
}

// engineControl адаптирует engine.Controller к срезу, нужному handlers
type engineControl struct {
	c *engine.Controller
}

// NewEngineControl оборачивает контроллер движка для HTTP-слоя
func NewEngineControl(c *engine.Controller) handlers.EngineControl {
	return &engineControl{c: c}
}

func (e *engineControl) Start() error                          { return e.c.Start() }
func (e *engineControl) Stop() error                           { return e.c.Stop() }
func (e *engineControl) Status() engine.State                  { return e.c.Status() }
func (e *engineControl) EquityUSD() float64                    { return e.c.EquityUSD() }
func (e *engineControl) Position() models.Position             { return e.c.Orders().Position() }
func (e *engineControl) OpenOrders() []models.Order            { return e.c.Orders().OpenOrders() }
func (e *engineControl) MarketSnapshot() engine.MarketSnapshot { return e.c.Market().Snapshot() }
func (e *engineControl) Limits() models.RiskLimits             { return e.c.Risk().Limits() }
func (e *engineControl) OrderRatePerMin() float64              { return e.c.Risk().OrderRatePerMin() }
func (e *engineControl) CancelRatePerMin() float64             { return e.c.Risk().CancelRatePerMin() }

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /auth/login                    POST  - вход, выдача JWT (без auth)
//	├── /auth/me                       GET   - текущий пользователь
//	├── /dashboard                     GET   - сводный снапшот
//	├── /dashboard/metrics             GET   - плоские метрики для поллинга
//	├── /engine/status                 GET   - состояние движка
//	├── /engine/start                  POST  - запуск котирования
//	├── /engine/stop                   POST  - остановка котирования
//	├── /strategy/params               GET, PATCH/POST
//	├── /risk/status                   GET   - торговый статус и rate-метрики
//	├── /risk/limits                   GET, PATCH/POST
//	├── /risk/events                   GET
//	├── /risk/events/{id}/resolve      POST
//	├── /orders                        GET   - история ордеров
//	├── /orders/open                   GET   - живые ордера движка
//	├── /trades                        GET   - история сделок
//	├── /positions                     GET   - текущая позиция движка
//	├── /alerts                        GET
//	├── /alerts/unread                 GET
//	├── /alerts/{id}/read              POST
//	├── /alerts/read-all               POST
//	├── /keys                          GET, PUT/POST, DELETE
//	├── /config                        GET, PATCH/POST
//	├── /reports/pnl                   GET
//	└── /reports/trades.csv            GET
//
// /ws/stream  - WebSocket для real-time обновлений
// /metrics    - Prometheus метрики
// /health     - health check
//
// Middleware: Recovery → Logging → CORS глобально; Auth (JWT) на /api/v1
// кроме /auth/login.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Log))
	router.Use(middleware.Logging(deps.Log))
	router.Use(middleware.CORS)

	// Вход не требует токена
	if deps.AuthService != nil {
		authHandler := handlers.NewAuthHandler(deps.AuthService)
		router.HandleFunc("/api/v1/auth/login", authHandler.Login).Methods("POST")
	}

	// Защищенное API
	api := router.PathPrefix("/api/v1").Subrouter()
	if deps.AuthService != nil {
		api.Use(middleware.Auth(deps.AuthService))

		authHandler := handlers.NewAuthHandler(deps.AuthService)
		api.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	}

	if deps.Engine != nil {
		// типизированный nil *AlertService не должен попасть в интерфейс
		var alertSvc service.AlertServiceInterface
		if deps.AlertService != nil {
			alertSvc = deps.AlertService
		}
		engineHandler := handlers.NewEngineHandler(deps.Engine, deps.ReportService, alertSvc)
		api.HandleFunc("/dashboard", engineHandler.GetDashboard).Methods("GET")
		api.HandleFunc("/dashboard/metrics", engineHandler.GetMetrics).Methods("GET")
		api.HandleFunc("/engine/status", engineHandler.GetStatus).Methods("GET")
		api.HandleFunc("/engine/start", engineHandler.Start).Methods("POST")
		api.HandleFunc("/engine/stop", engineHandler.Stop).Methods("POST")

		if deps.OrderRepo != nil && deps.ReportService != nil {
			ordersHandler := handlers.NewOrdersHandler(deps.OrderRepo, deps.ReportService, deps.Engine)
			api.HandleFunc("/orders", ordersHandler.GetOrders).Methods("GET")
			api.HandleFunc("/orders/open", ordersHandler.GetOpenOrders).Methods("GET")
			api.HandleFunc("/trades", ordersHandler.GetTrades).Methods("GET")
			api.HandleFunc("/positions", ordersHandler.GetPositions).Methods("GET")
		}
	}

	if deps.StrategyService != nil {
		strategyHandler := handlers.NewStrategyHandler(deps.StrategyService)
		api.HandleFunc("/strategy/params", strategyHandler.GetParams).Methods("GET")
		api.HandleFunc("/strategy/params", strategyHandler.UpdateParams).Methods("PATCH", "POST")
	}

	if deps.RiskService != nil {
		riskHandler := handlers.NewRiskHandler(deps.RiskService, deps.Engine)
		api.HandleFunc("/risk/status", riskHandler.GetStatus).Methods("GET")
		api.HandleFunc("/risk/limits", riskHandler.GetLimits).Methods("GET")
		api.HandleFunc("/risk/limits", riskHandler.UpdateLimits).Methods("PATCH", "POST")
		api.HandleFunc("/risk/events", riskHandler.GetEvents).Methods("GET")
		api.HandleFunc("/risk/events/{id}/resolve", riskHandler.ResolveEvent).Methods("POST")
	}

	if deps.AlertService != nil {
		alertHandler := handlers.NewAlertHandler(deps.AlertService)
		api.HandleFunc("/alerts", alertHandler.GetAlerts).Methods("GET")
		api.HandleFunc("/alerts/unread", alertHandler.GetUnreadCount).Methods("GET")
		api.HandleFunc("/alerts/{id}/read", alertHandler.MarkRead).Methods("POST")
		api.HandleFunc("/alerts/read-all", alertHandler.MarkAllRead).Methods("POST")
	}

	if deps.KeysService != nil {
		keysHandler := handlers.NewKeysHandler(deps.KeysService)
		api.HandleFunc("/keys", keysHandler.GetKeys).Methods("GET")
		api.HandleFunc("/keys", keysHandler.SaveKeys).Methods("PUT", "POST")
		api.HandleFunc("/keys", keysHandler.DeleteKeys).Methods("DELETE")
	}

	if deps.ConfigService != nil {
		configHandler := handlers.NewConfigHandler(deps.ConfigService)
		api.HandleFunc("/config", configHandler.GetConfig).Methods("GET")
		api.HandleFunc("/config", configHandler.UpdateConfig).Methods("PATCH", "POST")
	}

	if deps.ReportService != nil {
		reportHandler := handlers.NewReportHandler(deps.ReportService)
		api.HandleFunc("/reports/pnl", reportHandler.GetPnlSummary).Methods("GET")
		api.HandleFunc("/reports/trades.csv", reportHandler.ExportTrades).Methods("GET")
	}

	// WebSocket: браузерный клиент не может передать Authorization
	// заголовок при апгрейде, поэтому стрим живет вне auth-секции
	// (origin-контроль выполняет upgrader)
	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check (/healthz - алиас для kubernetes-проб)
	health := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
	router.HandleFunc("/health", health).Methods("GET")
	router.HandleFunc("/healthz", health).Methods("GET")

	return router
}
