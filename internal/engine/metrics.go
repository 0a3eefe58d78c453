package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах

// TickDuration - длительность полного цикла тика (quote → risk → reconcile)
var TickDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "marketmaker",
		Subsystem: "engine",
		Name:      "tick_duration_ms",
		Help:      "Duration of a full quoting tick in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	},
)

// TicksTotal - количество тиков по результату
var TicksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "marketmaker",
		Subsystem: "engine",
		Name:      "ticks_total",
		Help:      "Total number of quoting ticks",
	},
	[]string{"result"}, // ok, skipped, error
)

// QuoteSpread - наблюдаемый спред рассчитанных котировок
var QuoteSpread = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "marketmaker",
		Subsystem: "engine",
		Name:      "quote_spread_usd",
		Help:      "Spread between computed ask and bid quotes in USD",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250},
	},
)

// EngineUp - состояние движка (1 running, 0 stopped/halted)
var EngineUp = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "marketmaker",
		Subsystem: "engine",
		Name:      "up",
		Help:      "Engine state (1=running, 0=stopped or halted)",
	},
)

// InventoryUSD - текущий инвентарь в USD
var InventoryUSD = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "marketmaker",
		Subsystem: "engine",
		Name:      "inventory_usd",
		Help:      "Current signed inventory in USD",
	},
)

// BreachesTotal - нарушения риск-лимитов по видам
var BreachesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "marketmaker",
		Subsystem: "risk",
		Name:      "breaches_total",
		Help:      "Total number of risk limit breaches",
	},
	[]string{"kind"}, // order_notional, inventory_cap, leverage, cancel_rate, order_rate
)

// OrderEventsTotal - отправки и отмены ордеров
var OrderEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "marketmaker",
		Subsystem: "orders",
		Name:      "events_total",
		Help:      "Total number of order submit/cancel events",
	},
	[]string{"kind"}, // submit, cancel
)

// FillsTotal - исполнения по направлению
var FillsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "marketmaker",
		Subsystem: "orders",
		Name:      "fills_total",
		Help:      "Total number of fills applied",
	},
	[]string{"side"},
)

// RealizedPnlTotal - накопленный реализованный PnL в USD
var RealizedPnlTotal = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "marketmaker",
		Subsystem: "orders",
		Name:      "realized_pnl_usd",
		Help:      "Cumulative realized PnL in USD",
	},
)

// GatewayErrorsTotal - ошибки биржевого шлюза по операциям
var GatewayErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "marketmaker",
		Subsystem: "gateway",
		Name:      "errors_total",
		Help:      "Total number of gateway call failures",
	},
	[]string{"op"}, // submit, cancel, ticker, balance
)

// CalibrationRunsTotal - запуски калибровки по результату
var CalibrationRunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "marketmaker",
		Subsystem: "calibration",
		Name:      "runs_total",
		Help:      "Total number of calibration runs",
	},
	[]string{"result"}, // ok, skipped, error
)
