// Package websocket раздает real-time обновления дашборду.
package websocket

import (
	"time"

	"marketmaker/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeMetricsUpdate - периодический снапшот торговых метрик.
	// Отправляется раз в секунду при работающем движке.
	MessageTypeMetricsUpdate MessageType = "metricsUpdate"

	// MessageTypeAlert - новое оповещение (риск-событие, сбой шлюза, halt)
	MessageTypeAlert MessageType = "alert"

	// MessageTypeEngineState - смена состояния движка (stopped/running/halted)
	MessageTypeEngineState MessageType = "engineState"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// MetricsData - снапшот торговых метрик для живого обновления UI
type MetricsData struct {
	Symbol        string  `json:"symbol"`
	MidPrice      float64 `json:"mid_price"`
	BestBid       float64 `json:"best_bid"`
	BestAsk       float64 `json:"best_ask"`
	MarketSpread  float64 `json:"market_spread"`
	PositionBase  float64 `json:"position_base"`
	InventoryUSD  float64 `json:"inventory_usd"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
	EquityUSD     float64 `json:"equity_usd"`
	OpenOrders    int     `json:"open_orders"`
	OrderRate     float64 `json:"order_rate_per_min"`
	CancelRate    float64 `json:"cancel_rate_per_min"`
}

// MetricsUpdateMessage - сообщение с торговыми метриками
type MetricsUpdateMessage struct {
	BaseMessage
	Data *MetricsData `json:"data"`
}

// AlertMessage - сообщение с новым оповещением
type AlertMessage struct {
	BaseMessage
	Data *models.Alert `json:"data"`
}

// EngineStateMessage - сообщение о смене состояния движка
type EngineStateMessage struct {
	BaseMessage
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// NewMetricsUpdateMessage создает сообщение с метриками
func NewMetricsUpdateMessage(data *MetricsData) *MetricsUpdateMessage {
	return &MetricsUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeMetricsUpdate,
			Timestamp: time.Now().UTC(),
		},
		Data: data,
	}
}

// NewAlertMessage создает сообщение оповещения
func NewAlertMessage(alert *models.Alert) *AlertMessage {
	return &AlertMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeAlert,
			Timestamp: time.Now().UTC(),
		},
		Data: alert,
	}
}

// NewEngineStateMessage создает сообщение о состоянии движка
func NewEngineStateMessage(status, reason string) *EngineStateMessage {
	return &EngineStateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeEngineState,
			Timestamp: time.Now().UTC(),
		},
		Status: status,
		Reason: reason,
	}
}
