package repository

import (
	"context"

	"marketmaker/internal/models"
)

// EngineStore - адаптер персистентности торгового ядра: собирает
// репозитории ордеров, сделок, позиций и риск-событий за интерфейсом
// engine.Store
type EngineStore struct {
	orders    *OrderRepository
	trades    *TradeRepository
	positions *PositionRepository
	risk      *RiskRepository
}

// NewEngineStore создает адаптер поверх репозиториев
func NewEngineStore(orders *OrderRepository, trades *TradeRepository, positions *PositionRepository, risk *RiskRepository) *EngineStore {
	return &EngineStore{
		orders:    orders,
		trades:    trades,
		positions: positions,
		risk:      risk,
	}
}

// RecordOrder сохраняет размещенный ордер
func (s *EngineStore) RecordOrder(_ context.Context, order *models.Order) error {
	return s.orders.Create(order)
}

// UpdateOrderStatus обновляет статус ордера по идентификатору биржи
func (s *EngineStore) UpdateOrderStatus(_ context.Context, orderID string, status models.OrderStatus, filledQty float64) error {
	return s.orders.UpdateStatus(orderID, status, filledQty)
}

// RecordTrade сохраняет сделку
func (s *EngineStore) RecordTrade(_ context.Context, trade *models.Trade) error {
	return s.trades.Create(trade)
}

// TradeExists проверяет дубликат сделки
func (s *EngineStore) TradeExists(_ context.Context, tradeID string) (bool, error) {
	return s.trades.Exists(tradeID)
}

// UpsertPosition сохраняет позицию
func (s *EngineStore) UpsertPosition(_ context.Context, pos *models.Position) error {
	return s.positions.Upsert(pos)
}

// RecordRiskEvent сохраняет риск-событие в журнал аудита
func (s *EngineStore) RecordRiskEvent(_ context.Context, level, eventType, message string) error {
	return s.risk.CreateEvent(&models.RiskEvent{
		Level:     level,
		EventType: eventType,
		Message:   message,
	})
}
