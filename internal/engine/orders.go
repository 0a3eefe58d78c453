package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketmaker/internal/exchange"
	"marketmaker/internal/models"
)

// Store - порт персистентности Order Manager'а.
// Реализуется адаптером поверх internal/repository.
type Store interface {
	RecordOrder(ctx context.Context, order *models.Order) error
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, filledQty float64) error
	RecordTrade(ctx context.Context, trade *models.Trade) error
	TradeExists(ctx context.Context, tradeID string) (bool, error)
	UpsertPosition(ctx context.Context, pos *models.Position) error
	RecordRiskEvent(ctx context.Context, level, eventType, message string) error
}

// Alerter отправляет уведомления в центр оповещений (и email)
type Alerter interface {
	Alert(level, message string)
}

// OrderManagerConfig - настройки reconciliation'а
type OrderManagerConfig struct {
	Symbol string

	// PriceTolerance - допустимое относительное отклонение цены живого
	// ордера от целевой; сверх него ордер пересоздается (cancel-then-resubmit)
	PriceTolerance float64

	// OrderMaxAge - ордера старше отменяются безусловно
	OrderMaxAge time.Duration

	// GatewayTimeout - таймаут каждого вызова шлюза
	GatewayTimeout time.Duration
}

// liveOrder - живой котирующий ордер одной стороны
type liveOrder struct {
	order    models.Order
	placedAt time.Time
}

// OrderManager владеет жизненным циклом ордеров против биржевого шлюза
// и авторитетным состоянием ордеров/сделок/позиции.
//
// Переходы статусов ордеров происходят только по подтверждениям биржи,
// никогда спекулятивно. Сбой шлюза на одной стороне не прерывает
// обработку другой стороны: неудачное действие переигрывается
// reconciliation'ом на следующем тике.
type OrderManager struct {
	mu    sync.Mutex
	gw    exchange.Gateway
	store Store
	risk  *RiskEngine
	alert Alerter
	log   *zap.Logger
	clock Clock
	cfg   OrderManagerConfig

	live     map[models.Side]*liveOrder
	position models.Position

	// tradingAllowed блокирует новые отправки после остановки/halt'а
	tradingAllowed func() bool

	lastPositionPersist time.Time
}

// NewOrderManager создает Order Manager
func NewOrderManager(gw exchange.Gateway, store Store, risk *RiskEngine, cfg OrderManagerConfig, log *zap.Logger, clock Clock) *OrderManager {
	if clock == nil {
		clock = RealClock()
	}
	if cfg.PriceTolerance <= 0 {
		cfg.PriceTolerance = 1e-9 // любое отклонение цены пересоздает ордер
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 5 * time.Second
	}
	return &OrderManager{
		gw:    gw,
		store: store,
		risk:  risk,
		log:   log,
		clock: clock,
		cfg:   cfg,
		live:  make(map[models.Side]*liveOrder),
		position: models.Position{
			Symbol: cfg.Symbol,
		},
		tradingAllowed: func() bool { return true },
	}
}

// SetAlerter устанавливает канал уведомлений
func (m *OrderManager) SetAlerter(a Alerter) {
	m.mu.Lock()
	m.alert = a
	m.mu.Unlock()
}

// SetTradingAllowed устанавливает предикат, блокирующий отправки
func (m *OrderManager) SetTradingAllowed(fn func() bool) {
	m.mu.Lock()
	m.tradingAllowed = fn
	m.mu.Unlock()
}

// Reconcile приводит живые ордера к одобренным целевым котировкам.
//
// Политика по каждой стороне:
//   - живого ордера нет             -> submit
//   - ордер старше OrderMaxAge      -> cancel безусловно
//   - цена отклонилась сверх tolerance -> cancel, затем submit
//     (никогда не amend - гонка с частичным исполнением)
//   - в пределах tolerance          -> оставить в стакане
func (m *OrderManager) Reconcile(ctx context.Context, approved []OrderIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	targets := make(map[models.Side]OrderIntent, 2)
	for _, intent := range approved {
		targets[intent.Side] = intent
	}

	var errs []error
	for _, side := range []models.Side{models.SideBuy, models.SideSell} {
		if err := m.reconcileSide(ctx, side, targets); err != nil {
			// Сбой одной стороны не прерывает обработку другой
			errs = append(errs, fmt.Errorf("%s: %w", side, err))
		}
	}
	return errors.Join(errs...)
}

func (m *OrderManager) reconcileSide(ctx context.Context, side models.Side, targets map[models.Side]OrderIntent) error {
	target, hasTarget := targets[side]
	lv := m.live[side]

	if lv != nil {
		age := m.clock.Now().Sub(lv.placedAt)
		stale := m.cfg.OrderMaxAge > 0 && age > m.cfg.OrderMaxAge
		deviated := hasTarget && priceDeviation(lv.order.Price, target.Price) > m.cfg.PriceTolerance

		if !stale && !deviated && hasTarget {
			return nil // в пределах tolerance, оставляем в стакане
		}
		if err := m.cancelLocked(ctx, side, lv); err != nil {
			// Отмена не прошла - ордер остается живым, retry на следующем тике
			return err
		}
	}

	if !hasTarget || target.Size <= 0 {
		return nil
	}
	if !m.tradingAllowed() {
		return nil
	}
	return m.submitLocked(ctx, target)
}

// cancelLocked отменяет живой ордер через шлюз
func (m *OrderManager) cancelLocked(ctx context.Context, side models.Side, lv *liveOrder) error {
	cctx, cancel := context.WithTimeout(ctx, m.cfg.GatewayTimeout)
	defer cancel()

	if err := m.gw.CancelOrder(cctx, lv.order.OrderID); err != nil {
		GatewayErrorsTotal.WithLabelValues("cancel").Inc()
		m.log.Warn("order cancel failed",
			zap.String("order_id", lv.order.OrderID),
			zap.String("side", string(side)),
			zap.Error(err))
		return err
	}

	delete(m.live, side)
	OrderEventsTotal.WithLabelValues("cancel").Inc()
	if err := m.store.UpdateOrderStatus(ctx, lv.order.OrderID, models.OrderStatusCancelled, lv.order.FilledQty); err != nil {
		m.log.Warn("order status persist failed", zap.String("order_id", lv.order.OrderID), zap.Error(err))
	}
	m.risk.RecordOrderEvent(EventCancel)
	return nil
}

// submitLocked размещает лимитный ордер через шлюз
func (m *OrderManager) submitLocked(ctx context.Context, target OrderIntent) error {
	req := exchange.OrderRequest{
		ClientOrderID:     uuid.NewString(),
		Symbol:            m.cfg.Symbol,
		Side:              target.Side,
		Price:             target.Price,
		Size:              target.Size,
		PostOnly:          true,
		OrderDurationSecs: int(m.cfg.OrderMaxAge / time.Second),
	}

	sctx, cancel := context.WithTimeout(ctx, m.cfg.GatewayTimeout)
	defer cancel()

	ack, err := m.gw.CreateLimitOrder(sctx, req)
	if err != nil {
		GatewayErrorsTotal.WithLabelValues("submit").Inc()
		m.log.Warn("order submit failed",
			zap.String("side", string(target.Side)),
			zap.Float64("price", target.Price),
			zap.Error(err))
		if perr := m.store.RecordRiskEvent(ctx, models.AlertLevelWarn, models.RiskEventOrderFail, fmt.Sprintf("%s order submit failed: %v", target.Side, err)); perr != nil {
			m.log.Warn("risk event persist failed", zap.Error(perr))
		}
		if m.alert != nil {
			m.alert.Alert(models.AlertLevelWarn, fmt.Sprintf("%s order submit failed: %v", target.Side, err))
		}
		return err
	}

	now := m.clock.Now()
	status := ack.Status
	if status == "" {
		status = models.OrderStatusOpen
	}
	order := models.Order{
		OrderID:   ack.OrderID,
		Symbol:    m.cfg.Symbol,
		Side:      target.Side,
		Price:     target.Price,
		Size:      target.Size,
		Status:    status,
		CreatedAt: now,
	}
	m.risk.RecordOrderEvent(EventSubmit)
	OrderEventsTotal.WithLabelValues("submit").Inc()

	if !status.IsTerminal() {
		m.live[target.Side] = &liveOrder{order: order, placedAt: now}
	}
	if err := m.store.RecordOrder(ctx, &order); err != nil {
		m.log.Warn("order persist failed", zap.String("order_id", order.OrderID), zap.Error(err))
	}
	return nil
}

// ApplyFill применяет fill-событие от шлюза: добавляет неизменяемую запись
// Trade, обновляет Position (средневзвешенный вход при наращивании,
// пропорциональная реализация PnL при сокращении/развороте) и сообщает
// риск-движку новый инвентарь.
func (m *OrderManager) ApplyFill(ctx context.Context, fill *exchange.Fill) error {
	if fill == nil || fill.Size <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if fill.TradeID != "" {
		exists, err := m.store.TradeExists(ctx, fill.TradeID)
		if err == nil && exists {
			return nil // уже учтен при синхронизации истории
		}
	}

	realized := m.applyFillToPositionLocked(fill)

	trade := models.Trade{
		TradeID:     fill.TradeID,
		Symbol:      fill.Symbol,
		Side:        fill.Side,
		Price:       fill.Price,
		Size:        fill.Size,
		Fee:         fill.Fee,
		RealizedPnl: realized,
		CreatedAt:   fill.Timestamp,
	}
	if err := m.store.RecordTrade(ctx, &trade); err != nil {
		m.log.Warn("trade persist failed", zap.String("trade_id", fill.TradeID), zap.Error(err))
	}
	if err := m.store.UpsertPosition(ctx, &m.position); err != nil {
		m.log.Warn("position persist failed", zap.Error(err))
	}

	m.applyFillToOrderLocked(ctx, fill)

	FillsTotal.WithLabelValues(string(fill.Side)).Inc()
	if realized != 0 {
		RealizedPnlTotal.Add(realized)
	}
	m.risk.NotifyInventory(m.position.Size * fill.Price)
	InventoryUSD.Set(m.position.Size * fill.Price)
	return nil
}

// applyFillToPositionLocked обновляет позицию и возвращает реализованный PnL.
//
// Наращивание (fill в направлении позиции): средневзвешенная цена входа.
// Сокращение: realized = (цена - вход) * закрытый объем * знак позиции.
// Разворот: PnL реализуется на закрываемой части, остаток открывается
// по цене fill'а.
func (m *OrderManager) applyFillToPositionLocked(fill *exchange.Fill) float64 {
	pos := &m.position
	direction := 1.0
	if fill.Side == models.SideSell {
		direction = -1.0
	}

	var realized float64
	switch {
	case pos.Size == 0 || sameSign(pos.Size, direction):
		total := math.Abs(pos.Size) + fill.Size
		pos.EntryPrice = (math.Abs(pos.Size)*pos.EntryPrice + fill.Size*fill.Price) / total
		pos.Size += direction * fill.Size
	default:
		closed := math.Min(math.Abs(pos.Size), fill.Size)
		sign := 1.0
		if pos.Size < 0 {
			sign = -1.0
		}
		realized = (fill.Price - pos.EntryPrice) * closed * sign
		remaining := fill.Size - closed
		pos.Size += direction * fill.Size
		if remaining > 0 {
			// разворот: остаток открывает позицию по цене fill'а
			pos.EntryPrice = fill.Price
		} else if pos.Size == 0 {
			pos.EntryPrice = 0
		}
	}

	pos.MarkPrice = fill.Price
	pos.UnrealizedPnl = (pos.MarkPrice - pos.EntryPrice) * pos.Size
	pos.UpdatedAt = fill.Timestamp
	return realized
}

// applyFillToOrderLocked обновляет статус живого ордера по fill'у
func (m *OrderManager) applyFillToOrderLocked(ctx context.Context, fill *exchange.Fill) {
	for side, lv := range m.live {
		if lv.order.OrderID != fill.OrderID {
			continue
		}
		lv.order.FilledQty += fill.Size
		status := models.OrderStatusPartiallyFilled
		if lv.order.FilledQty >= lv.order.Size-1e-12 {
			status = models.OrderStatusFilled
		}
		if !models.CanTransitionOrder(lv.order.Status, status) {
			return
		}
		lv.order.Status = status
		if err := m.store.UpdateOrderStatus(ctx, lv.order.OrderID, status, lv.order.FilledQty); err != nil {
			m.log.Warn("order status persist failed", zap.String("order_id", lv.order.OrderID), zap.Error(err))
		}
		if status.IsTerminal() {
			delete(m.live, side) // архивируем: терминальный ордер покидает живое множество
		}
		return
	}
}

// UpdateMark пересчитывает нереализованный PnL по свежей mid-цене
// и периодически персистит позицию
func (m *OrderManager) UpdateMark(ctx context.Context, markPrice float64) {
	if markPrice <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.position.MarkPrice = markPrice
	m.position.UnrealizedPnl = (markPrice - m.position.EntryPrice) * m.position.Size
	m.risk.NotifyInventory(m.position.Size * markPrice)
	InventoryUSD.Set(m.position.Size * markPrice)

	now := m.clock.Now()
	if now.Sub(m.lastPositionPersist) > 2*time.Second {
		m.lastPositionPersist = now
		if err := m.store.UpsertPosition(ctx, &m.position); err != nil {
			m.log.Warn("position persist failed", zap.Error(err))
		}
	}
}

// CancelAll отменяет все живые котирующие ордера. Идемпотентна: успешно
// отмененные ордера покидают живое множество, повторный вызов не
// породит дублирующих отмен.
func (m *OrderManager) CancelAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for side, lv := range m.live {
		if err := m.cancelLocked(ctx, side, lv); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", side, err))
		}
	}
	return errors.Join(errs...)
}

// Position возвращает копию текущей позиции
func (m *OrderManager) Position() models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// SetPosition устанавливает позицию из данных биржи (синхронизация при старте)
func (m *OrderManager) SetPosition(pos models.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos.Symbol = m.cfg.Symbol
	m.position = pos
	m.risk.NotifyInventory(pos.Size * pos.MarkPrice)
}

// OpenOrders возвращает копии живых ордеров
func (m *OrderManager) OpenOrders() []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := make([]models.Order, 0, len(m.live))
	for _, lv := range m.live {
		orders = append(orders, lv.order)
	}
	return orders
}

// InventoryBase возвращает знаковый инвентарь в базовой валюте
func (m *OrderManager) InventoryBase() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position.Size
}

// priceDeviation возвращает относительное отклонение цены
func priceDeviation(live, target float64) float64 {
	if target == 0 {
		return math.Abs(live)
	}
	return math.Abs(live-target) / math.Abs(target)
}

// sameSign возвращает true если знаковая позиция и направление совпадают
func sameSign(size, direction float64) bool {
	return (size > 0 && direction > 0) || (size < 0 && direction < 0)
}
