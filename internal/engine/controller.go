package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketmaker/internal/exchange"
	"marketmaker/internal/models"
)

// ============================================================================
// Контроллер движка: машина состояний и последовательный цикл котирования
// ============================================================================

// ControllerConfig - настройки цикла котирования
type ControllerConfig struct {
	Symbol               string
	QuoteInterval        time.Duration
	PositionSyncInterval time.Duration // синхронизация позиции и баланса
	TradeSyncInterval    time.Duration // синхронизация истории сделок
	TradeSyncLimit       int
}

// Controller управляет жизненным циклом движка: Stopped -> Running -> Halted.
//
// Цикл котирования строго последовательный: один тик за раз. Асинхронные
// события (fills, тикеры) буферизуются в каналы и выгружаются в начале
// каждого тика, поэтому обработчикам состояния не нужны блокировки против
// середины тика.
type Controller struct {
	mu    sync.RWMutex
	state State

	gw     exchange.Gateway
	market *MarketState
	quote  *QuoteModel
	risk   *RiskEngine
	orders *OrderManager
	store  Store
	alert  Alerter
	log    *zap.Logger
	clock  Clock
	cfg    ControllerConfig

	params models.StrategyParams

	fills   chan *exchange.Fill
	tickers chan *exchange.Ticker

	cancelRun context.CancelFunc
	done      chan struct{}

	equityUSD       float64
	lastPosSync     time.Time
	lastTradeSync   time.Time
	cancelledOnHalt bool
}

// NewController создает контроллер движка
func NewController(gw exchange.Gateway, market *MarketState, quote *QuoteModel, risk *RiskEngine, orders *OrderManager, params models.StrategyParams, cfg ControllerConfig, log *zap.Logger, clock Clock) *Controller {
	if clock == nil {
		clock = RealClock()
	}
	if cfg.QuoteInterval <= 0 {
		cfg.QuoteInterval = time.Second
	}
	if cfg.PositionSyncInterval <= 0 {
		cfg.PositionSyncInterval = 2 * time.Second
	}
	if cfg.TradeSyncInterval <= 0 {
		cfg.TradeSyncInterval = 10 * time.Second
	}
	if cfg.TradeSyncLimit <= 0 {
		cfg.TradeSyncLimit = 50
	}

	c := &Controller{
		state:   State{Status: StatusStopped},
		gw:      gw,
		market:  market,
		quote:   quote,
		risk:    risk,
		orders:  orders,
		store:   nil,
		log:     log,
		clock:   clock,
		cfg:     cfg,
		params:  params,
		fills:   make(chan *exchange.Fill, 256),
		tickers: make(chan *exchange.Ticker, 64),
	}

	// Отправки блокируются сразу при выходе из Running, не дожидаясь
	// границы тика
	orders.SetTradingAllowed(func() bool {
		return c.Status().Status == StatusRunning
	})
	// Breach счетчиков частоты останавливает движок синхронно
	risk.SetOnBreach(func(reason string) {
		if err := c.Halt(reason); err != nil {
			log.Warn("halt on breach failed", zap.Error(err))
		}
	})
	return c
}

// SetStore устанавливает порт персистентности для риск-событий halt'а
func (c *Controller) SetStore(s Store) {
	c.mu.Lock()
	c.store = s
	c.mu.Unlock()
}

// SetAlerter устанавливает канал уведомлений
func (c *Controller) SetAlerter(a Alerter) {
	c.mu.Lock()
	c.alert = a
	c.mu.Unlock()
}

// Risk возвращает риск-движок (лимиты, счетчики частоты)
func (c *Controller) Risk() *RiskEngine {
	return c.risk
}

// Orders возвращает менеджер ордеров (позиция, живые котировки)
func (c *Controller) Orders() *OrderManager {
	return c.orders
}

// Market возвращает состояние рынка (последний тикер)
func (c *Controller) Market() *MarketState {
	return c.market
}

// Status возвращает текущее состояние движка
func (c *Controller) Status() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Params возвращает копию текущих параметров стратегии
func (c *Controller) Params() models.StrategyParams {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params
}

// SetParams атомарно заменяет параметры стратегии. Работающий цикл
// увидит их на границе следующего тика.
func (c *Controller) SetParams(params models.StrategyParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.params = params
	c.mu.Unlock()
	return nil
}

// EquityUSD возвращает последний синхронизированный баланс аккаунта
func (c *Controller) EquityUSD() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.equityUSD
}

// PushFill передает fill-событие в цикл котирования. Неблокирующий:
// при переполненном буфере событие будет подобрано синхронизацией
// истории сделок.
func (c *Controller) PushFill(fill *exchange.Fill) {
	select {
	case c.fills <- fill:
	default:
		c.log.Warn("fill buffer full, deferring to trade sync",
			zap.String("trade_id", fill.TradeID))
	}
}

// PushTicker передает рыночный тикер в цикл котирования
func (c *Controller) PushTicker(t *exchange.Ticker) {
	select {
	case c.tickers <- t:
	default:
		// тикеры идемпотентны, потеря промежуточного не страшна
	}
}

// Start запускает цикл котирования. Запуск из Halted заново валидирует
// риск-лимиты и очищает окна счетчиков частоты.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status == StatusRunning {
		return fmt.Errorf("%w: engine already running", ErrInvalidState)
	}
	if !CanTransition(c.state.Status, StatusRunning) {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, c.state.Status)
	}
	if err := c.params.Validate(); err != nil {
		return fmt.Errorf("strategy params: %w", err)
	}
	limits := c.risk.Limits()
	if err := limits.Validate(); err != nil {
		return fmt.Errorf("risk limits: %w", err)
	}
	if c.state.Status == StatusHalted {
		c.risk.Reset()
	}

	prev := c.state.Status
	c.state = State{Status: StatusRunning}
	c.cancelledOnHalt = false
	EngineUp.Set(1)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelRun = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)

	c.log.Info("engine started",
		zap.String("symbol", c.cfg.Symbol),
		zap.String("previous_state", prev.String()),
		zap.Duration("quote_interval", c.cfg.QuoteInterval))
	return nil
}

// Stop останавливает цикл котирования и отменяет живые ордера.
// Идемпотентен: повторный вызов из Stopped не делает ничего.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state.Status == StatusStopped {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancelRun
	done := c.done
	c.state = State{Status: StatusStopped}
	c.cancelRun = nil
	c.done = nil
	c.mu.Unlock()

	// Дожидаемся завершения текущего тика до отмены ордеров
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	EngineUp.Set(0)

	ctx, cancelCtx := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelCtx()
	if err := c.orders.CancelAll(ctx); err != nil {
		c.log.Warn("cancel on stop failed", zap.Error(err))
	}
	c.log.Info("engine stopped", zap.String("symbol", c.cfg.Symbol))
	return nil
}

// Halt переводит движок в Halted с причиной. Цикл котирования остается
// живым, но перестает котировать; живые ордера отменяются на ближайшей
// границе тика. Выход из Halted - только операторский start или stop.
func (c *Controller) Halt(reason string) error {
	c.mu.Lock()
	if !CanTransition(c.state.Status, StatusHalted) {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot halt from %s", ErrInvalidState, c.state.Status)
	}
	c.state = State{Status: StatusHalted, Reason: reason}
	c.cancelledOnHalt = false
	store := c.store
	alert := c.alert
	c.mu.Unlock()

	EngineUp.Set(0)
	c.log.Error("engine halted", zap.String("reason", reason))

	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.RecordRiskEvent(ctx, models.AlertLevelError, models.RiskEventHalt, reason); err != nil {
			c.log.Warn("halt event persist failed", zap.Error(err))
		}
	}
	if alert != nil {
		alert.Alert(models.AlertLevelError, "engine halted: "+reason)
	}
	return nil
}

// run - цикл котирования. Живет от Start до Stop; в Halted продолжает
// выгружать события и поддерживать позицию, но не котирует.
func (c *Controller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := c.clock.NewTicker(c.cfg.QuoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.tick(ctx)
		}
	}
}

// tick - один проход цикла: выгрузка событий, синхронизация, котирование
func (c *Controller) tick(ctx context.Context) {
	started := c.clock.Now()
	defer func() {
		TickDuration.Observe(c.clock.Now().Sub(started).Seconds())
	}()

	c.drainEvents(ctx)
	c.syncAccount(ctx)

	snap := c.market.Snapshot()
	if snap.MidPrice > 0 {
		c.orders.UpdateMark(ctx, snap.MidPrice)
	}

	st := c.Status()
	if st.Status != StatusRunning {
		// Halt посреди тика: отменяем живые ордера один раз, дальше idle
		c.mu.Lock()
		needCancel := st.Status == StatusHalted && !c.cancelledOnHalt
		c.cancelledOnHalt = true
		c.mu.Unlock()
		if needCancel {
			if err := c.orders.CancelAll(ctx); err != nil {
				c.log.Warn("cancel on halt failed", zap.Error(err))
			}
		}
		return
	}

	if snap.MidPrice <= 0 {
		TicksTotal.WithLabelValues("skipped").Inc()
		return
	}

	if err := c.quoteCycle(ctx, snap); err != nil {
		TicksTotal.WithLabelValues("error").Inc()
		c.log.Warn("tick failed", zap.Error(err))
		return
	}
	TicksTotal.WithLabelValues("ok").Inc()
}

// drainEvents выгружает буферы fills и тикеров на границе тика
func (c *Controller) drainEvents(ctx context.Context) {
	for {
		select {
		case t := <-c.tickers:
			c.market.ApplyTicker(t)
		case f := <-c.fills:
			if err := c.orders.ApplyFill(ctx, f); err != nil {
				c.log.Warn("fill apply failed", zap.String("trade_id", f.TradeID), zap.Error(err))
			}
		default:
			return
		}
	}
}

// syncAccount периодически сверяет баланс и историю сделок с биржей.
// Fill'ы, потерянные WebSocket-фидом, подбираются здесь (дедупликация
// по trade_id внутри ApplyFill).
func (c *Controller) syncAccount(ctx context.Context) {
	now := c.clock.Now()

	c.mu.Lock()
	posDue := now.Sub(c.lastPosSync) >= c.cfg.PositionSyncInterval
	tradeDue := now.Sub(c.lastTradeSync) >= c.cfg.TradeSyncInterval
	if posDue {
		c.lastPosSync = now
	}
	if tradeDue {
		c.lastTradeSync = now
	}
	c.mu.Unlock()

	if posDue {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		balance, err := c.gw.FetchBalance(sctx)
		if err != nil {
			GatewayErrorsTotal.WithLabelValues("balance").Inc()
			c.log.Warn("balance sync failed", zap.Error(err))
		} else {
			c.mu.Lock()
			c.equityUSD = balance
			c.mu.Unlock()
		}

		// Биржа - источник истины по позиции: fill, потерянный и фидом,
		// и trade-sync'ом, не должен навсегда исказить инвентарь
		positions, err := c.gw.FetchPositions(sctx, c.cfg.Symbol)
		cancel()
		if err != nil {
			GatewayErrorsTotal.WithLabelValues("positions").Inc()
			c.log.Warn("position sync failed", zap.Error(err))
		} else {
			c.reconcilePosition(positions)
		}
	}

	if tradeDue {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		fills, err := c.gw.FetchMyTrades(sctx, c.cfg.Symbol, c.cfg.TradeSyncLimit)
		cancel()
		if err != nil {
			GatewayErrorsTotal.WithLabelValues("trades").Inc()
			c.log.Warn("trade sync failed", zap.Error(err))
			return
		}
		for _, f := range fills {
			if err := c.orders.ApplyFill(ctx, f); err != nil {
				c.log.Warn("fill apply failed", zap.String("trade_id", f.TradeID), zap.Error(err))
			}
		}
	}
}

// reconcilePosition перезаписывает локальную позицию данными биржи.
// Отсутствие позиции по символу означает flat.
func (c *Controller) reconcilePosition(positions []*exchange.PositionInfo) {
	remote := models.Position{Symbol: c.cfg.Symbol}
	for _, p := range positions {
		if p.Symbol != c.cfg.Symbol {
			continue
		}
		remote.Size = p.Size
		remote.EntryPrice = p.EntryPrice
		remote.MarkPrice = p.MarkPrice
		remote.UnrealizedPnl = p.UnrealizedPnl
		break
	}

	local := c.orders.Position()
	if math.Abs(local.Size-remote.Size) < 1e-9 {
		return
	}
	c.log.Warn("position diverged from exchange, overwriting",
		zap.Float64("local_size", local.Size),
		zap.Float64("exchange_size", remote.Size))
	remote.UpdatedAt = c.clock.Now()
	c.orders.SetPosition(remote)
}

// quoteCycle - котирующая часть тика: модель -> риск -> reconciliation
func (c *Controller) quoteCycle(ctx context.Context, snap MarketSnapshot) error {
	params := c.Params()
	inventoryBase := c.orders.InventoryBase()
	inventoryUSD := inventoryBase * snap.MidPrice

	// Масштабирование gamma инвентарем: чем ближе позиция к лимиту,
	// тем сильнее перекос котировок к ее разгрузке
	if params.AutoTuningEnabled && params.InventoryCapUSD > 0 {
		ratio := inventoryUSD / params.InventoryCapUSD
		if ratio < 0 {
			ratio = -ratio
		}
		params.Gamma *= 1 + ratio
	}

	quotes, err := c.quote.ComputeQuotes(snap.MidPrice, inventoryBase, params)
	if err != nil {
		return fmt.Errorf("quote model: %w", err)
	}
	QuoteSpread.Observe(quotes.Spread())

	proposed := []OrderIntent{
		{Side: models.SideBuy, Price: c.gw.RoundPrice(c.cfg.Symbol, quotes.BidPrice), Size: quotes.BidSize},
		{Side: models.SideSell, Price: c.gw.RoundPrice(c.cfg.Symbol, quotes.AskPrice), Size: quotes.AskSize},
	}
	for i := range proposed {
		proposed[i].Size = c.gw.RoundSize(c.cfg.Symbol, proposed[i].Size)
	}

	approved, breaches := c.risk.Evaluate(proposed, inventoryUSD, c.EquityUSD())
	for _, b := range breaches {
		c.log.Warn("risk breach",
			zap.String("kind", b.Kind),
			zap.Bool("clipped", b.Clipped),
			zap.String("reason", b.Reason))
		if c.store != nil {
			level := models.AlertLevelWarn
			if !b.Clipped {
				level = models.AlertLevelError
			}
			if err := c.store.RecordRiskEvent(ctx, level, models.RiskEventBlock, b.Reason); err != nil {
				c.log.Warn("risk event persist failed", zap.Error(err))
			}
		}
	}

	return c.orders.Reconcile(ctx, approved)
}
