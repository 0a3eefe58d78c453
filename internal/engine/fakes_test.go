package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketmaker/internal/exchange"
	"marketmaker/internal/models"

	"go.uber.org/zap"
)

// ============================================================
// Тестовые фейки: виртуальные часы, шлюз, хранилище
// ============================================================

// fakeClock - виртуальные часы; время двигается только Advance()
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// Fire доставляет тик всем созданным тикерам
func (c *fakeClock) Fire() {
	c.mu.Lock()
	now := c.now
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()
	for _, t := range tickers {
		select {
		case t.ch <- now:
		default:
		}
	}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

// fakeGateway - управляемый биржевой шлюз для тестов
type fakeGateway struct {
	mu sync.Mutex

	nextOrderID int
	submits     []exchange.OrderRequest
	cancels     []string

	submitErr error
	failSide  models.Side // пустая - submitErr бьет обе стороны
	cancelErr error

	balance      float64
	balanceErr   error
	positions    []*exchange.PositionInfo
	positionsErr error
	posFetches   int
	myTrades     []*exchange.Fill
	candles      []*exchange.Candle
	trades       []*exchange.PublicTrade
	candlesErr   error
	tradesErr    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{balance: 10000}
}

func (g *fakeGateway) Name() string                            { return "testnet" }
func (g *fakeGateway) LoadMarkets(ctx context.Context) error   { return nil }
func (g *fakeGateway) Close() error                            { return nil }
func (g *fakeGateway) Instrument(symbol string) (*exchange.Instrument, bool) {
	return &exchange.Instrument{Symbol: symbol, TickSize: 0.01, BaseDecimals: 6}, true
}

func (g *fakeGateway) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	return nil, nil
}

func (g *fakeGateway) FetchBalance(ctx context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balance, g.balanceErr
}

func (g *fakeGateway) FetchPositions(ctx context.Context, symbol string) ([]*exchange.PositionInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.posFetches++
	return g.positions, g.positionsErr
}

func (g *fakeGateway) FetchMyTrades(ctx context.Context, symbol string, limit int) ([]*exchange.Fill, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.myTrades, nil
}

func (g *fakeGateway) FetchCandles(ctx context.Context, symbol, timeframe string, startNS int64, limit int) ([]*exchange.Candle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.candles, g.candlesErr
}

func (g *fakeGateway) FetchTrades(ctx context.Context, symbol string, startNS int64, limit int) ([]*exchange.PublicTrade, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.trades, g.tradesErr
}

func (g *fakeGateway) CreateLimitOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderAck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitErr != nil && (g.failSide == "" || req.Side == g.failSide) {
		return nil, g.submitErr
	}
	g.nextOrderID++
	g.submits = append(g.submits, req)
	return &exchange.OrderAck{
		OrderID: fmt.Sprintf("ord-%d", g.nextOrderID),
		Status:  models.OrderStatusOpen,
	}, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancels = append(g.cancels, orderID)
	return nil
}

func (g *fakeGateway) RoundPrice(symbol string, price float64) float64 { return price }
func (g *fakeGateway) RoundSize(symbol string, size float64) float64  { return size }

func (g *fakeGateway) submitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.submits)
}

func (g *fakeGateway) cancelCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cancels)
}

// memStore - in-memory реализация порта персистентности
type memStore struct {
	mu         sync.Mutex
	orders     []models.Order
	statuses   map[string]models.OrderStatus
	trades     []models.Trade
	tradeIDs   map[string]bool
	positions  []models.Position
	riskEvents []models.RiskEvent
}

func newMemStore() *memStore {
	return &memStore{
		statuses: make(map[string]models.OrderStatus),
		tradeIDs: make(map[string]bool),
	}
}

func (s *memStore) RecordOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, *order)
	s.statuses[order.OrderID] = order.Status
	return nil
}

func (s *memStore) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, filledQty float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[orderID] = status
	return nil
}

func (s *memStore) RecordTrade(ctx context.Context, trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, *trade)
	s.tradeIDs[trade.TradeID] = true
	return nil
}

func (s *memStore) TradeExists(ctx context.Context, tradeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tradeIDs[tradeID], nil
}

func (s *memStore) UpsertPosition(ctx context.Context, pos *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append(s.positions, *pos)
	return nil
}

func (s *memStore) RecordRiskEvent(ctx context.Context, level, eventType, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riskEvents = append(s.riskEvents, models.RiskEvent{
		Level:     level,
		EventType: eventType,
		Message:   message,
	})
	return nil
}

func (s *memStore) status(orderID string) models.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[orderID]
}

func (s *memStore) tradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

// fakeAlerter накапливает отправленные уведомления
type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *fakeAlerter) Alert(level, message string) {
	a.mu.Lock()
	a.alerts = append(a.alerts, level+": "+message)
	a.mu.Unlock()
}

// testParams - валидные параметры стратегии для тестов
func testParams() models.StrategyParams {
	return models.StrategyParams{
		Gamma:              0.1,
		Sigma:              0.02,
		A:                  0.5,
		K:                  1.5,
		TimeHorizonSeconds: 60,
		InventoryCapUSD:    1000,
		OrderCapUSD:        100,
		LeverageLimit:      10,
	}
}

// testLimits - мягкие лимиты, не мешающие обычному котированию
func testLimits() models.RiskLimits {
	return models.RiskLimits{
		MaxInventoryUSD:     1000,
		MaxOrderUSD:         500,
		MaxLeverage:         10,
		MaxCancelRatePerMin: 100,
		MaxOrderRatePerMin:  100,
	}
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
