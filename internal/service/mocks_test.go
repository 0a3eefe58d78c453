package service

import (
	"time"

	"marketmaker/internal/models"
	"marketmaker/internal/repository"
)

// ============ Mock StrategyRepository ============

type MockStrategyRepository struct {
	params  *models.StrategyParams
	getErr  error
	saveErr error
	saved   int
}

func NewMockStrategyRepository() *MockStrategyRepository {
	return &MockStrategyRepository{
		params: &models.StrategyParams{
			Gamma:              0.1,
			Sigma:              12.5,
			A:                  1.5,
			K:                  0.3,
			TimeHorizonSeconds: 3600,
			InventoryCapUSD:    10000,
			OrderCapUSD:        1000,
			LeverageLimit:      5,
		},
	}
}

func (m *MockStrategyRepository) Get() (*models.StrategyParams, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	cp := *m.params
	return &cp, nil
}

func (m *MockStrategyRepository) Save(params *models.StrategyParams) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *params
	m.params = &cp
	m.saved++
	return nil
}

// ============ Mock RiskRepository ============

type MockRiskRepository struct {
	limits     *models.RiskLimits
	events     []*models.RiskEvent
	getErr     error
	saveErr    error
	resolveErr error
	nextID     int
}

func NewMockRiskRepository() *MockRiskRepository {
	return &MockRiskRepository{
		limits: &models.RiskLimits{
			MaxInventoryUSD:     10000,
			MaxOrderUSD:         1000,
			MaxLeverage:         5,
			MaxCancelRatePerMin: 60,
			MaxOrderRatePerMin:  120,
		},
		nextID: 1,
	}
}

func (m *MockRiskRepository) GetLimits() (*models.RiskLimits, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	cp := *m.limits
	return &cp, nil
}

func (m *MockRiskRepository) SaveLimits(limits *models.RiskLimits) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *limits
	m.limits = &cp
	return nil
}

func (m *MockRiskRepository) CreateEvent(event *models.RiskEvent) error {
	event.ID = m.nextID
	m.nextID++
	m.events = append(m.events, event)
	return nil
}

func (m *MockRiskRepository) GetRecentEvents(limit int) ([]*models.RiskEvent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if limit > len(m.events) {
		limit = len(m.events)
	}
	return m.events[:limit], nil
}

func (m *MockRiskRepository) ResolveEvent(id int) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	for _, e := range m.events {
		if e.ID == id {
			e.Resolved = true
			return nil
		}
	}
	return repository.ErrRiskEventNotFound
}

// ============ Mock AlertRepository ============

type MockAlertRepository struct {
	alerts    []*models.Alert
	createErr error
	nextID    int
}

func NewMockAlertRepository() *MockAlertRepository {
	return &MockAlertRepository{nextID: 1}
}

func (m *MockAlertRepository) Create(alert *models.Alert) error {
	if m.createErr != nil {
		return m.createErr
	}
	alert.ID = m.nextID
	m.nextID++
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *MockAlertRepository) GetRecent(limit int) ([]*models.Alert, error) {
	if limit > len(m.alerts) {
		limit = len(m.alerts)
	}
	return m.alerts[:limit], nil
}

func (m *MockAlertRepository) MarkRead(id int) error {
	for _, a := range m.alerts {
		if a.ID == id {
			a.IsRead = true
			return nil
		}
	}
	return repository.ErrAlertNotFound
}

func (m *MockAlertRepository) MarkAllRead() error {
	for _, a := range m.alerts {
		a.IsRead = true
	}
	return nil
}

func (m *MockAlertRepository) CountUnread() (int, error) {
	n := 0
	for _, a := range m.alerts {
		if !a.IsRead {
			n++
		}
	}
	return n, nil
}

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	trades []*models.Trade
	getErr error
	sumErr error
}

func NewMockTradeRepository() *MockTradeRepository {
	return &MockTradeRepository{}
}

func (m *MockTradeRepository) GetRecent(limit int) ([]*models.Trade, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if limit > len(m.trades) {
		limit = len(m.trades)
	}
	return m.trades[:limit], nil
}

func (m *MockTradeRepository) GetInTimeRange(from, to time.Time) ([]*models.Trade, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Trade
	for _, t := range m.trades {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *MockTradeRepository) SumRealizedPnlSince(from time.Time) (float64, float64, error) {
	if m.sumErr != nil {
		return 0, 0, m.sumErr
	}
	var pnl, fees float64
	for _, t := range m.trades {
		if !t.CreatedAt.Before(from) {
			pnl += t.RealizedPnl
			fees += t.Fee
		}
	}
	return pnl, fees, nil
}

// ============ Mock AppConfigRepository ============

type MockAppConfigRepository struct {
	cfg     *models.AppConfig
	getErr  error
	saveErr error
}

func NewMockAppConfigRepository() *MockAppConfigRepository {
	return &MockAppConfigRepository{
		cfg: &models.AppConfig{
			ExchangeEnv:            "testnet",
			Symbol:                 "BTC_USDT_Perp",
			QuoteIntervalMS:        1000,
			OrderDurationSecs:      30,
			CalibrationWindowDays:  7,
			CalibrationTimeframe:   "1m",
			CalibrationUpdateTime:  "00:05",
			CalibrationTradeSample: 1000,
			LogRetentionDays:       30,
		},
	}
}

func (m *MockAppConfigRepository) Get() (*models.AppConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	cp := *m.cfg
	return &cp, nil
}

func (m *MockAppConfigRepository) Save(cfg *models.AppConfig) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *cfg
	m.cfg = &cp
	return nil
}

// ============ Mock KeysRepository ============

type MockKeysRepository struct {
	keys      *models.APIKeyRecord
	users     map[string]*models.User
	saveErr   error
	getErr    error
	createErr error
	nextID    int
}

func NewMockKeysRepository() *MockKeysRepository {
	return &MockKeysRepository{
		users:  make(map[string]*models.User),
		nextID: 1,
	}
}

func (m *MockKeysRepository) SaveKeys(rec *models.APIKeyRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.keys = rec
	return nil
}

func (m *MockKeysRepository) GetKeys() (*models.APIKeyRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.keys == nil {
		return nil, repository.ErrAPIKeysNotFound
	}
	return m.keys, nil
}

func (m *MockKeysRepository) DeleteKeys() error {
	m.keys = nil
	return nil
}

func (m *MockKeysRepository) GetUserByUsername(username string) (*models.User, error) {
	if user, ok := m.users[username]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *MockKeysRepository) CreateUser(user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.Username] = user
	return nil
}

// ============ Mock appliers движка ============

type MockParamsApplier struct {
	params  models.StrategyParams
	applied int
	err     error
}

func (m *MockParamsApplier) SetParams(params models.StrategyParams) error {
	if m.err != nil {
		return m.err
	}
	m.params = params
	m.applied++
	return nil
}

func (m *MockParamsApplier) Params() models.StrategyParams {
	return m.params
}

type MockLimitsApplier struct {
	limits  models.RiskLimits
	applied int
	err     error
}

func (m *MockLimitsApplier) SetLimits(limits models.RiskLimits) error {
	if m.err != nil {
		return m.err
	}
	m.limits = limits
	m.applied++
	return nil
}

func (m *MockLimitsApplier) Limits() models.RiskLimits {
	return m.limits
}

// ============ Mock WebSocket hub ============

type MockBroadcaster struct {
	alerts []*models.Alert
}

func (m *MockBroadcaster) BroadcastAlert(alert *models.Alert) {
	m.alerts = append(m.alerts, alert)
}

// ============ Mock PositionReader ============

type MockPositionReader struct {
	position models.Position
	equity   float64
}

func (m *MockPositionReader) Position() models.Position {
	return m.position
}

func (m *MockPositionReader) EquityUSD() float64 {
	return m.equity
}
