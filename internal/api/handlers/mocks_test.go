package handlers

import (
	"errors"

	"marketmaker/internal/engine"
	"marketmaker/internal/models"
	"marketmaker/internal/repository"
	"marketmaker/internal/service"
)

// ErrMockDatabase - общая ошибка "БД недоступна" для тестов
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock EngineControl ============

type MockEngineControl struct {
	state      engine.State
	startErr   error
	stopErr    error
	equity     float64
	position   models.Position
	openOrders []models.Order
	snapshot   engine.MarketSnapshot
	limits     models.RiskLimits
	orderRate  float64
	cancelRate float64
	starts     int
	stops      int
}

func NewMockEngineControl() *MockEngineControl {
	return &MockEngineControl{
		state: engine.State{Status: engine.StatusStopped},
		snapshot: engine.MarketSnapshot{
			Symbol:   "BTC_USDT_Perp",
			MidPrice: 50000,
			BestBid:  49999.5,
			BestAsk:  50000.5,
		},
		equity: 10000,
	}
}

func (m *MockEngineControl) Start() error {
	if m.startErr != nil {
		return m.startErr
	}
	m.starts++
	m.state = engine.State{Status: engine.StatusRunning}
	return nil
}

func (m *MockEngineControl) Stop() error {
	if m.stopErr != nil {
		return m.stopErr
	}
	m.stops++
	m.state = engine.State{Status: engine.StatusStopped}
	return nil
}

func (m *MockEngineControl) Status() engine.State                  { return m.state }
func (m *MockEngineControl) EquityUSD() float64                    { return m.equity }
func (m *MockEngineControl) Position() models.Position             { return m.position }
func (m *MockEngineControl) OpenOrders() []models.Order            { return m.openOrders }
func (m *MockEngineControl) MarketSnapshot() engine.MarketSnapshot { return m.snapshot }
func (m *MockEngineControl) Limits() models.RiskLimits             { return m.limits }
func (m *MockEngineControl) OrderRatePerMin() float64              { return m.orderRate }
func (m *MockEngineControl) CancelRatePerMin() float64             { return m.cancelRate }

// ============ Mock StrategyService ============

type MockStrategyService struct {
	params    models.StrategyParams
	getErr    error
	updateErr error
}

func NewMockStrategyService() *MockStrategyService {
	return &MockStrategyService{
		params: models.StrategyParams{
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

func (m *MockStrategyService) GetParams() (*models.StrategyParams, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	cp := m.params
	return &cp, nil
}

func (m *MockStrategyService) UpdateParams(req *service.UpdateParamsRequest) (*models.StrategyParams, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if req.Gamma != nil {
		if *req.Gamma < 0 {
			return nil, models.ErrInvalidParams
		}
		m.params.Gamma = *req.Gamma
	}
	cp := m.params
	return &cp, nil
}

// ============ Mock RiskService ============

type MockRiskService struct {
	limits     models.RiskLimits
	events     []*models.RiskEvent
	getErr     error
	updateErr  error
	resolveErr error
}

func NewMockRiskService() *MockRiskService {
	return &MockRiskService{
		limits: models.RiskLimits{
			MaxInventoryUSD:     10000,
			MaxOrderUSD:         1000,
			MaxLeverage:         5,
			MaxCancelRatePerMin: 60,
			MaxOrderRatePerMin:  120,
		},
	}
}

func (m *MockRiskService) GetLimits() (*models.RiskLimits, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	cp := m.limits
	return &cp, nil
}

func (m *MockRiskService) UpdateLimits(req *service.UpdateLimitsRequest) (*models.RiskLimits, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if req.MaxLeverage != nil {
		if *req.MaxLeverage < 0 {
			return nil, models.ErrInvalidLimits
		}
		m.limits.MaxLeverage = *req.MaxLeverage
	}
	cp := m.limits
	return &cp, nil
}

func (m *MockRiskService) GetEvents(limit int) ([]*models.RiskEvent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.events, nil
}

func (m *MockRiskService) ResolveEvent(id int) error {
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

// ============ Mock AlertService ============

type MockAlertService struct {
	alerts  []*models.Alert
	getErr  error
	markErr error
}

func NewMockAlertService() *MockAlertService {
	return &MockAlertService{}
}

func (m *MockAlertService) Alert(level, message string) {
	m.alerts = append(m.alerts, &models.Alert{
		ID:      len(m.alerts) + 1,
		Level:   level,
		Message: message,
	})
}

func (m *MockAlertService) GetAlerts(limit int) ([]*models.Alert, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.alerts, nil
}

func (m *MockAlertService) MarkRead(id int) error {
	if m.markErr != nil {
		return m.markErr
	}
	for _, a := range m.alerts {
		if a.ID == id {
			a.IsRead = true
			return nil
		}
	}
	return repository.ErrAlertNotFound
}

func (m *MockAlertService) MarkAllRead() error {
	for _, a := range m.alerts {
		a.IsRead = true
	}
	return nil
}

func (m *MockAlertService) CountUnread() (int, error) {
	n := 0
	for _, a := range m.alerts {
		if !a.IsRead {
			n++
		}
	}
	return n, nil
}

// ============ Mock ConfigService ============

type MockConfigService struct {
	cfg       models.AppConfig
	getErr    error
	updateErr error
}

func NewMockConfigService() *MockConfigService {
	return &MockConfigService{
		cfg: models.AppConfig{
			ExchangeEnv:            "testnet",
			Symbol:                 "BTC_USDT_Perp",
			QuoteIntervalMS:        1000,
			OrderDurationSecs:      30,
			CalibrationWindowDays:  7,
			CalibrationTimeframe:   "1m",
			CalibrationUpdateTime:  "00:05",
			CalibrationTradeSample: 1000,
		},
	}
}

func (m *MockConfigService) GetConfig() (*models.AppConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	cp := m.cfg
	return &cp, nil
}

func (m *MockConfigService) UpdateConfig(req *service.UpdateConfigRequest) (*models.AppConfig, bool, error) {
	if m.updateErr != nil {
		return nil, false, m.updateErr
	}
	restart := false
	if req.Symbol != nil && *req.Symbol != m.cfg.Symbol {
		m.cfg.Symbol = *req.Symbol
		restart = true
	}
	if req.QuoteIntervalMS != nil {
		if *req.QuoteIntervalMS <= 0 {
			return nil, false, models.ErrInvalidConfig
		}
		m.cfg.QuoteIntervalMS = *req.QuoteIntervalMS
	}
	cp := m.cfg
	return &cp, restart, nil
}

// ============ Mock Authenticator ============

type MockAuthenticator struct {
	token string
	err   error
}

func (m *MockAuthenticator) Login(username, password string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.token, nil
}
