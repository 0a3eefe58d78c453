package service

import (
	"time"

	"marketmaker/internal/models"
	"marketmaker/internal/repository"
)

// StrategyRepositoryInterface определяет интерфейс репозитория параметров стратегии
type StrategyRepositoryInterface interface {
	Get() (*models.StrategyParams, error)
	Save(params *models.StrategyParams) error
}

// RiskRepositoryInterface определяет интерфейс репозитория риска
type RiskRepositoryInterface interface {
	GetLimits() (*models.RiskLimits, error)
	SaveLimits(limits *models.RiskLimits) error
	CreateEvent(event *models.RiskEvent) error
	GetRecentEvents(limit int) ([]*models.RiskEvent, error)
	ResolveEvent(id int) error
}

// AlertRepositoryInterface определяет интерфейс репозитория оповещений
type AlertRepositoryInterface interface {
	Create(alert *models.Alert) error
	GetRecent(limit int) ([]*models.Alert, error)
	MarkRead(id int) error
	MarkAllRead() error
	CountUnread() (int, error)
}

// TradeRepositoryInterface определяет интерфейс репозитория сделок
type TradeRepositoryInterface interface {
	GetRecent(limit int) ([]*models.Trade, error)
	GetInTimeRange(from, to time.Time) ([]*models.Trade, error)
	SumRealizedPnlSince(from time.Time) (float64, float64, error)
}

// OrderRepositoryInterface определяет интерфейс репозитория ордеров
type OrderRepositoryInterface interface {
	GetRecent(limit int) ([]*models.Order, error)
	CountByStatus(status models.OrderStatus) (int, error)
}

// AppConfigRepositoryInterface определяет интерфейс репозитория системной конфигурации
type AppConfigRepositoryInterface interface {
	Get() (*models.AppConfig, error)
	Save(cfg *models.AppConfig) error
}

// KeysRepositoryInterface определяет интерфейс репозитория ключей и пользователей
type KeysRepositoryInterface interface {
	SaveKeys(rec *models.APIKeyRecord) error
	GetKeys() (*models.APIKeyRecord, error)
	DeleteKeys() error
	GetUserByUsername(username string) (*models.User, error)
	CreateUser(user *models.User) error
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ StrategyRepositoryInterface = (*repository.StrategyRepository)(nil)
var _ RiskRepositoryInterface = (*repository.RiskRepository)(nil)
var _ AlertRepositoryInterface = (*repository.AlertRepository)(nil)
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)
var _ OrderRepositoryInterface = (*repository.OrderRepository)(nil)
var _ AppConfigRepositoryInterface = (*repository.AppConfigRepository)(nil)
var _ KeysRepositoryInterface = (*repository.KeysRepository)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// StrategyServiceInterface определяет интерфейс сервиса параметров стратегии
type StrategyServiceInterface interface {
	GetParams() (*models.StrategyParams, error)
	UpdateParams(req *UpdateParamsRequest) (*models.StrategyParams, error)
}

// RiskServiceInterface определяет интерфейс сервиса риска
type RiskServiceInterface interface {
	GetLimits() (*models.RiskLimits, error)
	UpdateLimits(req *UpdateLimitsRequest) (*models.RiskLimits, error)
	GetEvents(limit int) ([]*models.RiskEvent, error)
	ResolveEvent(id int) error
}

// AlertServiceInterface определяет интерфейс сервиса оповещений
type AlertServiceInterface interface {
	Alert(level, message string)
	GetAlerts(limit int) ([]*models.Alert, error)
	MarkRead(id int) error
	MarkAllRead() error
	CountUnread() (int, error)
}

// ConfigServiceInterface определяет интерфейс сервиса системной конфигурации
type ConfigServiceInterface interface {
	GetConfig() (*models.AppConfig, error)
	UpdateConfig(req *UpdateConfigRequest) (*models.AppConfig, bool, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ StrategyServiceInterface = (*StrategyService)(nil)
var _ RiskServiceInterface = (*RiskService)(nil)
var _ AlertServiceInterface = (*AlertService)(nil)
var _ ConfigServiceInterface = (*ConfigService)(nil)
