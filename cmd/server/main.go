package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marketmaker/internal/api"
	"marketmaker/internal/api/handlers"
	"marketmaker/internal/config"
	"marketmaker/internal/engine"
	"marketmaker/internal/exchange"
	"marketmaker/internal/models"
	"marketmaker/internal/repository"
	"marketmaker/internal/service"
	"marketmaker/internal/websocket"
	"marketmaker/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.InitLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer logger.Sync()
	zlog := logger.Logger

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	zlog.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	strategyRepo := repository.NewStrategyRepository(db)
	riskRepo := repository.NewRiskRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	keysRepo := repository.NewKeysRepository(db)
	appConfigRepo := repository.NewAppConfigRepository(db)

	// Рабочая конфигурация и параметры: при первом запуске БД пустая,
	// сидируем дефолты и работаем дальше
	appCfg, err := loadOrSeedAppConfig(appConfigRepo)
	if err != nil {
		zlog.Fatal("failed to load app config", zap.Error(err))
	}
	params, err := loadOrSeedStrategyParams(strategyRepo)
	if err != nil {
		zlog.Fatal("failed to load strategy params", zap.Error(err))
	}
	limits, err := loadOrSeedRiskLimits(riskRepo)
	if err != nil {
		zlog.Fatal("failed to load risk limits", zap.Error(err))
	}

	// Аутентификация
	authService := service.NewAuthService(keysRepo, cfg.Security.JWTSecret)
	if cfg.Security.AdminPassword != "" {
		if err := authService.EnsureDefaultAdmin(cfg.Security.AdminUser, cfg.Security.AdminPassword); err != nil {
			zlog.Fatal("failed to ensure admin user", zap.Error(err))
		}
	} else {
		zlog.Warn("ADMIN_PASSWORD not set, skipping admin bootstrap")
	}

	keysService := service.NewKeysService(keysRepo, cfg.Security.EncryptionKey)
	configService := service.NewConfigService(appConfigRepo, cfg.Security.EncryptionKey)
	alertService := service.NewAlertService(alertRepo, appConfigRepo, cfg.Security.EncryptionKey, zlog)

	// StrategyService создается до движка: он же ParamsSaver планировщика
	// калибровки; applier-порт подключается после сборки контроллера
	strategyService := service.NewStrategyService(strategyRepo, nil)

	// WebSocket hub для стриминга метрик и оповещений в дашборд
	hub := websocket.NewHub(zlog)
	go hub.Run()
	defer hub.Stop()
	alertService.SetWebSocketHub(hub)

	// Торговый движок собирается только при наличии биржевых ключей.
	// Без ключей поднимается один дашборд: оператор вводит ключи
	// через /api/v1/keys и перезапускает процесс.
	ctx, cancelEngine := context.WithCancel(context.Background())
	defer cancelEngine()

	var (
		controller *engine.Controller
		scheduler  *engine.CalibrationScheduler
		feed       *exchange.MarketFeed
	)
	creds, err := keysService.Credentials()
	switch {
	case errors.Is(err, repository.ErrAPIKeysNotFound):
		zlog.Warn("exchange API keys not configured, starting dashboard only")
	case err != nil:
		zlog.Fatal("failed to load exchange credentials", zap.Error(err))
	default:
		controller, scheduler, feed, err = buildEngine(ctx, cfg, appCfg, params, limits, creds,
			orderRepo, tradeRepo, positionRepo, riskRepo, alertService, strategyService, zlog)
		if err != nil {
			zlog.Fatal("failed to build trading engine", zap.Error(err))
		}
	}
	if feed != nil {
		defer feed.Close()
	}
	if scheduler != nil {
		scheduler.Start()
		defer scheduler.Stop()
	}
	if controller != nil {
		defer controller.Stop()
	}

	// Сервисы поверх движка; при работе без движка applier-порты nil
	// и обновления применяются только к БД
	var (
		ec             handlers.EngineControl
		limitsApply    service.LimitsApplier
		positionReader service.PositionReader
	)
	if controller != nil {
		ec = api.NewEngineControl(controller)
		strategyService.SetApplier(controller)
		limitsApply = controller.Risk()
		positionReader = ec
	}
	riskService := service.NewRiskService(riskRepo, limitsApply)
	reportService := service.NewReportService(tradeRepo, positionReader)

	if controller != nil {
		go broadcastMetrics(ctx, hub, ec, appCfg.Symbol, cfg.Engine.MetricsBroadcastFreq)
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(&api.Dependencies{
		AuthService:     authService,
		StrategyService: strategyService,
		RiskService:     riskService,
		AlertService:    alertService,
		ConfigService:   configService,
		KeysService:     keysService,
		ReportService:   reportService,
		OrderRepo:       orderRepo,
		Engine:          ec,
		Hub:             hub,
		Log:             zlog,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("starting server", zap.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				zlog.Fatal("server failed", zap.Error(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zlog.Fatal("server failed", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown: сначала останавливаем котирование (с отменой
	// живых ордеров), затем HTTP
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")

	if controller != nil {
		if err := controller.Stop(); err != nil {
			zlog.Warn("engine stop failed", zap.Error(err))
		}
	}
	cancelEngine()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server exited")
}

// buildEngine собирает торговый контур: шлюз биржи, маркет-фид,
// GLFT-модель, риск-движок, менеджер ордеров, контроллер и планировщик
// калибровки. Движок создается в состоянии Stopped; котирование
// запускает оператор через POST /api/v1/engine/start.
func buildEngine(
	ctx context.Context,
	cfg *config.Config,
	appCfg *models.AppConfig,
	params *models.StrategyParams,
	limits *models.RiskLimits,
	creds *service.Credentials,
	orderRepo *repository.OrderRepository,
	tradeRepo *repository.TradeRepository,
	positionRepo *repository.PositionRepository,
	riskRepo *repository.RiskRepository,
	alerter engine.Alerter,
	saver engine.ParamsSaver,
	zlog *zap.Logger,
) (*engine.Controller, *engine.CalibrationScheduler, *exchange.MarketFeed, error) {
	gw, err := exchange.NewGRVTGateway(exchange.GRVTConfig{
		Env:          appCfg.ExchangeEnv,
		APIKey:       creds.APIKey,
		SubAccountID: creds.SubAccountID,
	}, zlog)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("gateway: %w", err)
	}

	loadCtx, cancel := context.WithTimeout(ctx, cfg.Engine.HTTPTimeout*3)
	defer cancel()
	if err := gw.LoadMarkets(loadCtx); err != nil {
		return nil, nil, nil, fmt.Errorf("load markets: %w", err)
	}
	// Конфиг может содержать полное имя инструмента или базовую валюту
	symbol := appCfg.Symbol
	inst, ok := gw.Instrument(symbol)
	if !ok {
		symbol, err = gw.ResolveSymbol(appCfg.Symbol)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("resolve symbol: %w", err)
		}
		inst, _ = gw.Instrument(symbol)
	}

	market := engine.NewMarketState(symbol)
	quote := engine.NewQuoteModel(inst.LotSize())
	risk := engine.NewRiskEngine(*limits, engine.RateUnitCountPerMin, nil)
	store := repository.NewEngineStore(orderRepo, tradeRepo, positionRepo, riskRepo)
	orders := engine.NewOrderManager(gw, store, risk, engine.OrderManagerConfig{
		Symbol:         symbol,
		OrderMaxAge:    time.Duration(appCfg.OrderDurationSecs) * time.Second,
		GatewayTimeout: cfg.Engine.HTTPTimeout,
	}, zlog, nil)

	controller := engine.NewController(gw, market, quote, risk, orders, *params, engine.ControllerConfig{
		Symbol:        symbol,
		QuoteInterval: time.Duration(appCfg.QuoteIntervalMS) * time.Millisecond,
	}, zlog, nil)
	controller.SetStore(store)
	controller.SetAlerter(alerter)

	feed, err := exchange.NewMarketFeed(exchange.MarketFeedConfig{
		Env:    appCfg.ExchangeEnv,
		Symbol: symbol,
	}, gw, zlog)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("market feed: %w", err)
	}
	feed.OnTicker(controller.PushTicker)
	if err := feed.Start(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("start market feed: %w", err)
	}

	calibrator := engine.NewCalibrator(gw, engine.CalibrationConfig{
		Symbol:      symbol,
		WindowDays:  appCfg.CalibrationWindowDays,
		Timeframe:   appCfg.CalibrationTimeframe,
		TradeSample: appCfg.CalibrationTradeSample,
	}, zlog, nil)
	scheduler, err := engine.NewCalibrationScheduler(calibrator, controller, saver,
		appCfg.CalibrationUpdateTime, zlog, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("calibration scheduler: %w", err)
	}

	return controller, scheduler, feed, nil
}

// broadcastMetrics периодически рассылает снапшот метрик в дашборд
func broadcastMetrics(ctx context.Context, hub *websocket.Hub, ec handlers.EngineControl, symbol string, freq time.Duration) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	lastStatus := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := ec.MarketSnapshot()
			pos := ec.Position()
			hub.BroadcastMetrics(&websocket.MetricsData{
				Symbol:        symbol,
				MidPrice:      snap.MidPrice,
				BestBid:       snap.BestBid,
				BestAsk:       snap.BestAsk,
				MarketSpread:  snap.Spread(),
				PositionBase:  pos.Size,
				InventoryUSD:  pos.NotionalUSD(pos.MarkPrice),
				UnrealizedPnl: pos.UnrealizedPnl,
				EquityUSD:     ec.EquityUSD(),
				OpenOrders:    len(ec.OpenOrders()),
				OrderRate:     ec.OrderRatePerMin(),
				CancelRate:    ec.CancelRatePerMin(),
			})

			st := ec.Status()
			if s := st.Status.String(); s != lastStatus {
				hub.BroadcastEngineState(s, st.Reason)
				lastStatus = s
			}
		}
	}
}

// loadOrSeedAppConfig загружает системную конфигурацию, сидируя дефолты
// при первом запуске
func loadOrSeedAppConfig(repo *repository.AppConfigRepository) (*models.AppConfig, error) {
	cfg, err := repo.Get()
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repository.ErrAppConfigNotFound) {
		return nil, err
	}
	cfg = &models.AppConfig{
		ExchangeEnv:            "testnet",
		Symbol:                 "BTC",
		QuoteIntervalMS:        1000,
		OrderDurationSecs:      30,
		CalibrationWindowDays:  7,
		CalibrationTimeframe:   "1m",
		CalibrationUpdateTime:  "00:05",
		CalibrationTradeSample: 1000,
		LogRetentionDays:       30,
	}
	if err := repo.Save(cfg); err != nil {
		return nil, fmt.Errorf("seed app config: %w", err)
	}
	return cfg, nil
}

func loadOrSeedStrategyParams(repo *repository.StrategyRepository) (*models.StrategyParams, error) {
	params, err := repo.Get()
	if err == nil {
		return params, nil
	}
	if !errors.Is(err, repository.ErrStrategyParamsNotFound) {
		return nil, err
	}
	params = &models.StrategyParams{
		Gamma:              0.1,
		Sigma:              10,
		A:                  1.5,
		K:                  0.3,
		TimeHorizonSeconds: 3600,
		InventoryCapUSD:    10000,
		OrderCapUSD:        1000,
		LeverageLimit:      5,
	}
	if err := repo.Save(params); err != nil {
		return nil, fmt.Errorf("seed strategy params: %w", err)
	}
	return params, nil
}

func loadOrSeedRiskLimits(repo *repository.RiskRepository) (*models.RiskLimits, error) {
	limits, err := repo.GetLimits()
	if err == nil {
		return limits, nil
	}
	if !errors.Is(err, repository.ErrRiskLimitsNotFound) {
		return nil, err
	}
	limits = &models.RiskLimits{
		MaxInventoryUSD:     10000,
		MaxOrderUSD:         1000,
		MaxLeverage:         5,
		MaxCancelRatePerMin: 60,
		MaxOrderRatePerMin:  120,
	}
	if err := repo.SaveLimits(limits); err != nil {
		return nil, fmt.Errorf("seed risk limits: %w", err)
	}
	return limits, nil
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
