package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"marketmaker/internal/models"
	"marketmaker/pkg/ratelimit"
	"marketmaker/pkg/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Цены GRVT приходят как целые со сдвигом на 9 знаков,
// размеры - со сдвигом на base_decimals инструмента
const grvtPriceMultiplier = 1e9

// Хосты GRVT по окружениям
var grvtHosts = map[string]struct {
	marketData string
	tradeData  string
}{
	"prod": {
		marketData: "https://market-data.grvt.io",
		tradeData:  "https://trades.grvt.io",
	},
	"testnet": {
		marketData: "https://market-data.testnet.grvt.io",
		tradeData:  "https://trades.testnet.grvt.io",
	},
	"dev": {
		marketData: "https://market-data.dev.gravitymarkets.io",
		tradeData:  "https://trades.dev.gravitymarkets.io",
	},
}

// Интервалы свечей GRVT
var grvtCandleIntervals = map[string]string{
	"1m":  "CI_1_M",
	"5m":  "CI_5_M",
	"15m": "CI_15_M",
	"1h":  "CI_1_H",
	"4h":  "CI_4_H",
	"1d":  "CI_1_D",
}

// GRVTConfig содержит параметры подключения к GRVT
type GRVTConfig struct {
	Env          string // prod, testnet или dev
	APIKey       string
	SubAccountID string

	// Запросов в секунду к REST API (default: 10)
	RequestRate  float64
	RequestBurst float64
}

// GRVTGateway реализует Gateway поверх REST API биржи GRVT.
// Использует глобальный HTTP клиент с connection pooling и
// token-bucket лимитер на исходящие запросы.
type GRVTGateway struct {
	cfg GRVTConfig

	marketDataURL string
	tradeDataURL  string

	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	retryCfg   retry.Config
	log        *zap.Logger

	mu          sync.RWMutex
	instruments map[string]*Instrument
}

// NewGRVTGateway создаёт шлюз GRVT для заданного окружения
func NewGRVTGateway(cfg GRVTConfig, log *zap.Logger) (*GRVTGateway, error) {
	hosts, ok := grvtHosts[cfg.Env]
	if !ok {
		return nil, fmt.Errorf("unknown grvt environment: %q", cfg.Env)
	}
	if cfg.RequestRate <= 0 {
		cfg.RequestRate = 10
	}
	if cfg.RequestBurst <= 0 {
		cfg.RequestBurst = 20
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &GRVTGateway{
		cfg:           cfg,
		marketDataURL: hosts.marketData,
		tradeDataURL:  hosts.tradeData,
		httpClient:    GetGlobalHTTPClient().GetClient(),
		limiter:       ratelimit.NewRateLimiter(cfg.RequestRate, cfg.RequestBurst),
		retryCfg:      retry.NetworkConfig(),
		log:           log.With(zap.String("exchange", "grvt"), zap.String("env", cfg.Env)),
		instruments:   make(map[string]*Instrument),
	}, nil
}

// Name возвращает имя окружения биржи
func (g *GRVTGateway) Name() string {
	return "grvt-" + g.cfg.Env
}

// ============================================================
// Транспорт
// ============================================================

// doRequest выполняет POST запрос к GRVT API и декодирует ответ в out.
// Все эндпоинты GRVT принимают JSON тело через POST.
func (g *GRVTGateway) doRequest(ctx context.Context, baseURL, endpoint string, payload, out interface{}) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reqBody string
	if payload != nil {
		jsonBytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = string(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+endpoint, strings.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("X-Grvt-Api-Key", g.cfg.APIKey)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", endpoint, ErrGatewayTimeout)
		}
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", endpoint, err)
	}

	g.log.Debug("api request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000))

	if resp.StatusCode != http.StatusOK {
		// Тело ошибки GRVT: {"code": ..., "message": ...}
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		gerr := &GatewayError{
			Env:      g.Name(),
			Code:     strconv.Itoa(apiErr.Code),
			Message:  msg,
			Original: ErrGatewayRejected,
		}
		// 4xx - отказ по содержимому запроса, повтор даст тот же ответ
		if resp.StatusCode < http.StatusInternalServerError {
			return retry.Permanent(gerr)
		}
		return gerr
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", endpoint, err)
		}
	}
	return nil
}

// ============================================================
// Справочник инструментов
// ============================================================

// LoadMarkets загружает перпетуальные инструменты GRVT.
// Сетевые сбои переигрываются по backoff: без справочника
// шлюз неработоспособен.
func (g *GRVTGateway) LoadMarkets(ctx context.Context) error {
	payload := map[string]interface{}{
		"kind":      []string{"PERPETUAL"},
		"is_active": true,
	}

	var resp struct {
		Result []struct {
			Instrument   string `json:"instrument"`
			Base         string `json:"base"`
			Quote        string `json:"quote"`
			TickSize     string `json:"tick_size"`
			MinSize      string `json:"min_size"`
			BaseDecimals int    `json:"base_decimals"`
		} `json:"result"`
	}

	err := retry.Do(ctx, func() error {
		return g.doRequest(ctx, g.marketDataURL, "/full/v1/instruments", payload, &resp)
	}, g.retryCfg)
	if err != nil {
		return fmt.Errorf("load markets: %w", err)
	}

	instruments := make(map[string]*Instrument, len(resp.Result))
	for _, m := range resp.Result {
		if m.Instrument == "" {
			continue
		}
		tickSize := parseFloat(m.TickSize, 0.5)
		minSize := parseFloat(m.MinSize, 0.001)
		baseDecimals := m.BaseDecimals
		if baseDecimals == 0 {
			baseDecimals = 8
		}
		instruments[m.Instrument] = &Instrument{
			Symbol:       m.Instrument,
			Base:         m.Base,
			Quote:        m.Quote,
			TickSize:     tickSize,
			MinSize:      minSize,
			BaseDecimals: baseDecimals,
		}
	}
	if len(instruments) == 0 {
		return fmt.Errorf("load markets: empty instrument list")
	}

	g.mu.Lock()
	g.instruments = instruments
	g.mu.Unlock()

	g.log.Info("markets loaded", zap.Int("instruments", len(instruments)))
	return nil
}

// Instrument возвращает параметры инструмента
func (g *GRVTGateway) Instrument(symbol string) (*Instrument, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	inst, ok := g.instruments[symbol]
	return inst, ok
}

// ResolveSymbol возвращает перпетуал с заданной базовой валютой,
// либо первый доступный инструмент
func (g *GRVTGateway) ResolveSymbol(preferBase string) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.instruments) == 0 {
		return "", fmt.Errorf("markets not loaded")
	}
	for symbol, inst := range g.instruments {
		if inst.Base == preferBase {
			return symbol, nil
		}
	}
	for symbol := range g.instruments {
		return symbol, nil
	}
	return "", ErrUnknownInstrument
}

// ============================================================
// Рыночные данные
// ============================================================

// FetchTicker получает снимок цены инструмента
func (g *GRVTGateway) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	payload := map[string]interface{}{"instrument": symbol}

	var resp struct {
		Result struct {
			Instrument   string `json:"instrument"`
			BestBidPrice string `json:"best_bid_price"`
			BestAskPrice string `json:"best_ask_price"`
			MarkPrice    string `json:"mark_price"`
			LastPrice    string `json:"last_price"`
			EventTime    string `json:"event_time"`
		} `json:"result"`
	}

	if err := g.doRequest(ctx, g.marketDataURL, "/full/v1/ticker", payload, &resp); err != nil {
		return nil, fmt.Errorf("fetch ticker %s: %w", symbol, err)
	}

	bid := normalizePrice(resp.Result.BestBidPrice)
	ask := normalizePrice(resp.Result.BestAskPrice)
	t := &Ticker{
		Symbol:    symbol,
		BestBid:   bid,
		BestAsk:   ask,
		MarkPrice: normalizePrice(resp.Result.MarkPrice),
		LastPrice: normalizePrice(resp.Result.LastPrice),
		Timestamp: parseEventTime(resp.Result.EventTime),
	}
	if bid > 0 && ask > 0 {
		t.MidPrice = (bid + ask) / 2
	}
	return t, nil
}

// FetchCandles получает исторические свечи начиная с startNS
func (g *GRVTGateway) FetchCandles(ctx context.Context, symbol, timeframe string, startNS int64, limit int) ([]*Candle, error) {
	interval, ok := grvtCandleIntervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe: %q", timeframe)
	}

	payload := map[string]interface{}{
		"instrument": symbol,
		"interval":   interval,
		"type":       "TRADE",
		"start_time": strconv.FormatInt(startNS, 10),
		"limit":      limit,
	}

	var resp struct {
		Result []struct {
			Open      string `json:"open"`
			High      string `json:"high"`
			Low       string `json:"low"`
			Close     string `json:"close"`
			VolumeB   string `json:"volume_b"`
			StartTime string `json:"start_time"`
		} `json:"result"`
	}

	err := retry.Do(ctx, func() error {
		return g.doRequest(ctx, g.marketDataURL, "/full/v1/kline", payload, &resp)
	}, g.retryCfg)
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s: %w", symbol, err)
	}

	candles := make([]*Candle, 0, len(resp.Result))
	for _, c := range resp.Result {
		candles = append(candles, &Candle{
			Open:      normalizePrice(c.Open),
			High:      normalizePrice(c.High),
			Low:       normalizePrice(c.Low),
			Close:     normalizePrice(c.Close),
			Volume:    g.normalizeSize(symbol, c.VolumeB),
			Timestamp: parseEventTime(c.StartTime),
		})
	}
	return candles, nil
}

// FetchTrades получает публичные сделки рынка начиная с startNS
func (g *GRVTGateway) FetchTrades(ctx context.Context, symbol string, startNS int64, limit int) ([]*PublicTrade, error) {
	payload := map[string]interface{}{
		"instrument": symbol,
		"start_time": strconv.FormatInt(startNS, 10),
		"limit":      limit,
	}

	var resp struct {
		Result []struct {
			Price     string `json:"price"`
			Size      string `json:"size"`
			EventTime string `json:"event_time"`
		} `json:"result"`
	}

	err := retry.Do(ctx, func() error {
		return g.doRequest(ctx, g.marketDataURL, "/full/v1/trade_history", payload, &resp)
	}, g.retryCfg)
	if err != nil {
		return nil, fmt.Errorf("fetch trades %s: %w", symbol, err)
	}

	trades := make([]*PublicTrade, 0, len(resp.Result))
	for _, t := range resp.Result {
		trades = append(trades, &PublicTrade{
			Price:     normalizePrice(t.Price),
			Size:      g.normalizeSize(symbol, t.Size),
			Timestamp: parseEventTime(t.EventTime),
		})
	}
	return trades, nil
}

// ============================================================
// Аккаунт
// ============================================================

// FetchBalance получает доступный баланс в USDT
func (g *GRVTGateway) FetchBalance(ctx context.Context) (float64, error) {
	payload := map[string]interface{}{"sub_account_id": g.cfg.SubAccountID}

	var resp struct {
		Result struct {
			TotalEquity  string `json:"total_equity"`
			SpotBalances []struct {
				Currency string `json:"currency"`
				Balance  string `json:"balance"`
			} `json:"spot_balances"`
		} `json:"result"`
	}

	if err := g.doRequest(ctx, g.tradeDataURL, "/full/v1/account_summary", payload, &resp); err != nil {
		return 0, fmt.Errorf("fetch balance: %w", err)
	}

	// total_equity уже в USD, балансы валют - fallback
	if eq := parseFloat(resp.Result.TotalEquity, 0); eq > 0 {
		return eq, nil
	}
	for _, b := range resp.Result.SpotBalances {
		if b.Currency == "USDT" || b.Currency == "USD" {
			return parseFloat(b.Balance, 0), nil
		}
	}
	return 0, nil
}

// FetchPositions получает открытые позиции по символу
func (g *GRVTGateway) FetchPositions(ctx context.Context, symbol string) ([]*PositionInfo, error) {
	payload := map[string]interface{}{
		"sub_account_id": g.cfg.SubAccountID,
		"kind":           []string{"PERPETUAL"},
	}

	var resp struct {
		Result []struct {
			Instrument    string `json:"instrument"`
			Size          string `json:"size"`
			EntryPrice    string `json:"entry_price"`
			MarkPrice     string `json:"mark_price"`
			UnrealizedPnl string `json:"unrealized_pnl"`
		} `json:"result"`
	}

	if err := g.doRequest(ctx, g.tradeDataURL, "/full/v1/positions", payload, &resp); err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	positions := make([]*PositionInfo, 0, 1)
	for _, p := range resp.Result {
		if symbol != "" && p.Instrument != symbol {
			continue
		}
		positions = append(positions, &PositionInfo{
			Symbol:        p.Instrument,
			Size:          g.normalizeSize(p.Instrument, p.Size),
			EntryPrice:    normalizePrice(p.EntryPrice),
			MarkPrice:     normalizePrice(p.MarkPrice),
			UnrealizedPnl: parseFloat(p.UnrealizedPnl, 0),
		})
	}
	return positions, nil
}

// FetchMyTrades получает последние сделки аккаунта
func (g *GRVTGateway) FetchMyTrades(ctx context.Context, symbol string, limit int) ([]*Fill, error) {
	payload := map[string]interface{}{
		"sub_account_id": g.cfg.SubAccountID,
		"instrument":     symbol,
		"limit":          limit,
	}

	var resp struct {
		Result []struct {
			TradeID    string `json:"trade_id"`
			OrderID    string `json:"order_id"`
			Instrument string `json:"instrument"`
			IsBuyer    bool   `json:"is_buyer"`
			Price      string `json:"price"`
			Size       string `json:"size"`
			Fee        string `json:"fee"`
			EventTime  string `json:"event_time"`
		} `json:"result"`
	}

	if err := g.doRequest(ctx, g.tradeDataURL, "/full/v1/fill_history", payload, &resp); err != nil {
		return nil, fmt.Errorf("fetch my trades: %w", err)
	}

	fills := make([]*Fill, 0, len(resp.Result))
	for _, f := range resp.Result {
		side := models.SideSell
		if f.IsBuyer {
			side = models.SideBuy
		}
		fills = append(fills, &Fill{
			TradeID:   f.TradeID,
			OrderID:   f.OrderID,
			Symbol:    f.Instrument,
			Side:      side,
			Price:     normalizePrice(f.Price),
			Size:      g.normalizeSize(f.Instrument, f.Size),
			Fee:       parseFloat(f.Fee, 0),
			Timestamp: parseEventTime(f.EventTime),
		})
	}
	return fills, nil
}

// ============================================================
// Ордера
// ============================================================

// CreateLimitOrder размещает лимитный post-only ордер.
// НЕ ретраится: повтор с новым client_order_id может задвоить ордер,
// неудачу переигрывает reconciliation на следующем тике.
func (g *GRVTGateway) CreateLimitOrder(ctx context.Context, req OrderRequest) (*OrderAck, error) {
	inst, ok := g.Instrument(req.Symbol)
	if !ok {
		return nil, fmt.Errorf("create order %s: %w", req.Symbol, ErrUnknownInstrument)
	}

	timeInForce := "GOOD_TILL_TIME"
	expiration := ""
	if req.OrderDurationSecs > 0 {
		expiration = strconv.FormatInt(time.Now().Add(time.Duration(req.OrderDurationSecs)*time.Second).UnixNano(), 10)
	}

	payload := map[string]interface{}{
		"order": map[string]interface{}{
			"sub_account_id": g.cfg.SubAccountID,
			"is_market":      false,
			"time_in_force":  timeInForce,
			"post_only":      req.PostOnly,
			"legs": []map[string]interface{}{{
				"instrument":      req.Symbol,
				"size":            denormalizeSize(req.Size, inst.BaseDecimals),
				"limit_price":     denormalizePrice(req.Price),
				"is_buying_asset": req.Side == models.SideBuy,
			}},
			"metadata": map[string]interface{}{
				"client_order_id": req.ClientOrderID,
				"expiration":      expiration,
			},
		},
	}

	var resp struct {
		Result struct {
			OrderID string `json:"order_id"`
			State   struct {
				Status string `json:"status"`
			} `json:"state"`
		} `json:"result"`
	}

	if err := g.doRequest(ctx, g.tradeDataURL, "/full/v1/create_order", payload, &resp); err != nil {
		return nil, fmt.Errorf("create order %s %s: %w", req.Side, req.Symbol, err)
	}

	return &OrderAck{
		OrderID:   resp.Result.OrderID,
		Status:    mapOrderStatus(resp.Result.State.Status),
		Timestamp: time.Now(),
	}, nil
}

// CancelOrder отменяет ордер по идентификатору биржи
func (g *GRVTGateway) CancelOrder(ctx context.Context, orderID string) error {
	payload := map[string]interface{}{
		"sub_account_id": g.cfg.SubAccountID,
		"order_id":       orderID,
	}
	if err := g.doRequest(ctx, g.tradeDataURL, "/full/v1/cancel_order", payload, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// ============================================================
// Округление
// ============================================================

// RoundPrice округляет цену вниз до tick size инструмента
func (g *GRVTGateway) RoundPrice(symbol string, price float64) float64 {
	inst, ok := g.Instrument(symbol)
	if !ok || inst.TickSize <= 0 {
		return price
	}
	return math.Floor(price/inst.TickSize) * inst.TickSize
}

// RoundSize округляет размер вниз до lot size, поднимая до min_size
func (g *GRVTGateway) RoundSize(symbol string, size float64) float64 {
	inst, ok := g.Instrument(symbol)
	if !ok {
		return size
	}
	step := inst.LotSize()
	rounded := math.Floor(size/step) * step
	if rounded < inst.MinSize {
		return inst.MinSize
	}
	return rounded
}

// Close закрывает соединения с биржей
func (g *GRVTGateway) Close() error {
	GetGlobalHTTPClient().Close()
	return nil
}

// ============================================================
// Нормализация значений GRVT
// ============================================================

func normalizePrice(raw string) float64 {
	return parseFloat(raw, 0) / grvtPriceMultiplier
}

func denormalizePrice(price float64) string {
	return strconv.FormatInt(int64(math.Round(price*grvtPriceMultiplier)), 10)
}

func (g *GRVTGateway) normalizeSize(symbol, raw string) float64 {
	inst, ok := g.Instrument(symbol)
	if !ok {
		return parseFloat(raw, 0)
	}
	return parseFloat(raw, 0) / math.Pow10(inst.BaseDecimals)
}

func denormalizeSize(size float64, baseDecimals int) string {
	return strconv.FormatInt(int64(math.Round(size*math.Pow10(baseDecimals))), 10)
}

func parseFloat(raw string, fallback float64) float64 {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

// parseEventTime разбирает наносекундный timestamp GRVT
func parseEventTime(raw string) time.Time {
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ns == 0 {
		return time.Now()
	}
	return time.Unix(0, ns)
}

// mapOrderStatus переводит статус GRVT во внутренний
func mapOrderStatus(status string) models.OrderStatus {
	switch strings.ToUpper(status) {
	case "OPEN", "PENDING":
		return models.OrderStatusOpen
	case "FILLED":
		return models.OrderStatusFilled
	case "CANCELLED", "EXPIRED":
		return models.OrderStatusCancelled
	case "REJECTED":
		return models.OrderStatusRejected
	default:
		return models.OrderStatusNew
	}
}
