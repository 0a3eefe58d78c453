package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Хосты WebSocket фида по окружениям
var grvtWSHosts = map[string]string{
	"prod":    "wss://market-data.grvt.io/ws",
	"testnet": "wss://market-data.testnet.grvt.io/ws",
	"dev":     "wss://market-data.dev.gravitymarkets.io/ws",
}

// MarketFeedConfig содержит настройки фида рыночных данных
type MarketFeedConfig struct {
	Env    string
	Symbol string

	// Интервал REST-опроса тикера, когда WebSocket недоступен
	// (default: 1s)
	PollInterval time.Duration
}

// MarketFeed доставляет тикеры по WebSocket с REST-опросом как
// fallback на время переподключения. Поток не прерывается при
// разрыве соединения: опрос подхватывает до восстановления WS.
type MarketFeed struct {
	cfg MarketFeedConfig

	ws  *WSReconnectManager
	gw  Gateway
	log *zap.Logger

	handlerMu sync.RWMutex
	onTicker  func(*Ticker)

	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// NewMarketFeed создаёт фид рыночных данных для окружения GRVT
func NewMarketFeed(cfg MarketFeedConfig, gw Gateway, log *zap.Logger) (*MarketFeed, error) {
	wsURL, ok := grvtWSHosts[cfg.Env]
	if !ok {
		return nil, fmt.Errorf("unknown grvt environment: %q", cfg.Env)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "market_feed"), zap.String("symbol", cfg.Symbol))

	f := &MarketFeed{
		cfg:  cfg,
		ws:   NewWSReconnectManager("grvt-"+cfg.Env, wsURL, DefaultWSReconnectConfig(), log),
		gw:   gw,
		log:  log,
		done: make(chan struct{}),
	}
	f.ws.SetOnMessage(f.handleMessage)
	return f, nil
}

// OnTicker устанавливает обработчик входящих тикеров.
// Вызывается из горутины чтения WebSocket.
func (f *MarketFeed) OnTicker(handler func(*Ticker)) {
	f.handlerMu.Lock()
	f.onTicker = handler
	f.handlerMu.Unlock()
}

// Start подключает WebSocket и запускает fallback-опрос.
// Недоступность WebSocket при старте не фатальна: менеджер
// переподключается сам, а опрос кормит тикерами сразу.
func (f *MarketFeed) Start(ctx context.Context) error {
	sub := map[string]interface{}{
		"method":  "subscribe",
		"stream":  "ticker.s",
		"feed":    []string{f.cfg.Symbol},
		"is_full": true,
	}
	f.ws.AddSubscription(sub)

	if err := f.ws.Connect(); err != nil {
		f.log.Warn("initial websocket connect failed, polling until reconnect", zap.Error(err))
	}

	pollCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	go f.pollLoop(pollCtx)

	return nil
}

// pollLoop опрашивает тикер по REST, пока WebSocket не подключен
func (f *MarketFeed) pollLoop(ctx context.Context) {
	defer close(f.done)

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if f.ws.IsConnected() {
				continue
			}
			reqCtx, cancel := context.WithTimeout(ctx, f.cfg.PollInterval)
			t, err := f.gw.FetchTicker(reqCtx, f.cfg.Symbol)
			cancel()
			if err != nil {
				f.log.Debug("ticker poll failed", zap.Error(err))
				continue
			}
			f.deliver(t)
		}
	}
}

// handleMessage разбирает сообщение фида тикеров
func (f *MarketFeed) handleMessage(data []byte) {
	var msg struct {
		Feed struct {
			Instrument   string `json:"instrument"`
			BestBidPrice string `json:"best_bid_price"`
			BestAskPrice string `json:"best_ask_price"`
			MarkPrice    string `json:"mark_price"`
			LastPrice    string `json:"last_price"`
			EventTime    string `json:"event_time"`
		} `json:"feed"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		f.log.Debug("malformed feed message", zap.Error(err))
		return
	}
	if msg.Feed.Instrument == "" {
		// служебный ответ на subscribe/ping
		return
	}

	bid := normalizePrice(msg.Feed.BestBidPrice)
	ask := normalizePrice(msg.Feed.BestAskPrice)
	t := &Ticker{
		Symbol:    msg.Feed.Instrument,
		BestBid:   bid,
		BestAsk:   ask,
		MarkPrice: normalizePrice(msg.Feed.MarkPrice),
		LastPrice: normalizePrice(msg.Feed.LastPrice),
		Timestamp: parseEventTime(msg.Feed.EventTime),
	}
	if bid > 0 && ask > 0 {
		t.MidPrice = (bid + ask) / 2
	}
	f.deliver(t)
}

func (f *MarketFeed) deliver(t *Ticker) {
	f.handlerMu.RLock()
	handler := f.onTicker
	f.handlerMu.RUnlock()
	if handler != nil {
		handler(t)
	}
}

// State возвращает состояние WebSocket соединения
func (f *MarketFeed) State() WSConnectionState {
	return f.ws.GetState()
}

// Close останавливает фид
func (f *MarketFeed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		if f.cancel != nil {
			f.cancel()
			<-f.done
		}
		err = f.ws.Close()
	})
	return err
}
