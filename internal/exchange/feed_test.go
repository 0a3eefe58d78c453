package exchange

import (
	"testing"
)

func newTestFeed(t *testing.T) *MarketFeed {
	t.Helper()
	feed, err := NewMarketFeed(MarketFeedConfig{
		Env:    "testnet",
		Symbol: "BTC_USDT_Perp",
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewMarketFeed: %v", err)
	}
	t.Cleanup(func() { feed.Close() })
	return feed
}

func TestMarketFeed_UnknownEnv(t *testing.T) {
	_, err := NewMarketFeed(MarketFeedConfig{Env: "staging"}, nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestMarketFeed_HandleTickerMessage(t *testing.T) {
	feed := newTestFeed(t)

	var got *Ticker
	feed.OnTicker(func(tk *Ticker) { got = tk })

	feed.handleMessage([]byte(`{"feed":{
		"instrument":"BTC_USDT_Perp",
		"best_bid_price":"49999500000000",
		"best_ask_price":"50000500000000",
		"mark_price":"50000000000000",
		"last_price":"50000200000000",
		"event_time":"1700000000000000000"
	}}`))

	if got == nil {
		t.Fatal("ticker was not delivered")
	}
	if got.BestBid != 49999.5 || got.BestAsk != 50000.5 || got.MidPrice != 50000 {
		t.Errorf("ticker = %+v", got)
	}
}

func TestMarketFeed_IgnoresServiceMessages(t *testing.T) {
	feed := newTestFeed(t)

	delivered := 0
	feed.OnTicker(func(*Ticker) { delivered++ })

	// Ответ на subscribe без поля feed и мусор не доставляются
	feed.handleMessage([]byte(`{"request_id":1,"subscribed":["BTC_USDT_Perp"]}`))
	feed.handleMessage([]byte(`not json`))

	if delivered != 0 {
		t.Errorf("delivered %d service messages, want 0", delivered)
	}
}

func TestMarketFeed_NoHandler(t *testing.T) {
	feed := newTestFeed(t)

	// Без установленного обработчика сообщение не должно паниковать
	feed.handleMessage([]byte(`{"feed":{"instrument":"BTC_USDT_Perp","best_bid_price":"1000000000","best_ask_price":"2000000000"}}`))
}
