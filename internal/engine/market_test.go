package engine

import (
	"testing"
	"time"

	"marketmaker/internal/exchange"
)

// TestApplyTicker_MidFallback проверяет каскад источников mid-цены:
// явный mid -> середина bid/ask -> mark -> last
func TestApplyTicker_MidFallback(t *testing.T) {
	tests := []struct {
		name    string
		ticker  exchange.Ticker
		wantMid float64
	}{
		{"explicit mid wins", exchange.Ticker{MidPrice: 100, BestBid: 90, BestAsk: 92}, 100},
		{"bid/ask midpoint", exchange.Ticker{BestBid: 99, BestAsk: 101}, 100},
		{"mark price fallback", exchange.Ticker{MarkPrice: 98}, 98},
		{"last price fallback", exchange.Ticker{LastPrice: 97}, 97},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMarketState("BTC_USDT_Perp")
			m.ApplyTicker(&tt.ticker)
			if got := m.Snapshot().MidPrice; got != tt.wantMid {
				t.Errorf("mid = %v, want %v", got, tt.wantMid)
			}
		})
	}
}

// TestApplyTicker_ZeroFieldsPreserved проверяет, что нулевые поля тикера
// не затирают последние известные значения
func TestApplyTicker_ZeroFieldsPreserved(t *testing.T) {
	m := NewMarketState("BTC_USDT_Perp")
	m.ApplyTicker(&exchange.Ticker{BestBid: 99, BestAsk: 101, MarkPrice: 100.5})

	// Частичное обновление: только bid
	m.ApplyTicker(&exchange.Ticker{BestBid: 99.5})

	snap := m.Snapshot()
	if snap.BestAsk != 101 {
		t.Errorf("ask = %v, want preserved 101", snap.BestAsk)
	}
	if snap.MarkPrice != 100.5 {
		t.Errorf("mark = %v, want preserved 100.5", snap.MarkPrice)
	}
	// mid пересчитан от свежего bid и сохраненного ask
	if snap.MidPrice != 100.25 {
		t.Errorf("mid = %v, want 100.25", snap.MidPrice)
	}
}

func TestApplyTicker_NilIgnored(t *testing.T) {
	m := NewMarketState("BTC_USDT_Perp")
	m.ApplyTicker(nil)
	if snap := m.Snapshot(); snap.MidPrice != 0 {
		t.Errorf("nil ticker mutated state: %+v", snap)
	}
}

func TestMarketSnapshot_Spread(t *testing.T) {
	m := NewMarketState("BTC_USDT_Perp")
	m.ApplyTicker(&exchange.Ticker{BestBid: 99, BestAsk: 101, Timestamp: time.Now()})
	if got := m.Snapshot().Spread(); got != 2 {
		t.Errorf("spread = %v, want 2", got)
	}
	if got := (MarketSnapshot{}).Spread(); got != 0 {
		t.Errorf("empty snapshot spread = %v, want 0", got)
	}
}
