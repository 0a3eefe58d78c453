package engine

import (
	"errors"
	"math"
	"testing"

	"marketmaker/internal/models"
)

// TestComputeQuotes_ZeroInventorySymmetry проверяет симметрию котировок
// вокруг mid при нулевом инвентаре
func TestComputeQuotes_ZeroInventorySymmetry(t *testing.T) {
	m := NewQuoteModel(0)
	mid := 50000.0

	q, err := m.ComputeQuotes(mid, 0, testParams())
	if err != nil {
		t.Fatalf("ComputeQuotes returned error: %v", err)
	}

	bidDist := mid - q.BidPrice
	askDist := q.AskPrice - mid
	if math.Abs(bidDist-askDist) > 1e-9 {
		t.Errorf("quotes not symmetric: bid distance %v, ask distance %v", bidDist, askDist)
	}
	if q.BidPrice >= q.AskPrice {
		t.Errorf("bid %v must be below ask %v", q.BidPrice, q.AskPrice)
	}
}

// TestComputeQuotes_InventorySkew проверяет смещение обеих котировок
// против инвентаря: длинная позиция двигает bid и ask вниз
func TestComputeQuotes_InventorySkew(t *testing.T) {
	m := NewQuoteModel(0)
	mid := 50000.0
	params := testParams()

	neutral, err := m.ComputeQuotes(mid, 0, params)
	if err != nil {
		t.Fatalf("ComputeQuotes returned error: %v", err)
	}
	long, err := m.ComputeQuotes(mid, 0.5, params)
	if err != nil {
		t.Fatalf("ComputeQuotes returned error: %v", err)
	}
	short, err := m.ComputeQuotes(mid, -0.5, params)
	if err != nil {
		t.Fatalf("ComputeQuotes returned error: %v", err)
	}

	if long.BidPrice >= neutral.BidPrice || long.AskPrice >= neutral.AskPrice {
		t.Errorf("long inventory must shift both quotes down: neutral=(%v,%v) long=(%v,%v)",
			neutral.BidPrice, neutral.AskPrice, long.BidPrice, long.AskPrice)
	}
	if short.BidPrice <= neutral.BidPrice || short.AskPrice <= neutral.AskPrice {
		t.Errorf("short inventory must shift both quotes up: neutral=(%v,%v) short=(%v,%v)",
			neutral.BidPrice, neutral.AskPrice, short.BidPrice, short.AskPrice)
	}
	// Спред не зависит от инвентаря, смещается только резервационная цена
	if math.Abs(long.Spread()-neutral.Spread()) > 1e-9 {
		t.Errorf("spread changed with inventory: %v vs %v", long.Spread(), neutral.Spread())
	}
}

// TestComputeQuotes_ZeroSigma проверяет схлопывание полуспреда до члена
// интенсивности при нулевой волатильности
func TestComputeQuotes_ZeroSigma(t *testing.T) {
	m := NewQuoteModel(0)
	params := testParams()
	params.Sigma = 0

	q, err := m.ComputeQuotes(50000.0, 3.0, params)
	if err != nil {
		t.Fatalf("ComputeQuotes returned error: %v", err)
	}

	wantHalf := math.Log(1+params.Gamma/params.K) / params.Gamma
	if math.Abs(q.Spread()/2-wantHalf) > 1e-9 {
		t.Errorf("half-spread = %v, want intensity term %v", q.Spread()/2, wantHalf)
	}
	// Инвентарный член исчез: резервационная цена равна mid
	if math.Abs((q.BidPrice+q.AskPrice)/2-50000.0) > 1e-9 {
		t.Errorf("reservation price shifted without volatility: %v", (q.BidPrice+q.AskPrice)/2)
	}
}

// TestComputeQuotes_GammaFloor проверяет подмену вырожденной gamma полом
// вместо деления на ноль
func TestComputeQuotes_GammaFloor(t *testing.T) {
	m := NewQuoteModel(0)
	params := testParams()
	params.Gamma = 0

	q, err := m.ComputeQuotes(50000.0, 1.0, params)
	if err != nil {
		t.Fatalf("ComputeQuotes returned error: %v", err)
	}
	for name, v := range map[string]float64{
		"bid":      q.BidPrice,
		"ask":      q.AskPrice,
		"bid_size": q.BidSize,
		"ask_size": q.AskSize,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s is not finite: %v", name, v)
		}
	}
	if q.BidPrice >= q.AskPrice {
		t.Errorf("bid %v must stay below ask %v with floored gamma", q.BidPrice, q.AskPrice)
	}
}

// TestComputeQuotes_InvalidMid проверяет отказ на вырожденной mid-цене
func TestComputeQuotes_InvalidMid(t *testing.T) {
	m := NewQuoteModel(0)
	for _, mid := range []float64{0, -100, math.NaN(), math.Inf(1)} {
		if _, err := m.ComputeQuotes(mid, 0, testParams()); !errors.Is(err, ErrInvalidMidPrice) {
			t.Errorf("mid=%v: expected ErrInvalidMidPrice, got %v", mid, err)
		}
	}
}

// TestComputeQuotes_InvalidParams проверяет отказ на невалидных параметрах
func TestComputeQuotes_InvalidParams(t *testing.T) {
	m := NewQuoteModel(0)
	params := testParams()
	params.OrderCapUSD = 0

	if _, err := m.ComputeQuotes(50000.0, 0, params); !errors.Is(err, models.ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}
}

// TestComputeQuotes_SizeLotFloor проверяет округление размеров вниз до лота
func TestComputeQuotes_SizeLotFloor(t *testing.T) {
	m := NewQuoteModel(0.001)
	params := testParams()
	params.OrderCapUSD = 100

	q, err := m.ComputeQuotes(30000.0, 0, params)
	if err != nil {
		t.Fatalf("ComputeQuotes returned error: %v", err)
	}
	// 100/30000 = 0.00333; вниз до лота 0.001 -> 0.003
	if math.Abs(q.BidSize-0.003) > 1e-12 {
		t.Errorf("bid size = %v, want 0.003", q.BidSize)
	}
	if rem := math.Mod(q.AskSize, 0.001); rem > 1e-12 && math.Abs(rem-0.001) > 1e-12 {
		t.Errorf("ask size %v not a lot multiple", q.AskSize)
	}
}

func TestFloorToLot(t *testing.T) {
	m := NewQuoteModel(0.01)
	tests := []struct {
		name string
		size float64
		want float64
	}{
		{"exact multiple", 0.05, 0.05},
		{"rounds down", 0.057, 0.05},
		{"below lot", 0.004, 0},
		{"zero", 0, 0},
		{"negative", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.floorToLot(tt.size); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("floorToLot(%v) = %v, want %v", tt.size, got, tt.want)
			}
		})
	}
}
