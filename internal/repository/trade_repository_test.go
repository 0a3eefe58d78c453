package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"marketmaker/internal/models"
)

// ============================================================
// TradeRepository Tests
// ============================================================

func TestTradeRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO trades`).
		WithArgs("t-1", "BTC_USDT_Perp", models.SideBuy, 50000.0, 0.1, 0.5, 15.0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	repo := NewTradeRepository(db)
	trade := &models.Trade{
		TradeID:     "t-1",
		Symbol:      "BTC_USDT_Perp",
		Side:        models.SideBuy,
		Price:       50000.0,
		Size:        0.1,
		Fee:         0.5,
		RealizedPnl: 15.0,
	}
	if err := repo.Create(trade); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.ID != 3 {
		t.Errorf("expected ID=3, got %d", trade.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeRepositoryExists(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{"found", true},
		{"not found", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectQuery(`SELECT EXISTS`).
				WithArgs("t-1").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			repo := NewTradeRepository(db)
			exists, err := repo.Exists("t-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if exists != tt.exists {
				t.Errorf("expected %v, got %v", tt.exists, exists)
			}
		})
	}
}

func TestTradeRepositoryGetRecent(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "trade_id", "symbol", "side", "price", "size", "fee", "realized_pnl", "created_at"}).
		AddRow(2, "t-2", "BTC_USDT_Perp", "sell", 50100.0, 0.05, 0.25, 5.0, now).
		AddRow(1, "t-1", "BTC_USDT_Perp", "buy", 50000.0, 0.1, 0.5, 0.0, now.Add(-time.Minute))

	mock.ExpectQuery(`SELECT (.+) FROM trades ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(rows)

	repo := NewTradeRepository(db)
	trades, err := repo.GetRecent(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].TradeID != "t-2" || trades[1].RealizedPnl != 0 {
		t.Errorf("unexpected trades: %+v", trades)
	}
}

func TestTradeRepositorySumRealizedPnlSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	from := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(realized_pnl\), 0\), COALESCE\(SUM\(fee\), 0\)`).
		WithArgs(from).
		WillReturnRows(sqlmock.NewRows([]string{"pnl", "fees"}).AddRow(123.45, 6.78))

	repo := NewTradeRepository(db)
	pnl, fees, err := repo.SumRealizedPnlSince(from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pnl != 123.45 || fees != 6.78 {
		t.Errorf("pnl/fees = %v/%v, want 123.45/6.78", pnl, fees)
	}
}

func TestTradeRepositoryGetInTimeRangeError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM trades`).
		WillReturnError(errors.New("database error"))

	repo := NewTradeRepository(db)
	_, err = repo.GetInTimeRange(time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Error("expected error, got nil")
	}
}
