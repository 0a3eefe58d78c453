package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"marketmaker/internal/models"
)

// ============================================================
// EngineStore Tests
// ============================================================

func newTestStore(t *testing.T) (*EngineStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewEngineStore(
		NewOrderRepository(db),
		NewTradeRepository(db),
		NewPositionRepository(db),
		NewRiskRepository(db),
	)
	return store, mock
}

func TestEngineStoreRecordOrder(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`INSERT INTO orders`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	order := &models.Order{OrderID: "ord-1", Symbol: "BTC_USDT_Perp", Side: models.SideBuy, Status: models.OrderStatusOpen}
	if err := store.RecordOrder(context.Background(), order); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != 1 {
		t.Errorf("expected ID=1, got %d", order.ID)
	}
}

func TestEngineStoreTradeExists(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.TradeExists(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected exists=true")
	}
}

func TestEngineStoreRecordRiskEvent(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`INSERT INTO risk_events`).
		WithArgs("WARN", models.RiskEventBlock, "buy clipped to headroom", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	err := store.RecordRiskEvent(context.Background(), "WARN", models.RiskEventBlock, "buy clipped to headroom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestEngineStoreUpsertPosition(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`INSERT INTO positions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	pos := &models.Position{Symbol: "BTC_USDT_Perp", Size: 0.1, EntryPrice: 50000}
	if err := store.UpsertPosition(context.Background(), pos); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
