package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"marketmaker/internal/models"
)

// ============================================================
// RiskRepository Tests
// ============================================================

func TestRiskRepositoryGetLimits(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "max_inventory_usd", "max_order_usd", "max_leverage",
		"max_cancel_rate_per_min", "max_order_rate_per_min", "updated_at"}).
		AddRow(1, 1000.0, 500.0, 10.0, 100.0, 100.0, now)

	mock.ExpectQuery(`SELECT (.+) FROM risk_limits`).
		WillReturnRows(rows)

	repo := NewRiskRepository(db)
	limits, err := repo.GetLimits()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limits.MaxInventoryUSD != 1000 || limits.MaxLeverage != 10 {
		t.Errorf("unexpected limits: %+v", limits)
	}
}

func TestRiskRepositoryGetLimitsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM risk_limits`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewRiskRepository(db)
	_, err = repo.GetLimits()
	if !errors.Is(err, ErrRiskLimitsNotFound) {
		t.Errorf("expected ErrRiskLimitsNotFound, got %v", err)
	}
}

func TestRiskRepositorySaveLimits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO risk_limits`).
		WithArgs(2000.0, 800.0, 5.0, 60.0, 60.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewRiskRepository(db)
	err = repo.SaveLimits(&models.RiskLimits{
		MaxInventoryUSD:     2000,
		MaxOrderUSD:         800,
		MaxLeverage:         5,
		MaxCancelRatePerMin: 60,
		MaxOrderRatePerMin:  60,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRiskRepositoryCreateEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO risk_events`).
		WithArgs("ERROR", models.RiskEventHalt, "cancel rate limit breached", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	repo := NewRiskRepository(db)
	event := &models.RiskEvent{
		Level:     "ERROR",
		EventType: models.RiskEventHalt,
		Message:   "cancel rate limit breached",
	}
	if err := repo.CreateEvent(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != 5 {
		t.Errorf("expected ID=5, got %d", event.ID)
	}
}

func TestRiskRepositoryResolveEvent(t *testing.T) {
	tests := []struct {
		name        string
		rowsChanged int64
		expectedErr error
	}{
		{"success", 1, nil},
		{"not found", 0, ErrRiskEventNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`UPDATE risk_events SET resolved = TRUE`).
				WithArgs(3).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsChanged))

			repo := NewRiskRepository(db)
			err = repo.ResolveEvent(3)
			if !errors.Is(err, tt.expectedErr) {
				t.Errorf("expected %v, got %v", tt.expectedErr, err)
			}
		})
	}
}

func TestRiskRepositoryGetRecentEvents(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "level", "event_type", "message", "resolved", "created_at"}).
		AddRow(2, "WARN", models.RiskEventBlock, "order clipped to headroom", false, now).
		AddRow(1, "ERROR", models.RiskEventHalt, "order rate limit breached", true, now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT (.+) FROM risk_events`).
		WithArgs(20).
		WillReturnRows(rows)

	repo := NewRiskRepository(db)
	events, err := repo.GetRecentEvents(20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != models.RiskEventBlock || !events[1].Resolved {
		t.Errorf("unexpected events: %+v", events)
	}
}
