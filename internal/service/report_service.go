package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"marketmaker/internal/models"
)

// PositionReader читает живую позицию и капитал из торгового движка
type PositionReader interface {
	Position() models.Position
	EquityUSD() float64
}

// PnlSummary - сводка прибыли/убытков для дашборда
type PnlSummary struct {
	RealizedPnl24h   float64 `json:"realized_pnl_24h"`
	Fees24h          float64 `json:"fees_24h"`
	RealizedPnlTotal float64 `json:"realized_pnl_total"`
	FeesTotal        float64 `json:"fees_total"`
	UnrealizedPnl    float64 `json:"unrealized_pnl"`
	EquityUSD        float64 `json:"equity_usd"`
	InventoryBase    float64 `json:"inventory_base"`
	InventoryUSD     float64 `json:"inventory_usd"`
}

// ReportService предоставляет отчетность по торговле.
//
// Отвечает за:
// - Сводку PnL (реализованный из журнала сделок, нереализованный из позиции)
// - CSV-экспорт журнала сделок за период
type ReportService struct {
	tradeRepo TradeRepositoryInterface
	reader    PositionReader
}

// NewReportService создает новый экземпляр ReportService.
// reader может быть nil (движок не собран): живые поля тогда нулевые.
func NewReportService(tradeRepo TradeRepositoryInterface, reader PositionReader) *ReportService {
	return &ReportService{
		tradeRepo: tradeRepo,
		reader:    reader,
	}
}

// GetSummary строит сводку PnL.
// Реализованная часть берется из журнала сделок (БД), нереализованная
// и капитал - из живого состояния движка.
func (s *ReportService) GetSummary() (*PnlSummary, error) {
	now := time.Now().UTC()

	pnl24h, fees24h, err := s.tradeRepo.SumRealizedPnlSince(now.Add(-24 * time.Hour))
	if err != nil {
		return nil, fmt.Errorf("pnl 24h: %w", err)
	}
	pnlTotal, feesTotal, err := s.tradeRepo.SumRealizedPnlSince(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("pnl total: %w", err)
	}

	summary := &PnlSummary{
		RealizedPnl24h:   pnl24h,
		Fees24h:          fees24h,
		RealizedPnlTotal: pnlTotal,
		FeesTotal:        feesTotal,
	}

	if s.reader != nil {
		pos := s.reader.Position()
		summary.UnrealizedPnl = pos.UnrealizedPnl
		summary.EquityUSD = s.reader.EquityUSD()
		summary.InventoryBase = pos.Size
		summary.InventoryUSD = pos.NotionalUSD(pos.MarkPrice)
	}

	return summary, nil
}

// GetRecentTrades возвращает последние сделки
func (s *ReportService) GetRecentTrades(limit int) ([]*models.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.tradeRepo.GetRecent(limit)
}

// ExportTradesCSV выгружает сделки за период в CSV.
// Колонки фиксированы; время - RFC3339 UTC.
func (s *ReportService) ExportTradesCSV(w io.Writer, from, to time.Time) error {
	trades, err := s.tradeRepo.GetInTimeRange(from, to)
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"trade_id", "symbol", "side", "price", "size", "fee", "realized_pnl", "created_at"}); err != nil {
		return err
	}
	for _, t := range trades {
		record := []string{
			t.TradeID,
			t.Symbol,
			string(t.Side),
			strconv.FormatFloat(t.Price, 'f', -1, 64),
			strconv.FormatFloat(t.Size, 'f', -1, 64),
			strconv.FormatFloat(t.Fee, 'f', -1, 64),
			strconv.FormatFloat(t.RealizedPnl, 'f', -1, 64),
			t.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
