package handlers

import (
	"net/http"
	"time"

	"marketmaker/internal/service"
)

// ReportHandler отвечает за отчетность
//
// Функции:
// - Сводка PnL (GET /api/v1/reports/pnl)
// - CSV-экспорт сделок за период (GET /api/v1/reports/trades.csv)
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler создает новый ReportHandler
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GetPnlSummary возвращает сводку прибыли/убытков
// GET /api/v1/reports/pnl
func (h *ReportHandler) GetPnlSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.GetSummary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build pnl summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ExportTrades выгружает сделки за период в CSV.
// GET /api/v1/reports/trades.csv?from=RFC3339&to=RFC3339
// По умолчанию - последние 7 дней.
func (h *ReportHandler) ExportTrades(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from: expected RFC3339")
			return
		}
		from = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to: expected RFC3339")
			return
		}
		to = t
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "to must be after from")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trades.csv"`)
	if err := h.reports.ExportTradesCSV(w, from, to); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export trades")
	}
}
