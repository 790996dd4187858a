package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/smart-finance/internal/api/middleware"
	"github.com/dvloznov/smart-finance/internal/identity"
	"github.com/dvloznov/smart-finance/internal/report"
	"github.com/rs/zerolog"
)

// Reporter builds monthly reports.
type Reporter interface {
	Monthly(ctx context.Context, user, month string) (*report.Monthly, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	reports Reporter
	log     zerolog.Logger
	now     func() time.Time
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(reports Reporter, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{reports: reports, log: log, now: time.Now}
}

func (h *ReportsHandler) month(r *http.Request) string {
	if m := r.URL.Query().Get("month"); m != "" {
		return m
	}
	return h.now().Format(report.MonthLayout)
}

// GetReport handles GET /api/report?month=YYYY-MM
func (h *ReportsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	m, err := h.reports.Monthly(r.Context(), identity.FromContext(r.Context()), h.month(r))
	if err != nil {
		writeDomainError(w, r, h.log, "Failed to build report", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, m)
}

// ExportCSV handles GET /api/report/export?month=YYYY-MM
func (h *ReportsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	month := h.month(r)
	m, err := h.reports.Monthly(r.Context(), identity.FromContext(r.Context()), month)
	if err != nil {
		writeDomainError(w, r, h.log, "Failed to build report", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transactions-%s.csv"`, month))
	if err := report.WriteCSV(w, m.Transactions); err != nil {
		h.log.Error().Err(err).Str("month", month).Msg("Failed to write CSV")
	}
}
