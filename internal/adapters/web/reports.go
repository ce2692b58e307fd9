package web

import (
	"net/http"

	"retail-backoffice/internal/core"
)

// profitSummary handles GET /api/reports/profit?granularity=day&reference=2026-03-04.
// reference is optional and defaults to now.
func (h *Handler) profitSummary(w http.ResponseWriter, r *http.Request) {
	granularity := core.Granularity(r.URL.Query().Get("granularity"))
	if granularity == "" {
		granularity = core.GranularityDay
	}

	summary, err := h.svc.GetProfitSummary(r.Context(), granularity, r.URL.Query().Get("reference"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, summary)
}

// dailySummary handles GET /api/reports/daily.
func (h *Handler) dailySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetDailySummary(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, summary)
}
