package api

import (
	"context"
	"net/http"

	"github.com/Abhi-vish/financial-insights-ai/internal/maintenance"
)

// MaintenanceRunner triggers one on-demand session sweep.
type MaintenanceRunner interface {
	RunSweepOnce(ctx context.Context) (maintenance.SweepSummary, error)
}

func handleSweepRun(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Maintenance == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "MAINTENANCE_NOT_CONFIGURED", "maintenance runner is not configured", false, nil)
		return
	}

	summary, err := deps.Maintenance.RunSweepOnce(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SWEEP_FAILED", "session sweep failed", true, map[string]any{
			"details": err.Error(),
			"summary": summary,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "completed",
		"summary": summary,
	})
}
