package handlers

import (
	"net/http"
	"strconv"

	"github.com/dvloznov/statement-import/internal/api/middleware"
	infraBQ "github.com/dvloznov/statement-import/internal/infra/bigquery"
	"github.com/dvloznov/statement-import/internal/logger"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// RunsHandler handles the import run log endpoints.
type RunsHandler struct {
	repo infraBQ.ImportRunRepository
}

// NewRunsHandler creates a new runs handler. repo may be nil when the run
// log is disabled.
func NewRunsHandler(repo infraBQ.ImportRunRepository) *RunsHandler {
	return &RunsHandler{repo: repo}
}

// ListRuns handles GET /api/import-runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		middleware.WriteError(w, http.StatusNotFound, "Import run log is not configured")
		return
	}
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unknown user")
		return
	}

	limit := defaultRunsLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.repo.ListImportRuns(r.Context(), user.ID, limit)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to list import runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list import runs")
		return
	}

	if runs == nil {
		runs = []*infraBQ.ImportRunRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
