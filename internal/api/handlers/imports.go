package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dvloznov/statement-import/internal/api/middleware"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/importing"
	"github.com/dvloznov/statement-import/internal/iso20022"
	"github.com/dvloznov/statement-import/internal/nordigen"
)

// maxReportBytes caps the account report request body.
const maxReportBytes = 10 << 20

// ReportImporter imports an account report.
type ReportImporter interface {
	Import(ctx context.Context, user *domain.User, req iso20022.Request) (*importing.Result, error)
}

// AggregatorImporter imports accounts linked through the aggregator.
type AggregatorImporter interface {
	Import(ctx context.Context, user *domain.User, institutionID, timeZone string) (*nordigen.Outcome, error)
	Institutions(ctx context.Context, country string) ([]string, error)
}

// ImportsHandler handles the import endpoints.
type ImportsHandler struct {
	reports    ReportImporter
	aggregator AggregatorImporter
}

// NewImportsHandler creates a new imports handler. aggregator may be nil
// when no aggregator credentials are configured.
func NewImportsHandler(reports ReportImporter, aggregator AggregatorImporter) *ImportsHandler {
	return &ImportsHandler{reports: reports, aggregator: aggregator}
}

// ImportReport handles POST /api/imports/iso20022
func (h *ImportsHandler) ImportReport(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unknown user")
		return
	}

	var req iso20022.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBytes))
	if err := dec.Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.reports.Import(r.Context(), user, req)
	if err != nil {
		writeImportError(w, r, err, "Failed to import account report")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// ImportInstitution handles POST /api/imports/nordigen/{institution}
func (h *ImportsHandler) ImportInstitution(w http.ResponseWriter, r *http.Request, institutionID string) {
	if h.aggregator == nil {
		middleware.WriteError(w, http.StatusNotFound, "Aggregator import is not configured")
		return
	}
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unknown user")
		return
	}

	outcome, err := h.aggregator.Import(r.Context(), user, institutionID, r.URL.Query().Get("time_zone"))
	if err != nil {
		writeImportError(w, r, err, "Failed to import linked accounts")
		return
	}

	if outcome.RedirectURL != "" {
		w.Header().Set("Location", outcome.RedirectURL)
		middleware.WriteJSON(w, http.StatusFound, map[string]string{
			"redirect_url": outcome.RedirectURL,
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, outcome.Results)
}

// ListInstitutions handles GET /api/nordigen/institutions
func (h *ImportsHandler) ListInstitutions(w http.ResponseWriter, r *http.Request) {
	if h.aggregator == nil {
		middleware.WriteError(w, http.StatusNotFound, "Aggregator import is not configured")
		return
	}

	country := strings.TrimSpace(r.URL.Query().Get("country"))
	ids, err := h.aggregator.Institutions(r.Context(), country)
	if err != nil {
		writeImportError(w, r, err, "Failed to list institutions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"institutions": ids,
		"count":        len(ids),
	})
}
