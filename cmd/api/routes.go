package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/statement-import/internal/api/handlers"
	"github.com/dvloznov/statement-import/internal/api/middleware"
)

func newRouter(imports *handlers.ImportsHandler, runs *handlers.RunsHandler) *http.ServeMux {
	mux := http.NewServeMux()

	// Import endpoints
	mux.HandleFunc("/api/imports/iso20022", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			imports.ImportReport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/imports/nordigen/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			// Extract institution ID from path
			institutionID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/imports/nordigen/"), "/")
			if institutionID == "" || strings.Contains(institutionID, "/") {
				middleware.WriteError(w, http.StatusBadRequest, "Institution ID is required")
				return
			}
			imports.ImportInstitution(w, r, institutionID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/nordigen/institutions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			imports.ListInstitutions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Import run log
	mux.HandleFunc("/api/import-runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			runs.ListRuns(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}
