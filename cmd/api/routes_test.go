package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/statement-import/internal/api/handlers"
	"github.com/dvloznov/statement-import/internal/api/middleware"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/nordigen"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type stubAggregator struct {
	institutionID string
}

func (s *stubAggregator) Import(ctx context.Context, user *domain.User, institutionID, timeZone string) (*nordigen.Outcome, error) {
	s.institutionID = institutionID
	return &nordigen.Outcome{RedirectURL: "https://ob.example.com/consent"}, nil
}

func (s *stubAggregator) Institutions(ctx context.Context, country string) ([]string, error) {
	return []string{"BANK_LV"}, nil
}

func TestRouter(t *testing.T) {
	aggregator := &stubAggregator{}
	mux := newRouter(handlers.NewImportsHandler(nil, aggregator), handlers.NewRunsHandler(nil))
	user := &domain.User{ID: uuid.New()}

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "health", method: http.MethodGet, path: "/health", status: http.StatusOK},
		{name: "report import wrong method", method: http.MethodGet, path: "/api/imports/iso20022", status: http.StatusMethodNotAllowed},
		{name: "nordigen import", method: http.MethodPost, path: "/api/imports/nordigen/BANK_LV?time_zone=UTC", status: http.StatusFound},
		{name: "nordigen import without institution", method: http.MethodPost, path: "/api/imports/nordigen/", status: http.StatusBadRequest},
		{name: "nordigen import nested path", method: http.MethodPost, path: "/api/imports/nordigen/a/b", status: http.StatusBadRequest},
		{name: "institutions", method: http.MethodGet, path: "/api/nordigen/institutions?country=LV", status: http.StatusOK},
		{name: "runs disabled", method: http.MethodGet, path: "/api/import-runs", status: http.StatusNotFound},
		{name: "runs wrong method", method: http.MethodDelete, path: "/api/import-runs", status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req = req.WithContext(middleware.WithUser(req.Context(), user))
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	assert.Equal(t, "BANK_LV", aggregator.institutionID)
}
