package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/statement-import/internal/api/middleware"
	"github.com/dvloznov/statement-import/internal/importing"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/nordigen"
	"github.com/dvloznov/statement-import/internal/storage"
)

// statusFor maps an import failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case importing.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, importing.ErrCurrencyNotFound), errors.Is(err, importing.ErrMissingIdentification):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, nordigen.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeImportError logs err and writes it with the mapped status. Internal
// errors are not echoed to the client.
func writeImportError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)

	log := logger.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, status, msg)
		return
	}
	log.Warn().Err(err).Int("status", status).Msg(msg)
	middleware.WriteError(w, status, err.Error())
}
