package iso20022

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/importing"
	"github.com/dvloznov/statement-import/internal/logger"
)

// Request is the body of an account report import.
type Request struct {
	TimeZone string        `json:"time_zone"`
	Report   AccountReport `json:"report"`
}

// Importer imports a translated statement.
type Importer interface {
	Import(ctx context.Context, user *domain.User, statement importing.Statement) (*importing.Result, error)
}

// Archiver keeps the raw payload of an import and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, source string, payload []byte) (string, error)
}

// Service imports account reports.
type Service struct {
	importer Importer
	archiver Archiver
}

// NewService returns a service; archiver may be nil.
func NewService(importer Importer, archiver Archiver) *Service {
	return &Service{importer: importer, archiver: archiver}
}

// Import validates req, archives it and imports the report.
func (s *Service) Import(ctx context.Context, user *domain.User, req Request) (*importing.Result, error) {
	loc, err := importing.LoadLocation(req.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}

	statement, err := Translate(req.Report, loc)
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}
	if err := statement.Validate(); err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("report_id", req.Report.ID).
		Str("iban", req.Report.Account.IBAN).
		Int("entries", len(req.Report.Entries)).
		Msg("reading account report")
	if summary := req.Report.TransactionsSummary; summary != nil {
		if c := summary.TotalCreditEntries; c != nil {
			log.Debug().Int("count", c.NumberOfEntries).Str("sum", c.Sum.String()).Msg("report credit entries")
		}
		if d := summary.TotalDebitEntries; d != nil {
			log.Debug().Int("count", d.NumberOfEntries).Str("sum", d.Sum.String()).Msg("report debit entries")
		}
	}

	if s.archiver != nil {
		payload, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("Import: encoding payload: %w", err)
		}
		uri, err := s.archiver.Archive(ctx, Source, payload)
		if err != nil {
			return nil, fmt.Errorf("Import: archiving payload: %w", err)
		}
		statement.ArchiveURI = uri
	}

	result, err := s.importer.Import(ctx, user, statement)
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}
	return result, nil
}
