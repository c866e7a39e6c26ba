// Package app wires configuration into the import services shared by the
// API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-import/internal/archive"
	"github.com/dvloznov/statement-import/internal/config"
	infraBQ "github.com/dvloznov/statement-import/internal/infra/bigquery"
	"github.com/dvloznov/statement-import/internal/importing"
	"github.com/dvloznov/statement-import/internal/iso20022"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/nordigen"
	"github.com/dvloznov/statement-import/internal/storage"
)

// App holds the import services built from one Config.
type App struct {
	Store    storage.Store
	Importer *importing.Importer
	Reports  *iso20022.Service

	// Aggregator is nil when no aggregator credentials are configured.
	Aggregator *nordigen.Service
	// Runs is nil when the run log is disabled.
	Runs infraBQ.ImportRunRepository

	closers []func() error
}

// New builds the services over store. An empty BigQuery project disables the
// run log and an empty archive bucket disables archiving.
func New(ctx context.Context, cfg *config.Config, store storage.Store) (*App, error) {
	log := logger.FromContext(ctx)
	a := &App{Store: store}

	var opts []importing.Option
	if cfg.BigQuery.ProjectID != "" {
		runs, err := infraBQ.NewBigQueryImportRunRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
		a.closers = append(a.closers, runs.Close)
		a.Runs = runs
		opts = append(opts, importing.WithRunRecorder(runs))
	} else {
		log.Warn().Msg("No BigQuery project configured - import runs will not be recorded")
	}
	a.Importer = importing.NewImporter(store, opts...)

	var archiver iso20022.Archiver
	if cfg.Archive.Bucket != "" {
		gcs, err := archive.NewGCSArchiver(ctx, cfg.Archive.Bucket)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.closers = append(a.closers, gcs.Close)
		archiver = gcs
	} else {
		log.Warn().Msg("No archive bucket configured - import payloads will not be archived")
	}
	a.Reports = iso20022.NewService(a.Importer, archiver)

	if cfg.Nordigen.SecretID != "" && cfg.Nordigen.SecretKey != "" {
		client := nordigen.NewClient(cfg.Nordigen.SecretID, cfg.Nordigen.SecretKey,
			nordigen.WithBaseURL(cfg.Nordigen.BaseURL),
			nordigen.WithRateLimit(cfg.Nordigen.RateLimit, cfg.Nordigen.Burst),
		)
		a.Aggregator = nordigen.NewService(client, a.Importer, cfg.Nordigen.RedirectURL, cfg.Nordigen.Concurrency)
	} else {
		log.Warn().Msg("No Nordigen credentials configured - aggregator import is disabled")
	}

	return a, nil
}

// Close releases the clients opened by New. The store is owned by the caller.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
