package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-import/internal/importing"
	"github.com/google/uuid"
)

// ImportRunRepository reads the import run log.
type ImportRunRepository interface {
	ListImportRuns(ctx context.Context, userID uuid.UUID, limit int) ([]*ImportRunRow, error)
}

// BigQueryImportRunRepository records import runs in BigQuery. It holds a
// shared client to avoid a new connection per run.
type BigQueryImportRunRepository struct {
	client *bigquery.Client
	table  Table
}

// NewBigQueryImportRunRepository creates a repository with its own client.
func NewBigQueryImportRunRepository(ctx context.Context, projectID, datasetID string) (*BigQueryImportRunRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryImportRunRepository: creating client: %w", err)
	}
	return &BigQueryImportRunRepository{
		client: client,
		table:  Table{ProjectID: projectID, DatasetID: datasetID},
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryImportRunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// StartImportRun delegates to StartImportRunWithClient with the shared client.
func (r *BigQueryImportRunRepository) StartImportRun(ctx context.Context, run importing.RunStart) (string, error) {
	return StartImportRunWithClient(ctx, r.client, r.table, run)
}

// MarkImportRunFailed delegates to MarkImportRunFailedWithClient with the shared client.
func (r *BigQueryImportRunRepository) MarkImportRunFailed(ctx context.Context, importRunID string, cause error) {
	MarkImportRunFailedWithClient(ctx, r.client, r.table, importRunID, cause)
}

// MarkImportRunSucceeded delegates to MarkImportRunSucceededWithClient with the shared client.
func (r *BigQueryImportRunRepository) MarkImportRunSucceeded(ctx context.Context, importRunID string, summary importing.RunSummary) error {
	return MarkImportRunSucceededWithClient(ctx, r.client, r.table, importRunID, summary)
}

// ListImportRuns delegates to ListImportRunsWithClient with the shared client.
func (r *BigQueryImportRunRepository) ListImportRuns(ctx context.Context, userID uuid.UUID, limit int) ([]*ImportRunRow, error) {
	return ListImportRunsWithClient(ctx, r.client, r.table, userID, limit)
}

// Ensure BigQueryImportRunRepository implements the run recorder and reader.
var (
	_ importing.RunRecorder = (*BigQueryImportRunRepository)(nil)
	_ ImportRunRepository   = (*BigQueryImportRunRepository)(nil)
)
