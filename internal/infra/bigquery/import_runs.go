package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Import run statuses.
const (
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// ImportRunRow is one row of the import_runs audit table.
type ImportRunRow struct {
	ImportRunID string `bigquery:"import_run_id" json:"import_run_id"` // REQUIRED
	UserID      string `bigquery:"user_id" json:"user_id"`             // REQUIRED
	Source      string `bigquery:"source" json:"source"`               // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts" json:"started_ts"`   // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts" json:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status" json:"status"`               // NULLABLE
	ErrorMessage string `bigquery:"error_message" json:"error_message"` // NULLABLE

	Statements          bigquery.NullInt64 `bigquery:"statements" json:"statements"`
	Entries             bigquery.NullInt64 `bigquery:"entries" json:"entries"`
	AccountsCreated     bigquery.NullInt64 `bigquery:"accounts_created" json:"accounts_created"`
	TransactionsCreated bigquery.NullInt64 `bigquery:"transactions_created" json:"transactions_created"`
	TransfersCreated    bigquery.NullInt64 `bigquery:"transfers_created" json:"transfers_created"`
	TransfersExisting   bigquery.NullInt64 `bigquery:"transfers_existing" json:"transfers_existing"`

	ArchiveURI string            `bigquery:"archive_uri" json:"archive_uri,omitempty"` // NULLABLE
	Metadata   bigquery.NullJSON `bigquery:"metadata" json:"metadata"`                 // NULLABLE
}
