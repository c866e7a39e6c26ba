package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-import/internal/importing"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const (
	importRunsTable = "import_runs"

	maxErrorMessageLen = 2000
)

// Table locates the import_runs table.
type Table struct {
	ProjectID string
	DatasetID string
}

func (t Table) String() string {
	return fmt.Sprintf("`%s.%s.%s`", t.ProjectID, t.DatasetID, importRunsTable)
}

// StartImportRunWithClient inserts a new row with status=RUNNING and returns
// the generated import_run_id.
func StartImportRunWithClient(ctx context.Context, client *bigquery.Client, table Table, run importing.RunStart) (string, error) {
	importRunID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			import_run_id,
			user_id,
			source,
			started_ts,
			status,
			statements,
			entries,
			archive_uri
		)
		VALUES (
			@import_run_id,
			@user_id,
			@source,
			@started_ts,
			@status,
			@statements,
			@entries,
			@archive_uri
		)
	`, table))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "import_run_id", Value: importRunID},
		{Name: "user_id", Value: run.UserID.String()},
		{Name: "source", Value: run.Source},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: StatusRunning},
		{Name: "statements", Value: run.Statements},
		{Name: "entries", Value: run.Entries},
		{Name: "archive_uri", Value: run.ArchiveURI},
	}

	if err := runQuery(ctx, q); err != nil {
		return "", fmt.Errorf("StartImportRun: %w", err)
	}
	return importRunID, nil
}

// MarkImportRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Failures are logged, not returned.
func MarkImportRunFailedWithClient(ctx context.Context, client *bigquery.Client, table Table, importRunID string, cause error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE import_run_id = @import_run_id
	`, table))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: StatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errorMessage(cause)},
		{Name: "import_run_id", Value: importRunID},
	}

	if err := runQuery(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("import_run_id", importRunID).
			Msg("MarkImportRunFailed: updating import run")
	}
}

// MarkImportRunSucceededWithClient sets status=SUCCESS, finished_ts and the
// run counters, clearing error_message.
func MarkImportRunSucceededWithClient(ctx context.Context, client *bigquery.Client, table Table, importRunID string, summary importing.RunSummary) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    accounts_created = @accounts_created,
		    transactions_created = @transactions_created,
		    transfers_created = @transfers_created,
		    transfers_existing = @transfers_existing
		WHERE import_run_id = @import_run_id
	`, table))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: StatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "accounts_created", Value: summary.AccountsCreated},
		{Name: "transactions_created", Value: summary.TransactionsCreated},
		{Name: "transfers_created", Value: summary.TransfersCreated},
		{Name: "transfers_existing", Value: summary.TransfersExisting},
		{Name: "import_run_id", Value: importRunID},
	}

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("MarkImportRunSucceeded: %w", err)
	}
	return nil
}

// ListImportRunsWithClient returns the most recent runs of a user, newest
// first.
func ListImportRunsWithClient(ctx context.Context, client *bigquery.Client, table Table, userID uuid.UUID, limit int) ([]*ImportRunRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			import_run_id,
			user_id,
			source,
			started_ts,
			finished_ts,
			status,
			error_message,
			statements,
			entries,
			accounts_created,
			transactions_created,
			transfers_created,
			transfers_existing,
			archive_uri,
			metadata
		FROM %s
		WHERE user_id = @user_id
		ORDER BY started_ts DESC
		LIMIT @limit
	`, table))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID.String()},
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListImportRuns: reading query: %w", err)
	}

	var runs []*ImportRunRow
	for {
		var row ImportRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListImportRuns: iterating: %w", err)
		}
		runs = append(runs, &row)
	}
	return runs, nil
}

func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
