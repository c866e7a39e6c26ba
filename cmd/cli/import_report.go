package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	gcs "cloud.google.com/go/storage"
	"github.com/dvloznov/statement-import/internal/archive"
	"github.com/dvloznov/statement-import/internal/iso20022"
	"github.com/spf13/cobra"
)

func newImportReportCommand(rt *runtime) *cobra.Command {
	var (
		file     string
		gcsURI   string
		timeZone string
		user     string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "import-report",
		Short: "Import an ISO 20022 account report (JSON) from a file or GCS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (gcsURI == "") {
				return errors.New("exactly one of --file or --gcs-uri is required")
			}
			userID, err := parseUser(user)
			if err != nil {
				return err
			}

			ctx := rt.context(cmd)

			var payload []byte
			if file != "" {
				payload, err = os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("reading report: %w", err)
				}
			} else {
				client, err := gcs.NewClient(ctx)
				if err != nil {
					return fmt.Errorf("creating storage client: %w", err)
				}
				defer client.Close()
				payload, err = archive.Fetch(ctx, client, gcsURI)
				if err != nil {
					return err
				}
			}

			var report iso20022.AccountReport
			if err := json.Unmarshal(payload, &report); err != nil {
				return fmt.Errorf("parsing report: %w", err)
			}

			s, err := rt.open(ctx, userID, dryRun)
			if err != nil {
				return err
			}
			defer s.close()

			rt.log.Info().
				Str("report_id", report.ID).
				Int("entries", len(report.Entries)).
				Bool("dry_run", dryRun).
				Msg("Importing account report")

			result, err := s.Reports.Import(ctx, s.user, iso20022.Request{TimeZone: timeZone, Report: report})
			if err != nil {
				return err
			}

			stats := result.Stats()
			rt.log.Info().
				Int("accounts_created", stats.AccountsCreated).
				Int("transactions_created", stats.TransactionsCreated).
				Int("transfers_created", stats.TransfersCreated).
				Int("transfers_existing", stats.TransfersExisting).
				Msg("Import completed")

			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to the report JSON")
	cmd.Flags().StringVar(&gcsURI, "gcs-uri", "", "gs:// URI of the report JSON")
	cmd.Flags().StringVar(&timeZone, "time-zone", "", "IANA time zone of the report's local dates (required)")
	cmd.Flags().StringVar(&user, "user", "", "id of the importing user (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "import into a throwaway in-memory store")
	_ = cmd.MarkFlagRequired("time-zone")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
