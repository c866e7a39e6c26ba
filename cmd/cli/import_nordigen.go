package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errAggregatorDisabled = errors.New("aggregator import is disabled: set NORDIGEN_SECRET_ID and NORDIGEN_SECRET_KEY")

func newImportNordigenCommand(rt *runtime) *cobra.Command {
	var (
		institution string
		timeZone    string
		user        string
	)

	cmd := &cobra.Command{
		Use:   "import-nordigen",
		Short: "Import every account linked for an institution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(user)
			if err != nil {
				return err
			}

			ctx := rt.context(cmd)
			s, err := rt.open(ctx, userID, false)
			if err != nil {
				return err
			}
			defer s.close()

			if s.Aggregator == nil {
				return errAggregatorDisabled
			}

			outcome, err := s.Aggregator.Import(ctx, s.user, institution, timeZone)
			if err != nil {
				return err
			}
			if outcome.RedirectURL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Institution not linked yet. Give consent at:\n%s\n", outcome.RedirectURL)
				return nil
			}
			return printJSON(cmd.OutOrStdout(), outcome.Results)
		},
	}

	cmd.Flags().StringVar(&institution, "institution", "", "aggregator institution id (required)")
	cmd.Flags().StringVar(&timeZone, "time-zone", "", "IANA time zone of booking dates (required)")
	cmd.Flags().StringVar(&user, "user", "", "id of the importing user (required)")
	_ = cmd.MarkFlagRequired("institution")
	_ = cmd.MarkFlagRequired("time-zone")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
