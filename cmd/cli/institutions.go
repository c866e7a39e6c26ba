package main

import (
	"fmt"

	"github.com/dvloznov/statement-import/internal/nordigen"
	"github.com/spf13/cobra"
)

func newInstitutionsCommand(rt *runtime) *cobra.Command {
	var country string

	cmd := &cobra.Command{
		Use:   "institutions",
		Short: "List aggregator institutions of a country",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rt.cfg.Nordigen
			if cfg.SecretID == "" || cfg.SecretKey == "" {
				return errAggregatorDisabled
			}

			client := nordigen.NewClient(cfg.SecretID, cfg.SecretKey,
				nordigen.WithBaseURL(cfg.BaseURL),
				nordigen.WithRateLimit(cfg.RateLimit, cfg.Burst),
			)
			service := nordigen.NewService(client, nil, cfg.RedirectURL, cfg.Concurrency)

			ids, err := service.Institutions(rt.context(cmd), country)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&country, "country", "", "ISO 3166 alpha-2 country code (required)")
	_ = cmd.MarkFlagRequired("country")

	return cmd
}
