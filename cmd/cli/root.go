package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/statement-import/internal/app"
	"github.com/dvloznov/statement-import/internal/config"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/storage"
	"github.com/dvloznov/statement-import/internal/storage/inmemory"
	"github.com/dvloznov/statement-import/internal/storage/postgres"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// runtime is the state every subcommand shares, filled by the root
// command's PersistentPreRunE.
type runtime struct {
	configPath string
	cfg        *config.Config
	log        zerolog.Logger
}

func newRootCommand() *cobra.Command {
	rt := &runtime{}

	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Import bank statements into the ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("loading .env: %w", err)
			}
			cfg, err := config.Load(rt.configPath)
			if err != nil {
				return err
			}
			log, err := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			// Results go to stdout, so logs go to stderr.
			var out io.Writer = zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}
			if strings.EqualFold(cfg.Log.Format, "json") {
				out = cmd.ErrOrStderr()
			}
			rt.cfg = cfg
			rt.log = log.Output(out)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&rt.configPath, "config", os.Getenv("STATEMENT_IMPORT_CONFIG"), "path to the YAML config")

	rootCmd.AddCommand(
		newImportReportCommand(rt),
		newImportNordigenCommand(rt),
		newInstitutionsCommand(rt),
	)

	return rootCmd
}

// session is an opened store plus the services built over it.
type session struct {
	*app.App
	user  *domain.User
	close func()
}

// open connects to the configured database, or to a seeded in-memory store
// when dryRun is set. A dry run records no import run and archives nothing.
func (rt *runtime) open(ctx context.Context, userID uuid.UUID, dryRun bool) (*session, error) {
	cfg := *rt.cfg

	var (
		store      storage.Store
		closeStore = func() {}
		user       *domain.User
	)
	if dryRun {
		cfg.BigQuery.ProjectID = ""
		cfg.Archive.Bucket = ""

		mem := inmemory.NewStore()
		for _, currency := range dryRunCurrencies {
			mem.AddCurrency(currency)
		}
		user = &domain.User{ID: userID, CounterpartyID: uuid.New()}
		mem.AddUser(*user)
		store = mem
	} else {
		pg, err := postgres.NewStore(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		closeStore = pg.Close

		user, err = pg.GetUser(ctx, userID)
		if err != nil {
			pg.Close()
			return nil, fmt.Errorf("loading user %s: %w", userID, err)
		}
		store = pg
	}

	services, err := app.New(ctx, &cfg, store)
	if err != nil {
		closeStore()
		return nil, err
	}

	return &session{
		App:  services,
		user: user,
		close: func() {
			if err := services.Close(); err != nil {
				rt.log.Error().Err(err).Msg("Failed to close services")
			}
			closeStore()
		},
	}, nil
}

func (rt *runtime) context(cmd *cobra.Command) context.Context {
	return logger.WithContext(cmd.Context(), rt.log)
}

func parseUser(value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --user %q: %w", value, err)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var dryRunCurrencies = []domain.Currency{
	{ID: uuid.MustParse("6b1f7c2e-3a51-4d0e-9a51-000000000978"), AlphabeticCode: "EUR", NumericCode: 978, Name: "Euro", MinorUnit: 2},
	{ID: uuid.MustParse("6b1f7c2e-3a51-4d0e-9a51-000000000840"), AlphabeticCode: "USD", NumericCode: 840, Name: "US Dollar", MinorUnit: 2},
	{ID: uuid.MustParse("6b1f7c2e-3a51-4d0e-9a51-000000000826"), AlphabeticCode: "GBP", NumericCode: 826, Name: "Pound Sterling", MinorUnit: 2},
	{ID: uuid.MustParse("6b1f7c2e-3a51-4d0e-9a51-000000000756"), AlphabeticCode: "CHF", NumericCode: 756, Name: "Swiss Franc", MinorUnit: 2},
	{ID: uuid.MustParse("6b1f7c2e-3a51-4d0e-9a51-000000000752"), AlphabeticCode: "SEK", NumericCode: 752, Name: "Swedish Krona", MinorUnit: 2},
	{ID: uuid.MustParse("6b1f7c2e-3a51-4d0e-9a51-000000000578"), AlphabeticCode: "NOK", NumericCode: 578, Name: "Norwegian Krone", MinorUnit: 2},
	{ID: uuid.MustParse("6b1f7c2e-3a51-4d0e-9a51-000000000208"), AlphabeticCode: "DKK", NumericCode: 208, Name: "Danish Krone", MinorUnit: 2},
	{ID: uuid.MustParse("6b1f7c2e-3a51-4d0e-9a51-000000000985"), AlphabeticCode: "PLN", NumericCode: 985, Name: "Zloty", MinorUnit: 2},
	{ID: uuid.MustParse("6b1f7c2e-3a51-4d0e-9a51-000000000203"), AlphabeticCode: "CZK", NumericCode: 203, Name: "Czech Koruna", MinorUnit: 2},
	{ID: uuid.MustParse("6b1f7c2e-3a51-4d0e-9a51-000000000392"), AlphabeticCode: "JPY", NumericCode: 392, Name: "Yen", MinorUnit: 0},
}
