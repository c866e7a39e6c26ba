package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// target is a database that migrations are applied to.
type target interface {
	// ensureSchemaMigrations creates the schema_migrations table if it doesn't exist.
	ensureSchemaMigrations(ctx context.Context) error
	applied(ctx context.Context) ([]AppliedMigration, error)
	// apply runs the migration and records it in schema_migrations.
	apply(ctx context.Context, migration Migration, appliedBy string) error
	close()
}

var (
	targetName    = flag.String("target", "postgres", "Database to migrate: postgres or bigquery")
	databaseURL   = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL (or set DATABASE_URL env)")
	projectID     = flag.String("project", os.Getenv("BIGQUERY_PROJECT"), "GCP project ID (or set BIGQUERY_PROJECT env)")
	datasetID     = flag.String("dataset", envOr("BIGQUERY_DATASET", "statement_import"), "BigQuery dataset ID")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "", "Path to migrations directory (default migrations/<target>)")
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		l := logger.New()
		l.Fatal().Err(err).Msg("Failed to load .env")
	}
	flag.Parse()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	if err := run(ctx, log); err != nil {
		log.Fatal().Err(err).Str("target", *targetName).Msg("Migration failed")
	}
}

func run(ctx context.Context, log zerolog.Logger) error {
	var (
		t            target
		replacements map[string]string
		err          error
	)
	switch *targetName {
	case "postgres":
		if *databaseURL == "" {
			return errors.New("-database-url flag or DATABASE_URL is required")
		}
		t, err = newPostgresTarget(ctx, *databaseURL)
	case "bigquery":
		if *projectID == "" {
			return errors.New("-project flag is required. Please specify your GCP project ID")
		}
		t, err = newBigQueryTarget(ctx, *projectID, *datasetID)
		replacements = map[string]string{
			"{{PROJECT_ID}}": *projectID,
			"{{DATASET_ID}}": *datasetID,
		}
	default:
		return fmt.Errorf("unknown -target %q: want postgres or bigquery", *targetName)
	}
	if err != nil {
		return err
	}
	defer t.close()

	log.Info().Str("target", *targetName).Msg("Connected")

	if err := t.ensureSchemaMigrations(ctx); err != nil {
		return fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	dir := *migrationsDir
	if dir == "" {
		dir = filepath.Join("migrations", *targetName)
	}
	migrations, err := readMigrations(findDir(dir), replacements)
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := t.applied(ctx)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	todo, err := pending(migrations, applied)
	if err != nil {
		return err
	}

	for _, migration := range todo {
		log.Info().Str("migration", migration.Filename).Msg("Applying")
		if err := t.apply(ctx, migration, *appliedBy); err != nil {
			return fmt.Errorf("applying %s: %w", migration.Filename, err)
		}
		log.Info().Str("migration", migration.Filename).Msg("Applied")
	}

	if len(todo) == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("count", len(todo)).Msg("Successfully applied migrations")
	}
	return nil
}

// findDir resolves dir relative to the working directory, falling back to
// the repository root when run from cmd/migrate.
func findDir(dir string) string {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if alt := filepath.Join("..", "..", dir); dirExists(alt) {
			return alt
		}
	}
	return dir
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
