package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type postgresTarget struct {
	conn *pgx.Conn
}

func newPostgresTarget(ctx context.Context, databaseURL string) (*postgresTarget, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &postgresTarget{conn: conn}, nil
}

func (p *postgresTarget) close() { p.conn.Close(context.Background()) }

func (p *postgresTarget) ensureSchemaMigrations(ctx context.Context) error {
	_, err := p.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			checksum   TEXT,
			applied_by TEXT
		)
	`)
	return err
}

func (p *postgresTarget) applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := p.conn.Query(ctx, `
		SELECT version, name, applied_at, COALESCE(checksum, ''), COALESCE(applied_by, '')
		FROM schema_migrations
		ORDER BY version ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	applied, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AppliedMigration, error) {
		var am AppliedMigration
		err := row.Scan(&am.Version, &am.Name, &am.AppliedAt, &am.Checksum, &am.AppliedBy)
		return am, err
	})
	if err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return applied, nil
}

// apply runs the migration and its bookkeeping row in one transaction.
func (p *postgresTarget) apply(ctx context.Context, migration Migration, appliedBy string) error {
	return pgx.BeginFunc(ctx, p.conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.SQL); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name, checksum, applied_by) VALUES ($1, $2, $3, $4)`,
			migration.Version, migration.Name, migration.Checksum, appliedBy)
		if err != nil {
			return fmt.Errorf("recording migration: %w", err)
		}
		return nil
	})
}
