// Package postgres implements storage.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Store is the PostgreSQL implementation of storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects a pool to databaseURL and verifies the connection.
func NewStore(ctx context.Context, databaseURL string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("NewStore: parsing database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	return NewStoreWithConfig(ctx, cfg)
}

// NewStoreWithConfig connects a pool built from cfg and verifies the
// connection.
func NewStoreWithConfig(ctx context.Context, cfg *pgxpool.Config) (*Store, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("NewStore: pinging database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

// Begin implements storage.Store.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("Begin: %w", err)
	}
	return &tx{tx: pgTx}, nil
}

// GetUser implements storage.Store.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx, `SELECT id, counterparty_id FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.CounterpartyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("GetUser: user %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	return &user, nil
}

// tx wraps a pgx transaction.
type tx struct {
	tx pgx.Tx
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("Commit: %w", mapError(err))
	}
	return nil
}

// Rollback is a no-op after Commit.
func (t *tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("Rollback: %w", err)
	}
	return nil
}

// mapError converts unique violations into storage.ErrConflict.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", storage.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// exec runs a write and maps constraint violations.
func (t *tx) exec(ctx context.Context, sql string, args ...any) error {
	if _, err := t.tx.Exec(ctx, sql, args...); err != nil {
		return mapError(err)
	}
	return nil
}

// Ensure Store implements storage.Store interface.
var _ storage.Store = (*Store)(nil)

// Ensure tx implements storage.Tx interface.
var _ storage.Tx = (*tx)(nil)
