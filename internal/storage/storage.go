// Package storage defines the repositories the importer works against.
// Every read and write of one import run goes through a single Tx so the
// run sees its own writes and can be rolled back as a whole.
package storage

import (
	"context"
	"errors"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Get* methods when no row matches.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness constraint:
	// normalized account name per owner, bank reference per owner, or
	// (account, currency) pair.
	ErrConflict = errors.New("conflict")
)

// Store opens transactions and serves lookups that need none.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Tx is one open database transaction. Find* methods return (nil, nil) when
// nothing matches; Get* methods return ErrNotFound. Deleted rows are never
// returned.
type Tx interface {
	CurrencyRepository
	CounterpartyRepository
	AccountRepository
	TransactionRepository
	TransferRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// CurrencyRepository reads currency reference data.
type CurrencyRepository interface {
	FindCurrencyByCode(ctx context.Context, alphabeticCode string) (*domain.Currency, error)
}

// CounterpartyRepository stores counterparties.
type CounterpartyRepository interface {
	AddCounterparty(ctx context.Context, counterparty *domain.Counterparty) error
}

// AccountRepository stores accounts together with their currencies.
type AccountRepository interface {
	FindAccountByIBAN(ctx context.Context, ownerID uuid.UUID, iban string) (*domain.Account, error)
	FindAccountByBIC(ctx context.Context, ownerID uuid.UUID, bic string) (*domain.Account, error)
	FindAccountByNormalizedName(ctx context.Context, ownerID uuid.UUID, normalizedName string) (*domain.Account, error)
	GetAccount(ctx context.Context, ownerID, id uuid.UUID) (*domain.Account, error)

	// AddAccount inserts the account and every entry of account.Currencies.
	AddAccount(ctx context.Context, account *domain.Account) error
	AddAccountInCurrency(ctx context.Context, inCurrency *domain.AccountInCurrency) error
	GetAccountInCurrency(ctx context.Context, ownerID, id uuid.UUID) (*domain.AccountInCurrency, error)
}

// TransactionRepository stores transactions.
type TransactionRepository interface {
	AddTransaction(ctx context.Context, transaction *domain.Transaction) error
	GetTransaction(ctx context.Context, ownerID, id uuid.UUID) (*domain.Transaction, error)
	FindTransactionByImportHash(ctx context.Context, ownerID uuid.UUID, importHash string) (*domain.Transaction, error)
}

// TransferRepository stores transfers.
type TransferRepository interface {
	AddTransfer(ctx context.Context, transfer *domain.Transfer) error
	FindTransferByBankReference(ctx context.Context, ownerID uuid.UUID, bankReference string) (*domain.Transfer, error)
	ListTransfersByExternalReference(ctx context.Context, ownerID uuid.UUID, externalReference string) ([]*domain.Transfer, error)
	ListTransfersByTransaction(ctx context.Context, ownerID, transactionID uuid.UUID) ([]*domain.Transfer, error)
}
