package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(owner uuid.UUID, name string, currencyID uuid.UUID) *domain.Account {
	id := uuid.New()
	now := time.Now()
	return &domain.Account{
		Ownership:           domain.Stamped(owner, now),
		ID:                  id,
		Name:                name,
		NormalizedName:      domain.NormalizeName(name),
		IBAN:                name,
		PreferredCurrencyID: currencyID,
		Currencies: []domain.AccountInCurrency{{
			Ownership:  domain.Stamped(owner, now),
			ID:         uuid.New(),
			AccountID:  id,
			CurrencyID: currencyID,
		}},
	}
}

func TestStore_CommitPublishesWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	owner, eur := uuid.New(), uuid.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	account := newAccount(owner, "LV00BANK0000000000", eur)
	require.NoError(t, tx.AddAccount(ctx, account))

	// visible inside the transaction, not outside
	found, err := tx.FindAccountByIBAN(ctx, owner, "LV00BANK0000000000")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Len(t, found.Currencies, 1)
	assert.Equal(t, 0, store.Counts().Accounts)

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, 1, store.Counts().Accounts)
	assert.Equal(t, 1, store.Counts().AccountsInCurrency)

	_, err = tx.FindAccountByIBAN(ctx, owner, "LV00BANK0000000000")
	assert.ErrorIs(t, err, ErrTxDone)
	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	owner, eur := uuid.New(), uuid.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddAccount(ctx, newAccount(owner, "LV00BANK0000000000", eur)))
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx))

	assert.Equal(t, Counts{}, store.Counts())

	// the writer lock was released
	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	assert.Equal(t, 2, store.Begins())
}

func TestStore_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	owner, eur := uuid.New(), uuid.New()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	account := newAccount(owner, "Acme", eur)
	require.NoError(t, tx.AddAccount(ctx, account))

	t.Run("normalized name per owner", func(t *testing.T) {
		err := tx.AddAccount(ctx, newAccount(owner, "ACME", eur))
		assert.ErrorIs(t, err, storage.ErrConflict)

		assert.NoError(t, tx.AddAccount(ctx, newAccount(uuid.New(), "ACME", eur)))
	})

	t.Run("account currency pair", func(t *testing.T) {
		err := tx.AddAccountInCurrency(ctx, &domain.AccountInCurrency{
			Ownership:  domain.Stamped(owner, time.Now()),
			ID:         uuid.New(),
			AccountID:  account.ID,
			CurrencyID: eur,
		})
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("bank reference per owner", func(t *testing.T) {
		transaction := &domain.Transaction{Ownership: domain.Stamped(owner, time.Now()), ID: uuid.New()}
		require.NoError(t, tx.AddTransaction(ctx, transaction))

		transfer := func() *domain.Transfer {
			return &domain.Transfer{
				Ownership:     domain.Stamped(owner, time.Now()),
				ID:            uuid.New(),
				TransactionID: transaction.ID,
				SourceAmount:  decimal.RequireFromString("1.00"),
				TargetAmount:  decimal.RequireFromString("1.00"),
				BankReference: "123456789876543.020001",
			}
		}
		require.NoError(t, tx.AddTransfer(ctx, transfer()))
		assert.ErrorIs(t, tx.AddTransfer(ctx, transfer()), storage.ErrConflict)

		found, err := tx.FindTransferByBankReference(ctx, owner, "123456789876543.020001")
		require.NoError(t, err)
		require.NotNil(t, found)

		byTransaction, err := tx.ListTransfersByTransaction(ctx, owner, transaction.ID)
		require.NoError(t, err)
		assert.Len(t, byTransaction, 1)
	})
}

func TestStore_GetUser(t *testing.T) {
	store := NewStore()
	user := domain.User{ID: uuid.New(), CounterpartyID: uuid.New()}
	store.AddUser(user)

	got, err := store.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, *got)

	_, err = store.GetUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
