package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eurID is the seeded EUR row of migrations/postgres/0002.
var eurID = uuid.MustParse("6b1f7c2e-3a51-4d0e-9a51-000000000978")

type testDB struct {
	store *Store
	conn  *pgx.Conn
	user  domain.User
}

// openTestDB migrates a throwaway schema on DATABASE_URL and returns a store
// bound to it. The schema is dropped when the test ends.
func openTestDB(t *testing.T) *testDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, databaseURL)
	require.NoError(t, err)

	schema := "statement_import_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = conn.Exec(ctx, `CREATE SCHEMA `+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `DROP SCHEMA `+schema+` CASCADE`)
		conn.Close(context.Background())
	})

	_, err = conn.Exec(ctx, `SET search_path TO `+schema)
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join("..", "..", "..", "migrations", "postgres", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)
	for _, file := range files {
		sql, err := os.ReadFile(file)
		require.NoError(t, err)
		_, err = conn.Exec(ctx, string(sql))
		require.NoError(t, err, file)
	}

	user := domain.User{ID: uuid.New(), CounterpartyID: uuid.New()}
	now := time.Now().UTC()
	_, err = conn.Exec(ctx, `
		INSERT INTO counterparties (id, owner_id, created_at, created_by_user_id, modified_at, modified_by_user_id, name, normalized_name)
		VALUES ($1, $2, $3, $2, $3, $2, 'Me', 'ME')
	`, user.CounterpartyID, user.ID, now)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `INSERT INTO users (id, counterparty_id) VALUES ($1, $2)`, user.ID, user.CounterpartyID)
	require.NoError(t, err)

	cfg, err := pgxpool.ParseConfig(databaseURL)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 2

	store, err := NewStoreWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return &testDB{store: store, conn: conn, user: user}
}

func (db *testDB) begin(t *testing.T) storage.Tx {
	t.Helper()
	tx, err := db.store.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return tx
}

func (db *testDB) account(name, iban, bic string) *domain.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()
	return &domain.Account{
		Ownership:           domain.Stamped(db.user.ID, now),
		ID:                  id,
		Name:                name,
		NormalizedName:      domain.NormalizeName(name),
		IBAN:                iban,
		BIC:                 bic,
		CounterpartyID:      db.user.CounterpartyID,
		PreferredCurrencyID: eurID,
		Currencies: []domain.AccountInCurrency{{
			Ownership:  domain.Stamped(db.user.ID, now),
			ID:         uuid.New(),
			AccountID:  id,
			CurrencyID: eurID,
		}},
	}
}

func TestStore_CurrenciesAndUsers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	user, err := db.store.GetUser(ctx, db.user.ID)
	require.NoError(t, err)
	assert.Equal(t, db.user, *user)

	_, err = db.store.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	tx := db.begin(t)
	eur, err := tx.FindCurrencyByCode(ctx, "EUR")
	require.NoError(t, err)
	require.NotNil(t, eur)
	assert.Equal(t, eurID, eur.ID)
	assert.Equal(t, 978, eur.NumericCode)

	missing, err := tx.FindCurrencyByCode(ctx, "XAU")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_Accounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tx := db.begin(t)
	account := db.account("Main Account", "LV00BANK0000000000", "BANKLV22")
	require.NoError(t, tx.AddAccount(ctx, account))

	for name, find := range map[string]func() (*domain.Account, error){
		"iban": func() (*domain.Account, error) { return tx.FindAccountByIBAN(ctx, db.user.ID, "LV00BANK0000000000") },
		"bic":  func() (*domain.Account, error) { return tx.FindAccountByBIC(ctx, db.user.ID, "BANKLV22") },
		"name": func() (*domain.Account, error) {
			return tx.FindAccountByNormalizedName(ctx, db.user.ID, domain.NormalizeName("main account"))
		},
	} {
		found, err := find()
		require.NoError(t, err, name)
		require.NotNil(t, found, name)
		assert.Equal(t, account.ID, found.ID, name)
		require.Len(t, found.Currencies, 1, name)
		assert.Equal(t, eurID, found.Currencies[0].CurrencyID, name)
		assert.True(t, account.CreatedAt.Equal(found.CreatedAt), name)
	}

	other, err := tx.FindAccountByIBAN(ctx, uuid.New(), "LV00BANK0000000000")
	require.NoError(t, err)
	assert.Nil(t, other, "accounts of another owner are not visible")

	_, err = tx.GetAccount(ctx, db.user.ID, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = tx.GetAccountInCurrency(ctx, db.user.ID, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	aic, err := tx.GetAccountInCurrency(ctx, db.user.ID, account.Currencies[0].ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, aic.AccountID)

	require.NoError(t, tx.Commit(ctx))
}

func TestStore_AccountNameUniqueAmongLiveRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tx := db.begin(t)
	first := db.account("Landlord", "", "")
	require.NoError(t, tx.AddAccount(ctx, first))
	require.NoError(t, tx.Commit(ctx))

	tx = db.begin(t)
	err := tx.AddAccount(ctx, db.account("landlord", "", ""))
	assert.ErrorIs(t, err, storage.ErrConflict)
	require.NoError(t, tx.Rollback(ctx))

	_, err = db.conn.Exec(ctx, `UPDATE accounts SET deleted_at = now() WHERE id = $1`, first.ID)
	require.NoError(t, err)

	tx = db.begin(t)
	found, err := tx.FindAccountByNormalizedName(ctx, db.user.ID, domain.NormalizeName("Landlord"))
	require.NoError(t, err)
	assert.Nil(t, found, "deleted rows are never returned")
	require.NoError(t, tx.AddAccount(ctx, db.account("Landlord", "", "")))
	require.NoError(t, tx.Commit(ctx))
}

func TestStore_Transfers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx := db.begin(t)
	mine := db.account("LV00BANK0000000000", "LV00BANK0000000000", "")
	shop := db.account("Shop", "", "")
	require.NoError(t, tx.AddAccount(ctx, mine))
	require.NoError(t, tx.AddAccount(ctx, shop))

	transfer := func(bankReference, externalReference, amount string) *domain.Transfer {
		transaction := &domain.Transaction{
			Ownership:  domain.Stamped(db.user.ID, now),
			ID:         uuid.New(),
			BookedAt:   &now,
			ImportedAt: &now,
			ImportHash: "hash-" + amount,
		}
		require.NoError(t, tx.AddTransaction(ctx, transaction))
		tr := &domain.Transfer{
			Ownership:         transaction.Ownership,
			ID:                uuid.New(),
			TransactionID:     transaction.ID,
			SourceAccountID:   mine.Currencies[0].ID,
			TargetAccountID:   shop.Currencies[0].ID,
			SourceAmount:      decimal.RequireFromString(amount),
			TargetAmount:      decimal.RequireFromString(amount),
			BankReference:     bankReference,
			ExternalReference: externalReference,
		}
		require.NoError(t, tx.AddTransfer(ctx, tr))
		return tr
	}

	referenced := transfer("REF-1", "E2E-1", "1234567.8912")
	transfer("", "E2E-1", "4.50")
	transfer("", "", "4.50")

	found, err := tx.FindTransferByBankReference(ctx, db.user.ID, "REF-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, referenced.ID, found.ID)
	assert.True(t, found.SourceAmount.Equal(decimal.RequireFromString("1234567.8912")), "got %s", found.SourceAmount)
	assert.Equal(t, "E2E-1", found.ExternalReference)

	missing, err := tx.FindTransferByBankReference(ctx, db.user.ID, "REF-404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	byExternal, err := tx.ListTransfersByExternalReference(ctx, db.user.ID, "E2E-1")
	require.NoError(t, err)
	assert.Len(t, byExternal, 2)

	byTransaction, err := tx.ListTransfersByTransaction(ctx, db.user.ID, referenced.TransactionID)
	require.NoError(t, err)
	require.Len(t, byTransaction, 1)
	assert.Equal(t, referenced.ID, byTransaction[0].ID)

	transaction, err := tx.FindTransactionByImportHash(ctx, db.user.ID, "hash-1234567.8912")
	require.NoError(t, err)
	require.NotNil(t, transaction)
	assert.Equal(t, referenced.TransactionID, transaction.ID)
	require.NotNil(t, transaction.BookedAt)
	assert.True(t, now.Equal(*transaction.BookedAt))

	none, err := tx.FindTransactionByImportHash(ctx, db.user.ID, "hash-unknown")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = tx.GetTransaction(ctx, db.user.ID, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = tx.AddTransfer(ctx, &domain.Transfer{
		Ownership:       referenced.Ownership,
		ID:              uuid.New(),
		TransactionID:   referenced.TransactionID,
		SourceAccountID: mine.Currencies[0].ID,
		TargetAccountID: shop.Currencies[0].ID,
		SourceAmount:    decimal.NewFromInt(1),
		TargetAmount:    decimal.NewFromInt(1),
		BankReference:   "REF-1",
	})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestStore_RollbackDiscards(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tx := db.begin(t)
	account := db.account("Scratch", "LV99SCRATCH", "")
	require.NoError(t, tx.AddAccount(ctx, account))
	require.NoError(t, tx.Rollback(ctx))

	tx = db.begin(t)
	found, err := tx.FindAccountByIBAN(ctx, db.user.ID, "LV99SCRATCH")
	require.NoError(t, err)
	assert.Nil(t, found)
}
