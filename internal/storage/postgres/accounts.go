package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const ownershipColumns = `owner_id, created_at, created_by_user_id, modified_at, modified_by_user_id, deleted_at`

const accountColumns = `id, ` + ownershipColumns + `, name, normalized_name, iban, bic, account_number, counterparty_id, preferred_currency_id`

func (t *tx) FindCurrencyByCode(ctx context.Context, alphabeticCode string) (*domain.Currency, error) {
	var c domain.Currency
	err := t.tx.QueryRow(ctx, `
		SELECT id, alphabetic_code, numeric_code, name, minor_unit
		FROM currencies
		WHERE alphabetic_code = $1
	`, alphabeticCode).Scan(&c.ID, &c.AlphabeticCode, &c.NumericCode, &c.Name, &c.MinorUnit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindCurrencyByCode: %w", err)
	}
	return &c, nil
}

func (t *tx) AddCounterparty(ctx context.Context, c *domain.Counterparty) error {
	err := t.exec(ctx, `
		INSERT INTO counterparties (id, `+ownershipColumns+`, name, normalized_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.OwnerID, c.CreatedAt, c.CreatedByUserID, c.ModifiedAt, c.ModifiedByUserID, c.DeletedAt,
		c.Name, c.NormalizedName)
	if err != nil {
		return fmt.Errorf("AddCounterparty: %w", err)
	}
	return nil
}

func (t *tx) FindAccountByIBAN(ctx context.Context, ownerID uuid.UUID, iban string) (*domain.Account, error) {
	return t.findAccount(ctx, "FindAccountByIBAN", `iban = $2`, ownerID, iban)
}

func (t *tx) FindAccountByBIC(ctx context.Context, ownerID uuid.UUID, bic string) (*domain.Account, error) {
	return t.findAccount(ctx, "FindAccountByBIC", `bic = $2`, ownerID, bic)
}

func (t *tx) FindAccountByNormalizedName(ctx context.Context, ownerID uuid.UUID, normalizedName string) (*domain.Account, error) {
	return t.findAccount(ctx, "FindAccountByNormalizedName", `normalized_name = $2`, ownerID, normalizedName)
}

func (t *tx) GetAccount(ctx context.Context, ownerID, id uuid.UUID) (*domain.Account, error) {
	account, err := t.findAccount(ctx, "GetAccount", `id = $2`, ownerID, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("GetAccount: account %s: %w", id, storage.ErrNotFound)
	}
	return account, nil
}

// findAccount loads the oldest live account of owner matching where, with
// its currencies.
func (t *tx) findAccount(ctx context.Context, op, where string, ownerID uuid.UUID, arg any) (*domain.Account, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE owner_id = $1 AND deleted_at IS NULL AND `+where+`
		ORDER BY created_at, id
		LIMIT 1
	`, ownerID, arg)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: scanning account: %w", op, err)
	}

	currencies, err := t.listAccountCurrencies(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	account.Currencies = currencies
	return account, nil
}

func (t *tx) listAccountCurrencies(ctx context.Context, accountID uuid.UUID) ([]domain.AccountInCurrency, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, `+ownershipColumns+`, account_id, currency_id
		FROM accounts_in_currency
		WHERE account_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing account currencies: %w", err)
	}

	currencies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AccountInCurrency, error) {
		aic, err := scanAccountInCurrency(row)
		if err != nil {
			return domain.AccountInCurrency{}, err
		}
		return *aic, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning account currencies: %w", err)
	}
	return currencies, nil
}

func (t *tx) AddAccount(ctx context.Context, a *domain.Account) error {
	err := t.exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, a.ID, a.OwnerID, a.CreatedAt, a.CreatedByUserID, a.ModifiedAt, a.ModifiedByUserID, a.DeletedAt,
		a.Name, a.NormalizedName, text(a.IBAN), text(a.BIC), text(a.AccountNumber),
		nullUUID(a.CounterpartyID), a.PreferredCurrencyID)
	if err != nil {
		return fmt.Errorf("AddAccount: %w", err)
	}

	for i := range a.Currencies {
		if err := t.AddAccountInCurrency(ctx, &a.Currencies[i]); err != nil {
			return fmt.Errorf("AddAccount: %w", err)
		}
	}
	return nil
}

func (t *tx) AddAccountInCurrency(ctx context.Context, aic *domain.AccountInCurrency) error {
	err := t.exec(ctx, `
		INSERT INTO accounts_in_currency (id, `+ownershipColumns+`, account_id, currency_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, aic.ID, aic.OwnerID, aic.CreatedAt, aic.CreatedByUserID, aic.ModifiedAt, aic.ModifiedByUserID, aic.DeletedAt,
		aic.AccountID, aic.CurrencyID)
	if err != nil {
		return fmt.Errorf("AddAccountInCurrency: %w", err)
	}
	return nil
}

func (t *tx) GetAccountInCurrency(ctx context.Context, ownerID, id uuid.UUID) (*domain.AccountInCurrency, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, `+ownershipColumns+`, account_id, currency_id
		FROM accounts_in_currency
		WHERE owner_id = $1 AND id = $2 AND deleted_at IS NULL
	`, ownerID, id)

	aic, err := scanAccountInCurrency(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("GetAccountInCurrency: %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccountInCurrency: %w", err)
	}
	return aic, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a                        domain.Account
		deletedAt                pgtype.Timestamptz
		iban, bic, accountNumber pgtype.Text
		counterpartyID           pgtype.UUID
	)
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.CreatedAt, &a.CreatedByUserID, &a.ModifiedAt, &a.ModifiedByUserID, &deletedAt,
		&a.Name, &a.NormalizedName, &iban, &bic, &accountNumber, &counterpartyID, &a.PreferredCurrencyID,
	)
	if err != nil {
		return nil, err
	}

	a.DeletedAt = timePtr(deletedAt)
	a.IBAN, a.BIC, a.AccountNumber = iban.String, bic.String, accountNumber.String
	if counterpartyID.Valid {
		a.CounterpartyID = counterpartyID.Bytes
	}
	return &a, nil
}

func scanAccountInCurrency(row pgx.Row) (*domain.AccountInCurrency, error) {
	var (
		aic       domain.AccountInCurrency
		deletedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&aic.ID, &aic.OwnerID, &aic.CreatedAt, &aic.CreatedByUserID, &aic.ModifiedAt, &aic.ModifiedByUserID, &deletedAt,
		&aic.AccountID, &aic.CurrencyID,
	)
	if err != nil {
		return nil, err
	}
	aic.DeletedAt = timePtr(deletedAt)
	return &aic, nil
}
