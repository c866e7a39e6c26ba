package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, ` + ownershipColumns + `, booked_at, valued_at, description, imported_at, import_hash`

const transferColumns = `id, ` + ownershipColumns + `, transaction_id, source_account_id, target_account_id,
	source_amount::text, target_amount::text, bank_reference, external_reference, internal_reference, "order"`

func (t *tx) AddTransaction(ctx context.Context, tr *domain.Transaction) error {
	err := t.exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, tr.ID, tr.OwnerID, tr.CreatedAt, tr.CreatedByUserID, tr.ModifiedAt, tr.ModifiedByUserID, tr.DeletedAt,
		tr.BookedAt, tr.ValuedAt, text(tr.Description), tr.ImportedAt, text(tr.ImportHash))
	if err != nil {
		return fmt.Errorf("AddTransaction: %w", err)
	}
	return nil
}

func (t *tx) GetTransaction(ctx context.Context, ownerID, id uuid.UUID) (*domain.Transaction, error) {
	transaction, err := t.findTransaction(ctx, `id = $2`, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	if transaction == nil {
		return nil, fmt.Errorf("GetTransaction: transaction %s: %w", id, storage.ErrNotFound)
	}
	return transaction, nil
}

func (t *tx) FindTransactionByImportHash(ctx context.Context, ownerID uuid.UUID, importHash string) (*domain.Transaction, error) {
	transaction, err := t.findTransaction(ctx, `import_hash = $2`, ownerID, importHash)
	if err != nil {
		return nil, fmt.Errorf("FindTransactionByImportHash: %w", err)
	}
	return transaction, nil
}

func (t *tx) findTransaction(ctx context.Context, where string, ownerID uuid.UUID, arg any) (*domain.Transaction, error) {
	var (
		tr                      domain.Transaction
		deletedAt               pgtype.Timestamptz
		bookedAt, valuedAt      pgtype.Timestamptz
		importedAt              pgtype.Timestamptz
		description, importHash pgtype.Text
	)
	err := t.tx.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = $1 AND deleted_at IS NULL AND `+where+`
		ORDER BY created_at, id
		LIMIT 1
	`, ownerID, arg).Scan(
		&tr.ID, &tr.OwnerID, &tr.CreatedAt, &tr.CreatedByUserID, &tr.ModifiedAt, &tr.ModifiedByUserID, &deletedAt,
		&bookedAt, &valuedAt, &description, &importedAt, &importHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning transaction: %w", err)
	}

	tr.DeletedAt = timePtr(deletedAt)
	tr.BookedAt, tr.ValuedAt, tr.ImportedAt = timePtr(bookedAt), timePtr(valuedAt), timePtr(importedAt)
	tr.Description, tr.ImportHash = description.String, importHash.String
	return &tr, nil
}

func (t *tx) AddTransfer(ctx context.Context, tr *domain.Transfer) error {
	err := t.exec(ctx, `
		INSERT INTO transfers (id, `+ownershipColumns+`, transaction_id, source_account_id, target_account_id,
			source_amount, target_amount, bank_reference, external_reference, internal_reference, "order")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12::numeric, $13, $14, $15, $16)
	`, tr.ID, tr.OwnerID, tr.CreatedAt, tr.CreatedByUserID, tr.ModifiedAt, tr.ModifiedByUserID, tr.DeletedAt,
		tr.TransactionID, tr.SourceAccountID, tr.TargetAccountID,
		tr.SourceAmount.String(), tr.TargetAmount.String(),
		text(tr.BankReference), text(tr.ExternalReference), text(tr.InternalReference), tr.Order)
	if err != nil {
		return fmt.Errorf("AddTransfer: %w", err)
	}
	return nil
}

func (t *tx) FindTransferByBankReference(ctx context.Context, ownerID uuid.UUID, bankReference string) (*domain.Transfer, error) {
	transfers, err := t.listTransfers(ctx, `bank_reference = $2`, ownerID, bankReference)
	if err != nil {
		return nil, fmt.Errorf("FindTransferByBankReference: %w", err)
	}
	if len(transfers) == 0 {
		return nil, nil
	}
	return transfers[0], nil
}

func (t *tx) ListTransfersByExternalReference(ctx context.Context, ownerID uuid.UUID, externalReference string) ([]*domain.Transfer, error) {
	transfers, err := t.listTransfers(ctx, `external_reference = $2`, ownerID, externalReference)
	if err != nil {
		return nil, fmt.Errorf("ListTransfersByExternalReference: %w", err)
	}
	return transfers, nil
}

func (t *tx) ListTransfersByTransaction(ctx context.Context, ownerID, transactionID uuid.UUID) ([]*domain.Transfer, error) {
	transfers, err := t.listTransfers(ctx, `transaction_id = $2`, ownerID, transactionID)
	if err != nil {
		return nil, fmt.Errorf("ListTransfersByTransaction: %w", err)
	}
	return transfers, nil
}

func (t *tx) listTransfers(ctx context.Context, where string, ownerID uuid.UUID, arg any) ([]*domain.Transfer, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE owner_id = $1 AND deleted_at IS NULL AND `+where+`
		ORDER BY "order", created_at, id
	`, ownerID, arg)
	if err != nil {
		return nil, fmt.Errorf("querying transfers: %w", err)
	}

	transfers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Transfer, error) {
		return scanTransfer(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning transfers: %w", err)
	}
	return transfers, nil
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var (
		tr                                         domain.Transfer
		deletedAt                                  pgtype.Timestamptz
		sourceAmount, targetAmount                 string
		bankReference, externalReference, internal pgtype.Text
	)
	err := row.Scan(
		&tr.ID, &tr.OwnerID, &tr.CreatedAt, &tr.CreatedByUserID, &tr.ModifiedAt, &tr.ModifiedByUserID, &deletedAt,
		&tr.TransactionID, &tr.SourceAccountID, &tr.TargetAccountID,
		&sourceAmount, &targetAmount, &bankReference, &externalReference, &internal, &tr.Order,
	)
	if err != nil {
		return nil, err
	}

	if tr.SourceAmount, err = decimal.NewFromString(sourceAmount); err != nil {
		return nil, fmt.Errorf("parsing source amount %q: %w", sourceAmount, err)
	}
	if tr.TargetAmount, err = decimal.NewFromString(targetAmount); err != nil {
		return nil, fmt.Errorf("parsing target amount %q: %w", targetAmount, err)
	}
	tr.DeletedAt = timePtr(deletedAt)
	tr.BankReference, tr.ExternalReference, tr.InternalReference = bankReference.String, externalReference.String, internal.String
	return &tr, nil
}

// text maps an empty string to NULL.
func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// nullUUID maps uuid.Nil to NULL.
func nullUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: id != uuid.Nil}
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
