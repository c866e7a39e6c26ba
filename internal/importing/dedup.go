package importing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// findImported returns the id of the transaction entry was already imported
// as, or uuid.Nil. Keys are tried from most to least precise: bank
// reference, then an unambiguous external reference, then the import hash.
func (r *resolver) findImported(ctx context.Context, entry Entry) (uuid.UUID, error) {
	bankReference := strings.TrimSpace(entry.BankReference)
	if bankReference != "" {
		transfer, err := r.tx.FindTransferByBankReference(ctx, r.user.ID, bankReference)
		if err != nil {
			return uuid.Nil, fmt.Errorf("findImported: by bank reference: %w", err)
		}
		if transfer != nil {
			r.log.Debug().Str("bank_reference", bankReference).Msg("found transfer by bank reference")
			return transfer.TransactionID, nil
		}
	}

	if externalReference := strings.TrimSpace(entry.ExternalReference); externalReference != "" {
		transfers, err := r.tx.ListTransfersByExternalReference(ctx, r.user.ID, externalReference)
		if err != nil {
			return uuid.Nil, fmt.Errorf("findImported: by external reference: %w", err)
		}
		if len(transfers) == 1 && (transfers[0].BankReference == "" || transfers[0].BankReference == bankReference) {
			r.log.Debug().Str("external_reference", externalReference).Msg("found transfer by external reference")
			return transfers[0].TransactionID, nil
		}
	}

	if importHash := strings.TrimSpace(entry.ImportHash); importHash != "" {
		transaction, err := r.tx.FindTransactionByImportHash(ctx, r.user.ID, importHash)
		if err != nil {
			return uuid.Nil, fmt.Errorf("findImported: by import hash: %w", err)
		}
		if transaction != nil {
			r.log.Debug().Str("import_hash", importHash).Msg("found transaction by import hash")
			return transaction.ID, nil
		}
	}

	return uuid.Nil, nil
}

// addImported records an already imported transaction, all its transfers
// and the accounts on both sides of each transfer as pre-existing.
func (r *resolver) addImported(ctx context.Context, transactionID uuid.UUID) error {
	transaction, err := r.tx.GetTransaction(ctx, r.user.ID, transactionID)
	if err != nil {
		return fmt.Errorf("addImported: %w", err)
	}
	r.result.AddTransaction(transaction, false)

	transfers, err := r.tx.ListTransfersByTransaction(ctx, r.user.ID, transactionID)
	if err != nil {
		return fmt.Errorf("addImported: %w", err)
	}
	for _, transfer := range transfers {
		r.result.AddTransfer(transfer, false)

		for _, inCurrencyID := range []uuid.UUID{transfer.SourceAccountID, transfer.TargetAccountID} {
			account, err := r.accountOf(ctx, inCurrencyID)
			if err != nil {
				return fmt.Errorf("addImported: transfer %s: %w", transfer.ID, err)
			}
			if !r.result.HasAccount(account.ID) {
				r.result.AddAccount(account, false)
			}
		}
	}
	return nil
}
