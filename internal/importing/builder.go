package importing

import (
	"strings"
	"time"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/google/uuid"
)

// buildTransaction makes the transaction an entry is imported as.
func buildTransaction(entry Entry, userID uuid.UUID, now time.Time) *domain.Transaction {
	imported := now
	return &domain.Transaction{
		Ownership:   domain.Stamped(userID, now),
		ID:          uuid.New(),
		BookedAt:    entry.BookedAt,
		ValuedAt:    entry.ValuedAt,
		Description: strings.TrimSpace(entry.Description),
		ImportedAt:  &imported,
		ImportHash:  strings.TrimSpace(entry.ImportHash),
	}
}

// buildTransfer makes the single transfer of an entry's transaction. A
// credit moves money from the other side into the statement account, a
// debit the reverse.
func buildTransfer(entry Entry, transaction *domain.Transaction, statementSideID, otherSideID uuid.UUID) *domain.Transfer {
	statementAmount := entry.Amount
	otherAmount := entry.Amount
	if entry.HasOtherAmount() {
		otherAmount = entry.OtherAmount
	}

	transfer := &domain.Transfer{
		Ownership:         transaction.Ownership,
		ID:                uuid.New(),
		TransactionID:     transaction.ID,
		BankReference:     strings.TrimSpace(entry.BankReference),
		ExternalReference: strings.TrimSpace(entry.ExternalReference),
	}

	switch entry.CreditDebit {
	case Credit:
		transfer.SourceAccountID, transfer.SourceAmount = otherSideID, otherAmount
		transfer.TargetAccountID, transfer.TargetAmount = statementSideID, statementAmount
	default:
		transfer.SourceAccountID, transfer.SourceAmount = statementSideID, statementAmount
		transfer.TargetAccountID, transfer.TargetAmount = otherSideID, otherAmount
	}
	return transfer
}
