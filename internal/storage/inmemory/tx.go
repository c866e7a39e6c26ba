package inmemory

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/storage"
	"github.com/google/uuid"
)

type tx struct {
	store *Store
	data  *state
	done  bool
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	t.store.mu.Lock()
	t.store.data = t.data
	t.store.mu.Unlock()

	t.store.writer.Unlock()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.writer.Unlock()
	return nil
}

func (t *tx) FindCurrencyByCode(ctx context.Context, alphabeticCode string) (*domain.Currency, error) {
	if t.done {
		return nil, ErrTxDone
	}
	currency, ok := t.data.currencies[alphabeticCode]
	if !ok {
		return nil, nil
	}
	return &currency, nil
}

func (t *tx) AddCounterparty(ctx context.Context, counterparty *domain.Counterparty) error {
	if t.done {
		return ErrTxDone
	}
	if _, exists := t.data.counterparties[counterparty.ID]; exists {
		return fmt.Errorf("counterparty %s: %w", counterparty.ID, storage.ErrConflict)
	}
	t.data.counterparties[counterparty.ID] = *counterparty
	return nil
}

func (t *tx) FindAccountByIBAN(ctx context.Context, ownerID uuid.UUID, iban string) (*domain.Account, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return t.data.findAccount(ownerID, func(a domain.Account) bool { return a.IBAN == iban }), nil
}

func (t *tx) FindAccountByBIC(ctx context.Context, ownerID uuid.UUID, bic string) (*domain.Account, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return t.data.findAccount(ownerID, func(a domain.Account) bool { return a.BIC == bic }), nil
}

func (t *tx) FindAccountByNormalizedName(ctx context.Context, ownerID uuid.UUID, normalizedName string) (*domain.Account, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return t.data.findAccount(ownerID, func(a domain.Account) bool { return a.NormalizedName == normalizedName }), nil
}

func (t *tx) GetAccount(ctx context.Context, ownerID, id uuid.UUID) (*domain.Account, error) {
	if t.done {
		return nil, ErrTxDone
	}
	account := t.data.account(id)
	if account == nil || account.OwnerID != ownerID {
		return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	return account, nil
}

func (t *tx) AddAccount(ctx context.Context, account *domain.Account) error {
	if t.done {
		return ErrTxDone
	}
	if _, exists := t.data.accounts[account.ID]; exists {
		return fmt.Errorf("account %s: %w", account.ID, storage.ErrConflict)
	}
	if other := t.data.findAccount(account.OwnerID, func(a domain.Account) bool {
		return a.NormalizedName == account.NormalizedName
	}); other != nil {
		return fmt.Errorf("account name %q: %w", account.Name, storage.ErrConflict)
	}

	row := *account
	row.Currencies = nil
	t.data.accounts[account.ID] = row
	t.data.accountOrder = append(t.data.accountOrder, account.ID)

	for i := range account.Currencies {
		if err := t.AddAccountInCurrency(ctx, &account.Currencies[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) AddAccountInCurrency(ctx context.Context, inCurrency *domain.AccountInCurrency) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.data.accounts[inCurrency.AccountID]; !ok {
		return fmt.Errorf("account %s: %w", inCurrency.AccountID, storage.ErrNotFound)
	}
	for _, existing := range t.data.inCurrency {
		if existing.AccountID == inCurrency.AccountID && existing.CurrencyID == inCurrency.CurrencyID && existing.DeletedAt == nil {
			return fmt.Errorf("account %s currency %s: %w", inCurrency.AccountID, inCurrency.CurrencyID, storage.ErrConflict)
		}
	}

	t.data.inCurrency[inCurrency.ID] = *inCurrency
	t.data.inCurrencyOrder = append(t.data.inCurrencyOrder, inCurrency.ID)
	return nil
}

func (t *tx) GetAccountInCurrency(ctx context.Context, ownerID, id uuid.UUID) (*domain.AccountInCurrency, error) {
	if t.done {
		return nil, ErrTxDone
	}
	aic, ok := t.data.inCurrency[id]
	if !ok || aic.OwnerID != ownerID {
		return nil, fmt.Errorf("account in currency %s: %w", id, storage.ErrNotFound)
	}
	return &aic, nil
}

func (t *tx) AddTransaction(ctx context.Context, transaction *domain.Transaction) error {
	if t.done {
		return ErrTxDone
	}
	if _, exists := t.data.transactions[transaction.ID]; exists {
		return fmt.Errorf("transaction %s: %w", transaction.ID, storage.ErrConflict)
	}
	t.data.transactions[transaction.ID] = *transaction
	return nil
}

func (t *tx) GetTransaction(ctx context.Context, ownerID, id uuid.UUID) (*domain.Transaction, error) {
	if t.done {
		return nil, ErrTxDone
	}
	transaction, ok := t.data.transactions[id]
	if !ok || transaction.OwnerID != ownerID {
		return nil, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	return &transaction, nil
}

func (t *tx) FindTransactionByImportHash(ctx context.Context, ownerID uuid.UUID, importHash string) (*domain.Transaction, error) {
	if t.done {
		return nil, ErrTxDone
	}
	for _, transaction := range t.data.transactions {
		if transaction.OwnerID == ownerID && transaction.DeletedAt == nil && transaction.ImportHash == importHash {
			return &transaction, nil
		}
	}
	return nil, nil
}

func (t *tx) AddTransfer(ctx context.Context, transfer *domain.Transfer) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.data.transactions[transfer.TransactionID]; !ok {
		return fmt.Errorf("transaction %s: %w", transfer.TransactionID, storage.ErrNotFound)
	}
	if transfer.BankReference != "" {
		for _, existing := range t.data.transfers {
			if existing.OwnerID == transfer.OwnerID && existing.DeletedAt == nil && existing.BankReference == transfer.BankReference {
				return fmt.Errorf("bank reference %q: %w", transfer.BankReference, storage.ErrConflict)
			}
		}
	}

	t.data.transfers[transfer.ID] = *transfer
	t.data.transferOrder = append(t.data.transferOrder, transfer.ID)
	return nil
}

func (t *tx) FindTransferByBankReference(ctx context.Context, ownerID uuid.UUID, bankReference string) (*domain.Transfer, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return t.findTransfer(ownerID, func(tr domain.Transfer) bool { return tr.BankReference == bankReference }), nil
}

func (t *tx) ListTransfersByExternalReference(ctx context.Context, ownerID uuid.UUID, externalReference string) ([]*domain.Transfer, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return t.listTransfers(ownerID, func(tr domain.Transfer) bool { return tr.ExternalReference == externalReference }), nil
}

func (t *tx) ListTransfersByTransaction(ctx context.Context, ownerID, transactionID uuid.UUID) ([]*domain.Transfer, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return t.listTransfers(ownerID, func(tr domain.Transfer) bool { return tr.TransactionID == transactionID }), nil
}

func (t *tx) findTransfer(ownerID uuid.UUID, match func(domain.Transfer) bool) *domain.Transfer {
	if found := t.listTransfers(ownerID, match); len(found) > 0 {
		return found[0]
	}
	return nil
}

func (t *tx) listTransfers(ownerID uuid.UUID, match func(domain.Transfer) bool) []*domain.Transfer {
	var result []*domain.Transfer
	for _, id := range t.data.transferOrder {
		transfer := t.data.transfers[id]
		if transfer.OwnerID != ownerID || transfer.DeletedAt != nil || !match(transfer) {
			continue
		}
		result = append(result, &transfer)
	}
	return result
}

// Ensure tx implements storage.Tx interface.
var _ storage.Tx = (*tx)(nil)
