package importing

import (
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/google/uuid"
)

// AccountRecord is an account touched by an import run.
type AccountRecord struct {
	Account *domain.Account `json:"account"`
	Created bool            `json:"created"`
}

// TransactionRecord is a transaction touched by an import run.
type TransactionRecord struct {
	Transaction *domain.Transaction `json:"transaction"`
	Created     bool                `json:"created"`
}

// TransferRecord is a transfer touched by an import run.
type TransferRecord struct {
	Transfer *domain.Transfer `json:"transfer"`
	Created  bool             `json:"created"`
}

// Result lists everything one statement import referenced or created.
type Result struct {
	UserAccount  AccountRecord       `json:"user_account"`
	Accounts     []AccountRecord     `json:"accounts"`
	Transactions []TransactionRecord `json:"transactions"`
	Transfers    []TransferRecord    `json:"transfers"`
}

// Stats counts the records of a result.
type Stats struct {
	AccountsCreated     int
	TransactionsCreated int
	TransfersCreated    int
	TransfersExisting   int
}

// Stats summarizes r.
func (r *Result) Stats() Stats {
	var s Stats
	for _, a := range r.Accounts {
		if a.Created {
			s.AccountsCreated++
		}
	}
	for _, t := range r.Transactions {
		if t.Created {
			s.TransactionsCreated++
		}
	}
	for _, t := range r.Transfers {
		if t.Created {
			s.TransfersCreated++
		} else {
			s.TransfersExisting++
		}
	}
	return s
}

// ResultBuilder accumulates the records of one run. The first created flag
// recorded for an id wins; later additions only refresh the entity.
type ResultBuilder struct {
	userAccount *AccountRecord

	accounts     []AccountRecord
	transactions []TransactionRecord
	transfers    []TransferRecord

	accountIdx     map[uuid.UUID]int
	transactionIdx map[uuid.UUID]int
	transferIdx    map[uuid.UUID]int
}

// NewResultBuilder returns an empty builder.
func NewResultBuilder() *ResultBuilder {
	return &ResultBuilder{
		accountIdx:     make(map[uuid.UUID]int),
		transactionIdx: make(map[uuid.UUID]int),
		transferIdx:    make(map[uuid.UUID]int),
	}
}

// SetUserAccount records the statement account. It is also listed among
// the accounts.
func (b *ResultBuilder) SetUserAccount(account *domain.Account, created bool) {
	b.AddAccount(account, created)
	b.userAccount = &AccountRecord{Account: account, Created: b.accounts[b.accountIdx[account.ID]].Created}
}

func (b *ResultBuilder) AddAccount(account *domain.Account, created bool) {
	if i, ok := b.accountIdx[account.ID]; ok {
		b.accounts[i].Account = account
		return
	}
	b.accountIdx[account.ID] = len(b.accounts)
	b.accounts = append(b.accounts, AccountRecord{Account: account, Created: created})
}

func (b *ResultBuilder) AddTransaction(transaction *domain.Transaction, created bool) {
	if i, ok := b.transactionIdx[transaction.ID]; ok {
		b.transactions[i].Transaction = transaction
		return
	}
	b.transactionIdx[transaction.ID] = len(b.transactions)
	b.transactions = append(b.transactions, TransactionRecord{Transaction: transaction, Created: created})
}

func (b *ResultBuilder) AddTransfer(transfer *domain.Transfer, created bool) {
	if i, ok := b.transferIdx[transfer.ID]; ok {
		b.transfers[i].Transfer = transfer
		return
	}
	b.transferIdx[transfer.ID] = len(b.transfers)
	b.transfers = append(b.transfers, TransferRecord{Transfer: transfer, Created: created})
}

// HasAccount reports whether id was recorded.
func (b *ResultBuilder) HasAccount(id uuid.UUID) bool {
	_, ok := b.accountIdx[id]
	return ok
}

// Result returns a deep copy of the accumulated records, detached from any
// entity the run keeps mutating.
func (b *ResultBuilder) Result() *Result {
	r := &Result{
		Accounts:     make([]AccountRecord, len(b.accounts)),
		Transactions: make([]TransactionRecord, len(b.transactions)),
		Transfers:    make([]TransferRecord, len(b.transfers)),
	}
	for i, a := range b.accounts {
		r.Accounts[i] = AccountRecord{Account: a.Account.Clone(), Created: a.Created}
	}
	for i, t := range b.transactions {
		transaction := *t.Transaction
		r.Transactions[i] = TransactionRecord{Transaction: &transaction, Created: t.Created}
	}
	for i, t := range b.transfers {
		transfer := *t.Transfer
		r.Transfers[i] = TransferRecord{Transfer: &transfer, Created: t.Created}
	}
	if b.userAccount != nil {
		r.UserAccount = AccountRecord{Account: b.userAccount.Account.Clone(), Created: b.userAccount.Created}
	}
	return r
}
