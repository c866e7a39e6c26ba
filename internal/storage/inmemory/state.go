package inmemory

import (
	"maps"
	"slices"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/google/uuid"
)

// state holds one version of every table. Accounts are stored without their
// currencies; account() reassembles them.
type state struct {
	users          map[uuid.UUID]domain.User
	currencies     map[string]domain.Currency
	counterparties map[uuid.UUID]domain.Counterparty
	accounts       map[uuid.UUID]domain.Account
	inCurrency     map[uuid.UUID]domain.AccountInCurrency
	transactions   map[uuid.UUID]domain.Transaction
	transfers      map[uuid.UUID]domain.Transfer

	accountOrder    []uuid.UUID
	inCurrencyOrder []uuid.UUID
	transferOrder   []uuid.UUID
}

func newState() *state {
	return &state{
		users:          make(map[uuid.UUID]domain.User),
		currencies:     make(map[string]domain.Currency),
		counterparties: make(map[uuid.UUID]domain.Counterparty),
		accounts:       make(map[uuid.UUID]domain.Account),
		inCurrency:     make(map[uuid.UUID]domain.AccountInCurrency),
		transactions:   make(map[uuid.UUID]domain.Transaction),
		transfers:      make(map[uuid.UUID]domain.Transfer),
	}
}

func (s *state) clone() *state {
	return &state{
		users:           maps.Clone(s.users),
		currencies:      maps.Clone(s.currencies),
		counterparties:  maps.Clone(s.counterparties),
		accounts:        maps.Clone(s.accounts),
		inCurrency:      maps.Clone(s.inCurrency),
		transactions:    maps.Clone(s.transactions),
		transfers:       maps.Clone(s.transfers),
		accountOrder:    slices.Clone(s.accountOrder),
		inCurrencyOrder: slices.Clone(s.inCurrencyOrder),
		transferOrder:   slices.Clone(s.transferOrder),
	}
}

// account returns a copy of the account with its currencies, or nil.
func (s *state) account(id uuid.UUID) *domain.Account {
	account, ok := s.accounts[id]
	if !ok {
		return nil
	}

	account.Currencies = nil
	for _, aicID := range s.inCurrencyOrder {
		if aic := s.inCurrency[aicID]; aic.AccountID == id && aic.DeletedAt == nil {
			account.Currencies = append(account.Currencies, aic)
		}
	}
	return &account
}

// findAccount returns the first live account of owner matching match.
func (s *state) findAccount(ownerID uuid.UUID, match func(domain.Account) bool) *domain.Account {
	for _, id := range s.accountOrder {
		account := s.accounts[id]
		if account.OwnerID != ownerID || account.DeletedAt != nil {
			continue
		}
		if match(account) {
			return s.account(id)
		}
	}
	return nil
}
