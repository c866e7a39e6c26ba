package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/storage"
	"github.com/google/uuid"
)

// ErrTxDone is returned when a committed or rolled back transaction is used.
var ErrTxDone = errors.New("transaction already committed or rolled back")

// Store is an in-memory implementation of storage.Store.
// Transactions are serialized: Begin blocks until the previous transaction
// finishes, works on a private copy of the data and publishes it on Commit.
// Data is lost on restart.
type Store struct {
	writer sync.Mutex

	mu     sync.RWMutex
	data   *state
	begins int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{data: newState()}
}

// AddUser seeds a user.
func (s *Store) AddUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[user.ID] = user
}

// AddCurrency seeds a currency.
func (s *Store) AddCurrency(currency domain.Currency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.currencies[currency.AlphabeticCode] = currency
}

// GetUser implements storage.Store.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.data.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return &user, nil
}

// Begin implements storage.Store.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.writer.Lock()

	s.mu.Lock()
	s.begins++
	snapshot := s.data.clone()
	s.mu.Unlock()

	return &tx{store: s, data: snapshot}, nil
}

// Begins returns how many transactions have been opened.
func (s *Store) Begins() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.begins
}

// Counts summarizes the committed rows.
type Counts struct {
	Counterparties     int
	Accounts           int
	AccountsInCurrency int
	Transactions       int
	Transfers          int
}

// Counts returns the number of committed rows per table.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Counts{
		Counterparties:     len(s.data.counterparties),
		Accounts:           len(s.data.accounts),
		AccountsInCurrency: len(s.data.inCurrency),
		Transactions:       len(s.data.transactions),
		Transfers:          len(s.data.transfers),
	}
}

// Accounts returns copies of the committed accounts of owner in insertion order.
func (s *Store) Accounts(ownerID uuid.UUID) []*domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Account
	for _, id := range s.data.accountOrder {
		if account := s.data.account(id); account.OwnerID == ownerID {
			result = append(result, account)
		}
	}
	return result
}

// Transfers returns copies of the committed transfers of owner in insertion order.
func (s *Store) Transfers(ownerID uuid.UUID) []*domain.Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transfer
	for _, id := range s.data.transferOrder {
		if transfer := s.data.transfers[id]; transfer.OwnerID == ownerID {
			result = append(result, &transfer)
		}
	}
	return result
}

// Ensure Store implements storage.Store interface.
var _ storage.Store = (*Store)(nil)
