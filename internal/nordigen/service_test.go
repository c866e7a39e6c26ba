package nordigen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/importing"
	"github.com/dvloznov/statement-import/internal/storage/inmemory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	ListRequisitionsFunc       func(ctx context.Context) ([]Requisition, error)
	CreateRequisitionFunc      func(ctx context.Context, req RequisitionRequest) (*Requisition, error)
	GetAccountFunc             func(ctx context.Context, id string) (*Account, error)
	GetAccountDetailsFunc      func(ctx context.Context, id string) (*AccountDetails, error)
	GetAccountTransactionsFunc func(ctx context.Context, id string) (*AccountTransactions, error)
	GetInstitutionFunc         func(ctx context.Context, id string) (*Institution, error)
	ListInstitutionsFunc       func(ctx context.Context, country string) ([]Institution, error)
}

func (m *mockClient) ListRequisitions(ctx context.Context) ([]Requisition, error) {
	return m.ListRequisitionsFunc(ctx)
}

func (m *mockClient) CreateRequisition(ctx context.Context, req RequisitionRequest) (*Requisition, error) {
	return m.CreateRequisitionFunc(ctx, req)
}

func (m *mockClient) GetAccount(ctx context.Context, id string) (*Account, error) {
	return m.GetAccountFunc(ctx, id)
}

func (m *mockClient) GetAccountDetails(ctx context.Context, id string) (*AccountDetails, error) {
	return m.GetAccountDetailsFunc(ctx, id)
}

func (m *mockClient) GetAccountTransactions(ctx context.Context, id string) (*AccountTransactions, error) {
	return m.GetAccountTransactionsFunc(ctx, id)
}

func (m *mockClient) GetInstitution(ctx context.Context, id string) (*Institution, error) {
	return m.GetInstitutionFunc(ctx, id)
}

func (m *mockClient) ListInstitutions(ctx context.Context, country string) ([]Institution, error) {
	return m.ListInstitutionsFunc(ctx, country)
}

func newStore() (*inmemory.Store, *domain.User) {
	store := inmemory.NewStore()
	store.AddCurrency(domain.Currency{ID: uuid.New(), AlphabeticCode: "EUR", NumericCode: 978, Name: "Euro", MinorUnit: 2})
	user := &domain.User{ID: uuid.New(), CounterpartyID: uuid.New()}
	store.AddUser(*user)
	return store, user
}

// linkedClient serves one linked requisition with two accounts at the same
// institution.
func linkedClient(institutionCalls *int, mu *sync.Mutex) *mockClient {
	ibans := map[string]string{"acc-1": "LV00BANK0000000001", "acc-2": "LV00BANK0000000002"}
	return &mockClient{
		ListRequisitionsFunc: func(ctx context.Context) ([]Requisition, error) {
			return []Requisition{
				{ID: "old", InstitutionID: "BANK_LV", Status: StatusLinked, Created: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Accounts: []string{"stale"}},
				{ID: "new", InstitutionID: "BANK_LV", Status: StatusLinked, Created: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Accounts: []string{"acc-1", "acc-2"}},
				{ID: "other", InstitutionID: "OTHER", Status: StatusLinked, Created: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
			}, nil
		},
		GetAccountFunc: func(ctx context.Context, id string) (*Account, error) {
			return &Account{ID: id, IBAN: ibans[id], InstitutionID: "BANK_LV"}, nil
		},
		GetAccountDetailsFunc: func(ctx context.Context, id string) (*AccountDetails, error) {
			return &AccountDetails{Account: AccountDetail{Currency: "EUR"}}, nil
		},
		GetAccountTransactionsFunc: func(ctx context.Context, id string) (*AccountTransactions, error) {
			return &AccountTransactions{Transactions: Transactions{Booked: []BookedTransaction{{
				TransactionID:     id + "-T1",
				BookingDate:       &civil.Date{Year: 2026, Month: 2, Day: 3},
				TransactionAmount: amount("-4.50"),
				CreditorName:      "Bakery",
			}}}}, nil
		},
		GetInstitutionFunc: func(ctx context.Context, id string) (*Institution, error) {
			mu.Lock()
			*institutionCalls++
			mu.Unlock()
			return &Institution{ID: id, Name: "Example Bank", BIC: "BANKLV22"}, nil
		},
	}
}

func TestService_ImportLinkedAccounts(t *testing.T) {
	store, user := newStore()
	var calls int
	var mu sync.Mutex
	service := NewService(linkedClient(&calls, &mu), importing.NewImporter(store), "https://example.com/done", 2)

	outcome, err := service.Import(context.Background(), user, "BANK_LV", "Europe/Riga")
	require.NoError(t, err)

	assert.Empty(t, outcome.RedirectURL)
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "LV00BANK0000000001", outcome.Results[0].UserAccount.Account.IBAN)
	assert.Equal(t, "LV00BANK0000000002", outcome.Results[1].UserAccount.Account.IBAN)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, store.Begins())
	assert.Equal(t, 2, store.Counts().Transfers)

	// the shared bakery account is created once for both accounts
	assert.Equal(t, 4, store.Counts().Accounts)

	again, err := service.Import(context.Background(), user, "BANK_LV", "Europe/Riga")
	require.NoError(t, err)
	for _, r := range again.Results {
		assert.Equal(t, importing.Stats{TransfersExisting: 1}, r.Stats())
	}
}

func TestService_StartsConsentWhenNotLinked(t *testing.T) {
	store, user := newStore()
	var requested RequisitionRequest
	client := &mockClient{
		ListRequisitionsFunc: func(ctx context.Context) ([]Requisition, error) {
			return []Requisition{{ID: "expired", InstitutionID: "BANK_LV", Status: StatusExpired}}, nil
		},
		CreateRequisitionFunc: func(ctx context.Context, req RequisitionRequest) (*Requisition, error) {
			requested = req
			return &Requisition{ID: "r1", Link: "https://consent.example/r1"}, nil
		},
	}
	service := NewService(client, importing.NewImporter(store), "https://example.com/done", 0)

	outcome, err := service.Import(context.Background(), user, "BANK_LV", "Europe/Riga")
	require.NoError(t, err)

	assert.Equal(t, "https://consent.example/r1", outcome.RedirectURL)
	assert.Nil(t, outcome.Results)
	assert.Equal(t, "BANK_LV", requested.InstitutionID)
	assert.Equal(t, "https://example.com/done", requested.Redirect)
	_, err = uuid.Parse(requested.Reference)
	assert.NoError(t, err)
	assert.Zero(t, store.Begins())
}

func TestService_ValidatesTimeZoneFirst(t *testing.T) {
	store, user := newStore()
	client := &mockClient{
		ListRequisitionsFunc: func(ctx context.Context) ([]Requisition, error) {
			t.Error("called the aggregator with an invalid time zone")
			return nil, nil
		},
	}
	service := NewService(client, importing.NewImporter(store), "", 0)

	_, err := service.Import(context.Background(), user, "BANK_LV", "Nowhere/City")
	assert.True(t, importing.IsValidation(err))
}

func TestService_FetchFailure(t *testing.T) {
	store, user := newStore()
	var calls int
	var mu sync.Mutex
	client := linkedClient(&calls, &mu)
	client.GetAccountTransactionsFunc = func(ctx context.Context, id string) (*AccountTransactions, error) {
		return nil, &APIError{StatusCode: 429, Summary: "Rate limit exceeded"}
	}
	service := NewService(client, importing.NewImporter(store), "", 4)

	_, err := service.Import(context.Background(), user, "BANK_LV", "Europe/Riga")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Zero(t, store.Begins())
}

func TestService_Institutions(t *testing.T) {
	client := &mockClient{
		ListInstitutionsFunc: func(ctx context.Context, country string) ([]Institution, error) {
			if country != "LV" {
				return nil, errors.New("unexpected country")
			}
			return []Institution{{ID: "BANK_A"}, {ID: "BANK_B"}}, nil
		},
	}
	service := NewService(client, nil, "", 0)

	ids, err := service.Institutions(context.Background(), "LV")
	require.NoError(t, err)
	assert.Equal(t, []string{"BANK_A", "BANK_B"}, ids)

	_, err = service.Institutions(context.Background(), "Latvia")
	assert.True(t, importing.IsValidation(err))
}

// singleAccountClient serves one linked account with the given booked
// transactions.
func singleAccountClient(booked ...BookedTransaction) *mockClient {
	return &mockClient{
		ListRequisitionsFunc: func(ctx context.Context) ([]Requisition, error) {
			return []Requisition{{ID: "r1", InstitutionID: "BANK_LV", Status: StatusLinked, Accounts: []string{"acc-1"}}}, nil
		},
		GetAccountFunc: func(ctx context.Context, id string) (*Account, error) {
			return &Account{ID: id, IBAN: "LV00BANK0000000001", InstitutionID: "BANK_LV"}, nil
		},
		GetAccountDetailsFunc: func(ctx context.Context, id string) (*AccountDetails, error) {
			return &AccountDetails{Account: AccountDetail{Currency: "EUR"}}, nil
		},
		GetAccountTransactionsFunc: func(ctx context.Context, id string) (*AccountTransactions, error) {
			return &AccountTransactions{Transactions: Transactions{Booked: booked}}, nil
		},
		GetInstitutionFunc: func(ctx context.Context, id string) (*Institution, error) {
			return &Institution{ID: id, Name: "Example Bank", BIC: "BANKLV22"}, nil
		},
	}
}

func TestService_RepeatedPurchasesWithoutID(t *testing.T) {
	store, user := newStore()
	coffee := BookedTransaction{
		BookingDate:       &civil.Date{Year: 2026, Month: 2, Day: 3},
		TransactionAmount: amount("-4.50"),
		CreditorName:      "Cafe",
	}
	service := NewService(singleAccountClient(coffee, coffee), importing.NewImporter(store), "", 0)

	outcome, err := service.Import(context.Background(), user, "BANK_LV", "Europe/Riga")
	require.NoError(t, err)

	require.Len(t, outcome.Results, 1)
	assert.Equal(t, 2, outcome.Results[0].Stats().TransfersCreated)
	assert.Zero(t, outcome.Results[0].Stats().TransfersExisting)
	assert.Len(t, outcome.Results[0].Transfers, 2)
	assert.Equal(t, 2, store.Counts().Transfers)
}

func TestService_CardFeeBookedAgainstBank(t *testing.T) {
	store, user := newStore()
	fee := BookedTransaction{
		TransactionID:         "FEE-1",
		BookingDate:           &civil.Date{Year: 2026, Month: 2, Day: 3},
		TransactionAmount:     amount("-1.50"),
		AdditionalInformation: "CARD FEE",
	}
	service := NewService(singleAccountClient(fee), importing.NewImporter(store), "", 0)

	outcome, err := service.Import(context.Background(), user, "BANK_LV", "Europe/Riga")
	require.NoError(t, err)

	require.Len(t, outcome.Results, 1)
	result := outcome.Results[0]
	require.Len(t, result.Transfers, 1)

	var bank *domain.Account
	for _, a := range result.Accounts {
		assert.NotEqual(t, importing.UnidentifiedAccountName, a.Account.Name)
		if a.Account.BIC == "BANKLV22" {
			bank = a.Account
		}
	}
	require.NotNil(t, bank)
	require.Len(t, bank.Currencies, 1)
	assert.Equal(t, bank.Currencies[0].ID, result.Transfers[0].Transfer.TargetAccountID)
}
