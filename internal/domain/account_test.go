package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Unidentified", "UNIDENTIFIED"},
		{"  acme ltd ", "ACME LTD"},
		{"Ābols Ķēdē", "ABOLS KEDE"},
		{"LV00BANK0000000000", "LV00BANK0000000000"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestAccountInCurrency(t *testing.T) {
	eur, usd := uuid.New(), uuid.New()
	account := &Account{
		ID:         uuid.New(),
		Currencies: []AccountInCurrency{{ID: uuid.New(), CurrencyID: eur}},
	}

	got := account.InCurrency(eur)
	require.NotNil(t, got)
	assert.Equal(t, eur, got.CurrencyID)
	assert.Nil(t, account.InCurrency(usd))
}

func TestAccountClone(t *testing.T) {
	account := &Account{
		Name:       "LV00BANK0000000000",
		Currencies: []AccountInCurrency{{ID: uuid.New()}},
	}

	clone := account.Clone()
	clone.Currencies = append(clone.Currencies, AccountInCurrency{ID: uuid.New()})
	clone.Currencies[0].ID = uuid.Nil

	assert.Len(t, account.Currencies, 1)
	assert.NotEqual(t, uuid.Nil, account.Currencies[0].ID)
}
