package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Ownership carries the audit fields stamped on every entity.
type Ownership struct {
	OwnerID          uuid.UUID  `json:"owner_id"`
	CreatedAt        time.Time  `json:"created_at"`
	CreatedByUserID  uuid.UUID  `json:"created_by_user_id"`
	ModifiedAt       time.Time  `json:"modified_at"`
	ModifiedByUserID uuid.UUID  `json:"modified_by_user_id"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// Stamped returns ownership fields for an entity created by user at now.
func Stamped(userID uuid.UUID, now time.Time) Ownership {
	return Ownership{
		OwnerID:          userID,
		CreatedAt:        now,
		CreatedByUserID:  userID,
		ModifiedAt:       now,
		ModifiedByUserID: userID,
	}
}

// User is the person on whose behalf an import runs. Accounts of the user
// itself belong to CounterpartyID.
type User struct {
	ID             uuid.UUID `json:"id"`
	CounterpartyID uuid.UUID `json:"counterparty_id"`
}

// Counterparty is the legal or natural person an account belongs to.
type Counterparty struct {
	Ownership

	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
}

// Account is a bank or ledger account. NormalizedName is unique among the
// non-deleted accounts of one owner, and Currencies is never empty.
type Account struct {
	Ownership

	ID                  uuid.UUID           `json:"id"`
	Name                string              `json:"name"`
	NormalizedName      string              `json:"normalized_name"`
	IBAN                string              `json:"iban,omitempty"`
	BIC                 string              `json:"bic,omitempty"`
	AccountNumber       string              `json:"account_number,omitempty"`
	CounterpartyID      uuid.UUID           `json:"counterparty_id"`
	PreferredCurrencyID uuid.UUID           `json:"preferred_currency_id"`
	Currencies          []AccountInCurrency `json:"currencies"`
}

// AccountInCurrency is the per-currency ledger of an account.
type AccountInCurrency struct {
	Ownership

	ID         uuid.UUID `json:"id"`
	AccountID  uuid.UUID `json:"account_id"`
	CurrencyID uuid.UUID `json:"currency_id"`
}

// InCurrency returns the account's ledger for currencyID, or nil.
func (a *Account) InCurrency(currencyID uuid.UUID) *AccountInCurrency {
	for i := range a.Currencies {
		if a.Currencies[i].CurrencyID == currencyID {
			return &a.Currencies[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	c := *a
	c.Currencies = append([]AccountInCurrency(nil), a.Currencies...)
	return &c
}

var diacritics = runes.Remove(runes.In(unicode.Mn))

// NormalizeName folds case and diacritics so that "Ābols" and "ABOLS" compare
// equal. It is the key of the per-owner account name uniqueness constraint.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, diacritics, norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(name))
	if err != nil {
		folded = strings.TrimSpace(name)
	}
	return strings.ToUpper(folded)
}
