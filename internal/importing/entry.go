package importing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/statement-import/internal/txcode"
	"github.com/shopspring/decimal"
)

// CreditDebit tells whether an entry increases or decreases the balance of
// the statement account.
type CreditDebit string

const (
	Credit CreditDebit = "CRDT"
	Debit  CreditDebit = "DBIT"
)

// Valid reports whether c is one of Credit or Debit.
func (c CreditDebit) Valid() bool {
	return c == Credit || c == Debit
}

// Entry is one normalized statement line, independent of the feed it came
// from. Times are absolute instants.
type Entry struct {
	BankReference     string
	ExternalReference string

	// Amount is the settled amount on the statement account, never negative.
	Amount       decimal.Decimal
	CurrencyCode string
	CreditDebit  CreditDebit

	BookedAt    *time.Time
	ValuedAt    *time.Time
	Description string

	// OtherAmount is the amount on the other side when it differs from Amount
	// in value or currency. Zero means the same as Amount.
	OtherAmount       decimal.Decimal
	OtherCurrencyCode string

	OtherAccountIBAN string
	OtherAccountName string

	Code txcode.Code

	// BankMovement forces the bank's own account as the other side, for feeds
	// that flag fees and interest without a usable transaction code.
	BankMovement bool

	// ImportHash is the content fingerprint of the raw entry, used as the last
	// resort duplicate key. Feeds that may repeat identical entries leave it
	// empty.
	ImportHash string
}

// HasOtherAmount reports whether the other side settles an amount of its own.
func (e Entry) HasOtherAmount() bool {
	return strings.TrimSpace(e.OtherCurrencyCode) != "" && !e.OtherAmount.IsZero()
}

// HasRelatedParty reports whether the entry names the other party.
func (e Entry) HasRelatedParty() bool {
	return strings.TrimSpace(e.OtherAccountIBAN) != "" || strings.TrimSpace(e.OtherAccountName) != ""
}

// UserAccount identifies the account the statement was issued for.
type UserAccount struct {
	IBAN         string
	CurrencyCode string
}

// Bank identifies the servicing institution of the statement account.
type Bank struct {
	Name string
	BIC  string
}

// Statement is the unit of import: one user account and its entries.
type Statement struct {
	// Source names the feed, e.g. "iso20022" or "nordigen".
	Source     string
	ArchiveURI string

	Account UserAccount
	Bank    Bank
	Entries []Entry
}

// Validate checks everything that can be checked without storage.
func (s Statement) Validate() error {
	if strings.TrimSpace(s.Account.IBAN) == "" {
		return Invalid("account.iban", "required")
	}
	if strings.TrimSpace(s.Account.CurrencyCode) == "" {
		return Invalid("account.currency", "required")
	}
	if strings.TrimSpace(s.Bank.BIC) == "" && strings.TrimSpace(s.Bank.Name) == "" {
		return fmt.Errorf("statement servicer has neither BIC nor name: %w", ErrMissingIdentification)
	}

	for i, e := range s.Entries {
		if err := e.validate(); err != nil {
			var v *ValidationError
			if errors.As(err, &v) {
				v.Field = "entries[" + strconv.Itoa(i) + "]." + v.Field
			}
			return err
		}
	}
	return nil
}

func (e Entry) validate() error {
	if strings.TrimSpace(e.CurrencyCode) == "" {
		return Invalid("currency", "required")
	}
	if !e.CreditDebit.Valid() {
		return Invalid("credit_debit", "unknown indicator %q", e.CreditDebit)
	}
	if e.Amount.IsNegative() {
		return Invalid("amount", "must not be negative, got %s", e.Amount)
	}
	if e.OtherAmount.IsNegative() {
		return Invalid("other_amount", "must not be negative, got %s", e.OtherAmount)
	}
	if !e.OtherAmount.IsZero() && strings.TrimSpace(e.OtherCurrencyCode) == "" {
		return Invalid("other_currency", "required with other amount")
	}
	return nil
}
