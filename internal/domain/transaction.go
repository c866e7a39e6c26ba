package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction groups one or more transfers booked together.
// BookedAt and ValuedAt are absolute instants; the caller's time zone has
// already been applied by the importer.
type Transaction struct {
	Ownership

	ID          uuid.UUID  `json:"id"`
	BookedAt    *time.Time `json:"booked_at,omitempty"`
	ValuedAt    *time.Time `json:"valued_at,omitempty"`
	Description string     `json:"description,omitempty"`
	ImportedAt  *time.Time `json:"imported_at,omitempty"`

	// ImportHash is the hex content fingerprint of the report entry the
	// transaction was imported from, empty when not imported.
	ImportHash string `json:"import_hash,omitempty"`
}

// Transfer moves money between two AccountInCurrency rows. Source and target
// amounts are independent so a transfer can cross currencies.
type Transfer struct {
	Ownership

	ID                uuid.UUID       `json:"id"`
	TransactionID     uuid.UUID       `json:"transaction_id"`
	SourceAccountID   uuid.UUID       `json:"source_account_id"`
	TargetAccountID   uuid.UUID       `json:"target_account_id"`
	SourceAmount      decimal.Decimal `json:"source_amount"`
	TargetAmount      decimal.Decimal `json:"target_amount"`
	BankReference     string          `json:"bank_reference,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	InternalReference string          `json:"internal_reference,omitempty"`
	Order             int             `json:"order"`
}
