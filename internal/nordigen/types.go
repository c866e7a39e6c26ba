package nordigen

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// RequisitionStatus is the state of an end user agreement link.
type RequisitionStatus string

const (
	StatusCreated  RequisitionStatus = "CR"
	StatusLinked   RequisitionStatus = "LN"
	StatusExpired  RequisitionStatus = "EX"
	StatusRejected RequisitionStatus = "RJ"
)

// Requisition links an institution's accounts to this application.
type Requisition struct {
	ID            string            `json:"id"`
	Created       time.Time         `json:"created"`
	Redirect      string            `json:"redirect"`
	Status        RequisitionStatus `json:"status"`
	InstitutionID string            `json:"institution_id"`
	Agreement     string            `json:"agreement,omitempty"`
	Reference     string            `json:"reference"`
	Accounts      []string          `json:"accounts"`
	Link          string            `json:"link"`
}

// RequisitionRequest starts the consent flow for an institution.
type RequisitionRequest struct {
	Redirect      string `json:"redirect"`
	InstitutionID string `json:"institution_id"`
	Reference     string `json:"reference"`
	UserLanguage  string `json:"user_language,omitempty"`
}

type page[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []T    `json:"results"`
}

// Account is the metadata of a linked account.
type Account struct {
	ID            string    `json:"id"`
	Created       time.Time `json:"created"`
	IBAN          string    `json:"iban"`
	InstitutionID string    `json:"institution_id"`
	Status        string    `json:"status"`
	OwnerName     string    `json:"owner_name,omitempty"`
}

// AccountDetails is the response of the account details endpoint.
type AccountDetails struct {
	Account AccountDetail `json:"account"`
}

type AccountDetail struct {
	ResourceID      string `json:"resourceId,omitempty"`
	IBAN            string `json:"iban,omitempty"`
	Currency        string `json:"currency"`
	OwnerName       string `json:"ownerName,omitempty"`
	Name            string `json:"name,omitempty"`
	Product         string `json:"product,omitempty"`
	CashAccountType string `json:"cashAccountType,omitempty"`
}

// AccountTransactions is the response of the transactions endpoint.
type AccountTransactions struct {
	Transactions Transactions `json:"transactions"`
}

type Transactions struct {
	Booked  []BookedTransaction  `json:"booked"`
	Pending []PendingTransaction `json:"pending,omitempty"`
}

// Amount is a signed amount: negative amounts leave the account.
type Amount struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type AccountReference struct {
	IBAN string `json:"iban,omitempty"`
	BBAN string `json:"bban,omitempty"`
}

// BookedTransaction is a booked transaction as reported by the aggregator.
type BookedTransaction struct {
	TransactionID                          string            `json:"transactionId,omitempty"`
	EntryReference                         string            `json:"entryReference,omitempty"`
	BookingDate                            *civil.Date       `json:"bookingDate,omitempty"`
	ValueDate                              *civil.Date       `json:"valueDate,omitempty"`
	TransactionAmount                      Amount            `json:"transactionAmount"`
	CreditorName                           string            `json:"creditorName,omitempty"`
	CreditorAccount                        *AccountReference `json:"creditorAccount,omitempty"`
	DebtorName                             string            `json:"debtorName,omitempty"`
	DebtorAccount                          *AccountReference `json:"debtorAccount,omitempty"`
	RemittanceInformationUnstructured      string            `json:"remittanceInformationUnstructured,omitempty"`
	RemittanceInformationUnstructuredArray []string          `json:"remittanceInformationUnstructuredArray,omitempty"`
	BankTransactionCode                    string            `json:"bankTransactionCode,omitempty"`
	ProprietaryBankTransactionCode         string            `json:"proprietaryBankTransactionCode,omitempty"`
	AdditionalInformation                  string            `json:"additionalInformation,omitempty"`
}

// PendingTransaction is not imported; it only exists to decode the feed.
type PendingTransaction struct {
	TransactionAmount                 Amount      `json:"transactionAmount"`
	ValueDate                         *civil.Date `json:"valueDate,omitempty"`
	RemittanceInformationUnstructured string      `json:"remittanceInformationUnstructured,omitempty"`
}

// Institution is a bank reachable through the aggregator.
type Institution struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	BIC                  string   `json:"bic"`
	TransactionTotalDays string   `json:"transaction_total_days,omitempty"`
	Countries            []string `json:"countries,omitempty"`
	Logo                 string   `json:"logo,omitempty"`
}

type tokenRequest struct {
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
}

type tokenResponse struct {
	Access        string `json:"access"`
	AccessExpires int    `json:"access_expires"`
}
