// Package iso20022 imports ISO 20022 bank-to-customer account reports
// (camt.052) that were already parsed into their JSON form.
package iso20022

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// AccountReport is one report of a camt.052 message.
type AccountReport struct {
	ID                  string               `json:"id,omitempty"`
	Account             CashAccount          `json:"account"`
	TransactionsSummary *TransactionsSummary `json:"transactions_summary,omitempty"`
	Entries             []ReportEntry        `json:"entries"`
}

// CashAccount identifies the reported account and its servicer.
type CashAccount struct {
	IBAN     string               `json:"iban"`
	Currency string               `json:"currency"`
	Name     string               `json:"name,omitempty"`
	Servicer FinancialInstitution `json:"servicer"`
}

// FinancialInstitution is the bank servicing an account.
type FinancialInstitution struct {
	BIC  string `json:"bic,omitempty"`
	Name string `json:"name,omitempty"`
}

// TransactionsSummary totals the entries of a report.
type TransactionsSummary struct {
	TotalCreditEntries *NumberAndSum `json:"total_credit_entries,omitempty"`
	TotalDebitEntries  *NumberAndSum `json:"total_debit_entries,omitempty"`
}

type NumberAndSum struct {
	NumberOfEntries int             `json:"number_of_entries"`
	Sum             decimal.Decimal `json:"sum"`
}

// Amount is an amount with its ISO 4217 currency.
type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// DateAndDateTime is the ISO 20022 choice between a date and a date-time.
// DateTime is either RFC 3339 with an offset or a local wall clock time.
type DateAndDateTime struct {
	Date     *civil.Date `json:"date,omitempty"`
	DateTime string      `json:"date_time,omitempty"`
}

// BankTransactionCode is the domain / family / sub-family code of an entry,
// or a proprietary code when the bank uses none of the ISO ones.
type BankTransactionCode struct {
	Domain      string `json:"domain,omitempty"`
	Family      string `json:"family,omitempty"`
	SubFamily   string `json:"sub_family,omitempty"`
	Proprietary string `json:"proprietary,omitempty"`
}

// ReportEntry is one booked entry (Ntry).
type ReportEntry struct {
	EntryReference           string               `json:"entry_reference,omitempty"`
	AccountServicerReference string               `json:"account_servicer_reference,omitempty"`
	Amount                   Amount               `json:"amount"`
	CreditDebitIndicator     string               `json:"credit_debit_indicator"`
	Status                   string               `json:"status,omitempty"`
	BookingDate              *DateAndDateTime     `json:"booking_date,omitempty"`
	ValueDate                *DateAndDateTime     `json:"value_date,omitempty"`
	BankTransactionCode      *BankTransactionCode `json:"bank_transaction_code,omitempty"`
	AmountDetails            *AmountDetails       `json:"amount_details,omitempty"`
	AdditionalInformation    string               `json:"additional_information,omitempty"`
	Details                  []TransactionDetails `json:"details,omitempty"`
}

// AmountDetails carries the amount as instructed by the originator.
type AmountDetails struct {
	InstructedAmount *Amount `json:"instructed_amount,omitempty"`
}

// TransactionDetails is one underlying transaction of an entry (TxDtls).
type TransactionDetails struct {
	References            *References            `json:"references,omitempty"`
	RelatedParties        *RelatedParties        `json:"related_parties,omitempty"`
	RemittanceInformation *RemittanceInformation `json:"remittance_information,omitempty"`
}

type References struct {
	EndToEndID  string `json:"end_to_end_id,omitempty"`
	Proprietary string `json:"proprietary,omitempty"`
}

type RelatedParties struct {
	DebtorAccount   *PartyAccount `json:"debtor_account,omitempty"`
	CreditorAccount *PartyAccount `json:"creditor_account,omitempty"`
}

// PartyAccount is the account of a debtor or creditor.
type PartyAccount struct {
	IBAN string `json:"iban,omitempty"`
	Name string `json:"name,omitempty"`
}

type RemittanceInformation struct {
	Unstructured []string `json:"unstructured,omitempty"`
}
