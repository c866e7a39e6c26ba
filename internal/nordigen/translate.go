package nordigen

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/statement-import/internal/importing"
	"github.com/dvloznov/statement-import/internal/txcode"
)

// Source names the feed on imported statements.
const Source = "nordigen"

// additionalInformation maps the free text some banks put in
// additionalInformation to the direction of the movement.
var additionalInformation = map[string]importing.CreditDebit{
	"PURCHASE":                    importing.Debit,
	"CARD FEE":                    importing.Debit,
	"BALANCE ENQUIRY FEE":         importing.Debit,
	"OUTWARD TRANSFER":            importing.Debit,
	"OUTWARD INSTANT PAYMENT":     importing.Debit,
	"INTEREST PAYMENT":            importing.Debit,
	"REIMBURSEMENT OF COMMISSION": importing.Debit,
	"PRINCIPAL REPAYMENT":         importing.Debit,
	"CASH WITHDRAWAL":             importing.Debit,
	"LOAN DRAWDOWN":               importing.Debit,
	"INWARD TRANSFER":             importing.Credit,
	"INWARD CLEARING PAYMENT":     importing.Credit,
	"INWARD INSTANT PAYMENT":      importing.Credit,
	"RETURN OF PURCHASE":          importing.Credit,
	"CASH DEPOSIT":                importing.Credit,
}

// bankCharges are additionalInformation values naming the bank's own fees
// and interest; such entries are booked against the servicing bank.
var bankCharges = map[string]bool{
	"CARD FEE":                    true,
	"BALANCE ENQUIRY FEE":         true,
	"INTEREST PAYMENT":            true,
	"REIMBURSEMENT OF COMMISSION": true,
}

// creditDebit decides the direction of a booked transaction from, in order,
// its additional information, a payments domain code and the amount sign.
func creditDebit(t BookedTransaction, code txcode.Code) (importing.CreditDebit, error) {
	info := strings.ToUpper(strings.TrimSpace(t.AdditionalInformation))
	if cd, ok := additionalInformation[info]; ok {
		return cd, nil
	}
	switch {
	case strings.HasPrefix(info, "INWARD"):
		return importing.Credit, nil
	case strings.HasPrefix(info, "OUTWARD"):
		return importing.Debit, nil
	}

	if code.Domain == txcode.Payments {
		return importing.Debit, nil
	}

	switch t.TransactionAmount.Amount.Sign() {
	case -1:
		return importing.Debit, nil
	case 1:
		return importing.Credit, nil
	default:
		return "", importing.Invalid("transaction_amount", "cannot tell credit from debit for a zero amount")
	}
}

// Translate builds the statement of one linked account.
func Translate(account Account, details AccountDetails, transactions AccountTransactions, institution Institution, loc *time.Location) (importing.Statement, error) {
	iban := account.IBAN
	if iban == "" {
		iban = details.Account.IBAN
	}

	statement := importing.Statement{
		Source:  Source,
		Account: importing.UserAccount{IBAN: iban, CurrencyCode: details.Account.Currency},
		Bank:    importing.Bank{Name: institution.Name, BIC: institution.BIC},
		Entries: make([]importing.Entry, 0, len(transactions.Transactions.Booked)),
	}

	for i, booked := range transactions.Transactions.Booked {
		entry, err := translateBooked(booked, loc)
		if err != nil {
			return importing.Statement{}, fmt.Errorf("Translate: account %s: transaction %d (%s): %w", account.ID, i, booked.TransactionID, err)
		}
		statement.Entries = append(statement.Entries, entry)
	}
	return statement, nil
}

func translateBooked(t BookedTransaction, loc *time.Location) (importing.Entry, error) {
	if t.BookingDate == nil {
		return importing.Entry{}, importing.Invalid("booking_date", "required")
	}

	code, err := txcode.Split(t.BankTransactionCode)
	if err != nil {
		return importing.Entry{}, importing.Invalid("bank_transaction_code", "%v", err)
	}
	cd, err := creditDebit(t, code)
	if err != nil {
		return importing.Entry{}, err
	}

	bookedAt := importing.StartOfDay(*t.BookingDate, loc)
	entry := importing.Entry{
		BankReference:     t.TransactionID,
		ExternalReference: t.EntryReference,
		Amount:            t.TransactionAmount.Amount.Abs(),
		CurrencyCode:      t.TransactionAmount.Currency,
		CreditDebit:       cd,
		BookedAt:          &bookedAt,
		Description:       t.description(),
		Code:              code,
		BankMovement:      bankCharges[strings.ToUpper(strings.TrimSpace(t.AdditionalInformation))],
	}
	if t.ValueDate != nil {
		valuedAt := importing.StartOfDay(*t.ValueDate, loc)
		entry.ValuedAt = &valuedAt
	}

	name, iban := t.otherParty(cd)
	entry.OtherAccountName, entry.OtherAccountIBAN = name, iban
	return entry, nil
}

func (t BookedTransaction) description() string {
	if t.RemittanceInformationUnstructured != "" {
		return t.RemittanceInformationUnstructured
	}
	return strings.Join(t.RemittanceInformationUnstructuredArray, "")
}

// otherParty is the debtor of a credit or the creditor of a debit, falling
// back to whichever side the bank reported.
func (t BookedTransaction) otherParty(cd importing.CreditDebit) (name, iban string) {
	type party struct{ name, iban string }
	creditor := party{name: t.CreditorName}
	if t.CreditorAccount != nil {
		creditor.iban = t.CreditorAccount.IBAN
	}
	debtor := party{name: t.DebtorName}
	if t.DebtorAccount != nil {
		debtor.iban = t.DebtorAccount.IBAN
	}

	preferred, fallback := creditor, debtor
	if cd == importing.Credit {
		preferred, fallback = debtor, creditor
	}
	for _, p := range []party{preferred, fallback} {
		if strings.TrimSpace(p.name) != "" || strings.TrimSpace(p.iban) != "" {
			return p.name, p.iban
		}
	}
	return "", ""
}
