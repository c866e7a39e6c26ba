package iso20022

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/importing"
	"github.com/dvloznov/statement-import/internal/txcode"
)

// Source names the feed on imported statements.
const Source = "iso20022"

// placeholder end-to-end id banks report when there is none
const notProvided = "NOTPROVIDED"

// Translate turns a report into an importable statement, interpreting local
// dates and times in loc.
func Translate(report AccountReport, loc *time.Location) (importing.Statement, error) {
	statement := importing.Statement{
		Source: Source,
		Account: importing.UserAccount{
			IBAN:         report.Account.IBAN,
			CurrencyCode: report.Account.Currency,
		},
		Bank: importing.Bank{
			Name: report.Account.Servicer.Name,
			BIC:  report.Account.Servicer.BIC,
		},
		Entries: make([]importing.Entry, 0, len(report.Entries)),
	}

	for i, reportEntry := range report.Entries {
		entry, err := translateEntry(reportEntry, loc)
		if err != nil {
			return importing.Statement{}, fmt.Errorf("Translate: entry %d (%s): %w", i, reportEntry.AccountServicerReference, err)
		}
		statement.Entries = append(statement.Entries, entry)
	}
	return statement, nil
}

func translateEntry(e ReportEntry, loc *time.Location) (importing.Entry, error) {
	creditDebit := importing.CreditDebit(strings.ToUpper(strings.TrimSpace(e.CreditDebitIndicator)))
	if !creditDebit.Valid() {
		return importing.Entry{}, importing.Invalid("credit_debit_indicator", "unknown indicator %q", e.CreditDebitIndicator)
	}
	if e.BookingDate == nil {
		return importing.Entry{}, importing.Invalid("booking_date", "required")
	}

	bookedAt, err := instant(*e.BookingDate, loc)
	if err != nil {
		return importing.Entry{}, importing.Invalid("booking_date", "%v", err)
	}
	entry := importing.Entry{
		BankReference: e.AccountServicerReference,
		Amount:        e.Amount.Value,
		CurrencyCode:  e.Amount.Currency,
		CreditDebit:   creditDebit,
		BookedAt:      &bookedAt,
		Description:   e.AdditionalInformation,
		Code:          transactionCode(e.BankTransactionCode),
	}
	if e.ValueDate != nil {
		valuedAt, err := instant(*e.ValueDate, loc)
		if err != nil {
			return importing.Entry{}, importing.Invalid("value_date", "%v", err)
		}
		entry.ValuedAt = &valuedAt
	}

	if instructed := e.instructedAmount(); instructed != nil && instructed.differsFrom(e.Amount) {
		entry.OtherAmount = instructed.Value
		entry.OtherCurrencyCode = instructed.Currency
	}

	if len(e.Details) > 0 {
		details := e.Details[0]
		if refs := details.References; refs != nil {
			entry.ExternalReference = refs.Proprietary
			if entry.ExternalReference == "" && !strings.EqualFold(refs.EndToEndID, notProvided) {
				entry.ExternalReference = refs.EndToEndID
			}
		}
		if party := details.otherParty(creditDebit); party != nil {
			entry.OtherAccountIBAN = party.IBAN
			entry.OtherAccountName = party.Name
		}
		if rmt := details.RemittanceInformation; rmt != nil && len(rmt.Unstructured) > 0 {
			entry.Description = strings.Join(rmt.Unstructured, "")
		}
	}

	hash, err := ImportHash(e)
	if err != nil {
		return importing.Entry{}, err
	}
	entry.ImportHash = hash
	return entry, nil
}

// differsFrom reports whether a and settled are not the same money.
func (a Amount) differsFrom(settled Amount) bool {
	return !strings.EqualFold(strings.TrimSpace(a.Currency), strings.TrimSpace(settled.Currency)) || !a.Value.Equal(settled.Value)
}

func (e ReportEntry) instructedAmount() *Amount {
	if e.AmountDetails == nil || e.AmountDetails.InstructedAmount == nil {
		return nil
	}
	return e.AmountDetails.InstructedAmount
}

// otherParty is the debtor of a credit or the creditor of a debit, falling
// back to whichever side the bank reported.
func (d TransactionDetails) otherParty(creditDebit importing.CreditDebit) *PartyAccount {
	if d.RelatedParties == nil {
		return nil
	}
	preferred, fallback := d.RelatedParties.CreditorAccount, d.RelatedParties.DebtorAccount
	if creditDebit == importing.Credit {
		preferred, fallback = fallback, preferred
	}
	for _, party := range []*PartyAccount{preferred, fallback} {
		if party != nil && (strings.TrimSpace(party.IBAN) != "" || strings.TrimSpace(party.Name) != "") {
			return party
		}
	}
	return nil
}

// transactionCode maps the ISO code; a proprietary-only code is treated as
// the extended domain.
func transactionCode(c *BankTransactionCode) txcode.Code {
	switch {
	case c == nil:
		return txcode.Code{}
	case strings.TrimSpace(c.Domain) != "":
		return txcode.New(c.Domain, c.Family, c.SubFamily)
	case strings.TrimSpace(c.Proprietary) != "":
		return txcode.Code{Domain: txcode.Extended}
	default:
		return txcode.Code{}
	}
}

// instant resolves a date or date-time choice. Dates mean the start of the
// day in loc.
func instant(choice DateAndDateTime, loc *time.Location) (time.Time, error) {
	if s := strings.TrimSpace(choice.DateTime); s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, nil
		}
		dt, err := civil.ParseDateTime(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing date-time %s: %w", strconv.Quote(s), err)
		}
		return importing.InLocation(dt, loc)
	}
	if choice.Date != nil {
		return importing.StartOfDay(*choice.Date, loc), nil
	}
	return time.Time{}, fmt.Errorf("neither date nor date-time given")
}

// ImportHash fingerprints a report entry by its canonical JSON encoding.
func ImportHash(e ReportEntry) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("ImportHash: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
