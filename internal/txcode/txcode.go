// Package txcode classifies ISO 20022 bank transaction codes
// (domain / family / sub-family) reported alongside statement entries.
package txcode

import (
	"fmt"
	"strings"
)

// Domain is the top level of a bank transaction code.
type Domain string

const (
	Payments          Domain = "PMNT"
	CashManagement    Domain = "CAMT"
	Derivatives       Domain = "DERV"
	LoansAndDeposits  Domain = "LDAS"
	ForeignExchange   Domain = "FORX"
	PreciousMetal     Domain = "PMET"
	Commodities       Domain = "CMDT"
	TradeServices     Domain = "TRAD"
	Securities        Domain = "SECU"
	AccountManagement Domain = "ACMT"
	Extended          Domain = "XTND"
)

// Family is the second level of a bank transaction code.
type Family string

const (
	FamilyNotAvailable             Family = "NTAV"
	FamilyOther                    Family = "OTHR"
	CreditOperation                Family = "MCOP"
	DebitOperation                 Family = "MDOP"
	ReceivedCreditTransfers        Family = "RCDT"
	IssuedCreditTransfers          Family = "ICDT"
	ReceivedCashConcentration      Family = "RCCN"
	IssuedCashConcentration        Family = "ICCN"
	ReceivedDirectDebits           Family = "RDDT"
	IssuedDirectDebits             Family = "IDDT"
	ReceivedCheques                Family = "RCHQ"
	IssuedCheques                  Family = "ICHQ"
	CustomerCardTransactions       Family = "CCRD"
	MerchantCardTransactions       Family = "MCRD"
	LockboxTransactions            Family = "LBOX"
	CounterTransactions            Family = "CNTR"
	Drafts                         Family = "DRFT"
	ReceivedRealTimeCreditTransfer Family = "RRCT"
	IssuedRealTimeCreditTransfer   Family = "IRCT"
	FixedTermLoans                 Family = "FTLN"
	NoticeLoans                    Family = "NTLN"
	FixedTermDeposits              Family = "FTDP"
	NoticeDeposits                 Family = "NTDP"
	MortgageLoans                  Family = "MGLN"
	ConsumerLoans                  Family = "CSLN"
	Syndications                   Family = "SYDN"
)

// SubFamily is the third level of a bank transaction code.
type SubFamily string

const (
	SubFamilyNotAvailable SubFamily = "NTAV"
	SubFamilyOther        SubFamily = "OTHR"
	Fees                  SubFamily = "FEES"
	Charges               SubFamily = "CHRG"
	Commission            SubFamily = "COMM"
	Interest              SubFamily = "INTR"
	Taxes                 SubFamily = "TAXE"
	CardFee               SubFamily = "CFEE"
	Adjustments           SubFamily = "ADJT"
)

var domains = map[Domain]struct{}{
	Payments: {}, CashManagement: {}, Derivatives: {}, LoansAndDeposits: {},
	ForeignExchange: {}, PreciousMetal: {}, Commodities: {}, TradeServices: {},
	Securities: {}, AccountManagement: {}, Extended: {},
}

// bankSubFamilies are movements where the servicing bank itself is the
// other party.
var bankSubFamilies = map[SubFamily]struct{}{
	Fees: {}, Charges: {}, Commission: {}, Interest: {}, Taxes: {}, CardFee: {},
}

// Code is a parsed bank transaction code. Any level may be empty.
type Code struct {
	Domain    Domain    `json:"domain,omitempty"`
	Family    Family    `json:"family,omitempty"`
	SubFamily SubFamily `json:"sub_family,omitempty"`
}

// New builds a Code from raw, case-insensitive level codes.
func New(domain, family, subFamily string) Code {
	return Code{
		Domain:    Domain(normalize(domain)),
		Family:    Family(normalize(family)),
		SubFamily: SubFamily(normalize(subFamily)),
	}
}

// Split parses the dash separated "DOMAIN-FAMILY-SUBFAMILY" form used by
// account aggregators. A blank string yields the zero Code.
func Split(s string) (Code, error) {
	if strings.TrimSpace(s) == "" {
		return Code{}, nil
	}

	parts := strings.Split(s, "-")
	switch len(parts) {
	case 1:
		return New(parts[0], "", ""), nil
	case 2:
		return New(parts[0], parts[1], ""), nil
	case 3:
		return New(parts[0], parts[1], parts[2]), nil
	default:
		return Code{}, fmt.Errorf("Split: unexpected bank transaction code structure %q", s)
	}
}

// IsZero reports whether no domain was given.
func (c Code) IsZero() bool {
	return c.Domain == ""
}

// Known reports whether the domain is part of the ISO 20022 code set.
func (c Code) Known() bool {
	_, ok := domains[c.Domain]
	return ok
}

func (c Code) String() string {
	parts := []string{string(c.Domain)}
	if c.Family != "" {
		parts = append(parts, string(c.Family))
	}
	if c.SubFamily != "" {
		parts = append(parts, string(c.SubFamily))
	}
	return strings.Join(parts, "-")
}

// IsBankMovement reports whether the code describes a movement whose other
// side is the servicing bank: loans and deposits, interest on account
// management credit operations, payment fees and charges, generic payment
// credit operations without detail, and extended/proprietary codes.
// Unknown domains are not bank movements.
func IsBankMovement(c Code) bool {
	if !c.Known() {
		return false
	}

	family := c.Family
	if family == "" {
		family = FamilyOther
	}
	subFamily := c.SubFamily
	if subFamily == "" {
		subFamily = SubFamilyNotAvailable
	}

	switch c.Domain {
	case LoansAndDeposits, Extended:
		return true
	case AccountManagement:
		return family == CreditOperation && subFamily == Interest
	case Payments:
		if _, ok := bankSubFamilies[subFamily]; ok {
			return true
		}
		return family == CreditOperation && subFamily == SubFamilyNotAvailable
	default:
		return false
	}
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
