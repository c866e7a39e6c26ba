package importing

import (
	"context"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/txcode"
)

// UnidentifiedAccountName names the reserved account used when nothing
// identifies the other side of an entry.
const UnidentifiedAccountName = "Unidentified"

// AccountLookup is what an OtherSideStrategy may use to obtain an account.
// Accounts it creates are provisioned in the currency of the other side.
type AccountLookup interface {
	// FindOrCreate resolves ev, creating an account and a counterparty for
	// it when nothing matches.
	FindOrCreate(ctx context.Context, ev Evidence) (Resolution, error)

	// BankAccount is the servicing bank's account of the statement.
	BankAccount() Resolution
}

// OtherSideStrategy is one heuristic for the account on the other side of an
// entry. Resolve reports ok=false when the heuristic does not apply.
type OtherSideStrategy interface {
	Name() string
	Resolve(ctx context.Context, accounts AccountLookup, entry Entry) (res Resolution, ok bool, err error)
}

// DefaultOtherSideStrategies returns the chain used by NewImporter, in
// priority order.
func DefaultOtherSideStrategies() []OtherSideStrategy {
	return []OtherSideStrategy{
		RelatedPartyStrategy{},
		BankMovementStrategy{},
		UnidentifiedStrategy{},
	}
}

// RelatedPartyStrategy uses the counterparty IBAN or name the entry carries.
type RelatedPartyStrategy struct{}

func (RelatedPartyStrategy) Name() string { return "related_party" }

func (RelatedPartyStrategy) Resolve(ctx context.Context, accounts AccountLookup, entry Entry) (Resolution, bool, error) {
	if !entry.HasRelatedParty() {
		return Resolution{}, false, nil
	}
	res, err := accounts.FindOrCreate(ctx, Evidence{IBAN: entry.OtherAccountIBAN, Name: entry.OtherAccountName})
	if err != nil {
		return Resolution{}, false, err
	}
	return res, true, nil
}

// BankMovementStrategy books fees, interest and similar bank-internal
// movements against the servicing bank.
type BankMovementStrategy struct{}

func (BankMovementStrategy) Name() string { return "bank_movement" }

func (BankMovementStrategy) Resolve(ctx context.Context, accounts AccountLookup, entry Entry) (Resolution, bool, error) {
	if !entry.BankMovement && !txcode.IsBankMovement(entry.Code) {
		return Resolution{}, false, nil
	}
	return accounts.BankAccount(), true, nil
}

// UnidentifiedStrategy always applies and books against the reserved
// Unidentified account.
type UnidentifiedStrategy struct{}

func (UnidentifiedStrategy) Name() string { return "unidentified" }

func (UnidentifiedStrategy) Resolve(ctx context.Context, accounts AccountLookup, entry Entry) (Resolution, bool, error) {
	log := logger.FromContext(ctx)
	log.Debug().Str("bank_reference", entry.BankReference).Msg("using unidentified account")
	res, err := accounts.FindOrCreate(ctx, Evidence{Name: UnidentifiedAccountName})
	if err != nil {
		return Resolution{}, false, err
	}
	return res, true, nil
}

// entryLookup binds a resolver to the currency of one entry's other side.
type entryLookup struct {
	r        *resolver
	currency *domain.Currency
	bank     Resolution
}

func (l entryLookup) FindOrCreate(ctx context.Context, ev Evidence) (Resolution, error) {
	return l.r.resolveAccount(ctx, ev, l.currency, newAccount{})
}

func (l entryLookup) BankAccount() Resolution {
	return l.bank
}
