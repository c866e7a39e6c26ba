package importing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ResolutionKind tags how an account was obtained.
type ResolutionKind int

const (
	KindFound ResolutionKind = iota
	KindCreated
)

func (k ResolutionKind) String() string {
	if k == KindCreated {
		return "created"
	}
	return "found"
}

// Resolution is an account together with how it was obtained.
type Resolution struct {
	Account *domain.Account
	Kind    ResolutionKind
}

// Found tags an account that already existed.
func Found(account *domain.Account) Resolution {
	return Resolution{Account: account, Kind: KindFound}
}

// Created tags an account the run inserted.
func Created(account *domain.Account) Resolution {
	return Resolution{Account: account, Kind: KindCreated}
}

// IsCreated reports whether the run inserted the account.
func (r Resolution) IsCreated() bool {
	return r.Kind == KindCreated
}

// Evidence is what a feed tells about an account. Lookups try IBAN, then
// BIC, then the normalized name.
type Evidence struct {
	IBAN string
	BIC  string
	Name string
}

func (e Evidence) trimmed() Evidence {
	return Evidence{
		IBAN: strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(e.IBAN), " ", "")),
		BIC:  strings.ToUpper(strings.TrimSpace(e.BIC)),
		Name: strings.TrimSpace(e.Name),
	}
}

// Empty reports whether e identifies nothing.
func (e Evidence) Empty() bool {
	t := e.trimmed()
	return t.IBAN == "" && t.BIC == "" && t.Name == ""
}

// strongest is the identifier a new account is named after.
func (e Evidence) strongest() string {
	switch {
	case e.IBAN != "":
		return e.IBAN
	case e.BIC != "":
		return e.BIC
	default:
		return e.Name
	}
}

// cacheKeys are the per-run keys under which an account is remembered.
func (e Evidence) cacheKeys() []string {
	var keys []string
	if e.IBAN != "" {
		keys = append(keys, "iban:"+e.IBAN)
	}
	if e.BIC != "" {
		keys = append(keys, "bic:"+e.BIC)
	}
	if e.Name != "" {
		keys = append(keys, "name:"+domain.NormalizeName(e.Name))
	}
	return keys
}

// newAccount describes how to create an account nobody matched.
type newAccount struct {
	// CounterpartyID owns the account; uuid.Nil creates a new counterparty.
	CounterpartyID uuid.UUID
	AccountNumber  string
}

// resolver resolves currencies and accounts for one run against its
// transaction. Accounts are cached by identity so a run never creates the
// same logical account twice and always sees its own lazily added
// currencies.
type resolver struct {
	tx     storage.Tx
	user   *domain.User
	now    time.Time
	result *ResultBuilder
	log    zerolog.Logger

	currencies map[string]*domain.Currency
	accounts   map[string]*domain.Account
}

func newResolver(tx storage.Tx, user *domain.User, now time.Time, log zerolog.Logger) *resolver {
	return &resolver{
		tx:         tx,
		user:       user,
		now:        now,
		result:     NewResultBuilder(),
		log:        log,
		currencies: make(map[string]*domain.Currency),
		accounts:   make(map[string]*domain.Account),
	}
}

// currency resolves an ISO 4217 alphabetic code.
func (r *resolver) currency(ctx context.Context, code string) (*domain.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if c, ok := r.currencies[code]; ok {
		return c, nil
	}

	c, err := r.tx.FindCurrencyByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("currency: looking up %q: %w", code, err)
	}
	if c == nil {
		return nil, fmt.Errorf("currency %q: %w", code, ErrCurrencyNotFound)
	}

	r.currencies[code] = c
	return c, nil
}

// findAccount looks an account up by IBAN, BIC and normalized name, in that
// order, consulting the run cache before storage at each step.
func (r *resolver) findAccount(ctx context.Context, ev Evidence) (*domain.Account, error) {
	type lookup struct {
		key   string
		value string
		find  func(context.Context, uuid.UUID, string) (*domain.Account, error)
	}

	var lookups []lookup
	if ev.IBAN != "" {
		lookups = append(lookups, lookup{"iban", ev.IBAN, r.tx.FindAccountByIBAN})
	}
	if ev.BIC != "" {
		lookups = append(lookups, lookup{"bic", ev.BIC, r.tx.FindAccountByBIC})
	}
	if ev.Name != "" {
		lookups = append(lookups, lookup{"name", domain.NormalizeName(ev.Name), r.tx.FindAccountByNormalizedName})
	}

	for _, l := range lookups {
		if account, ok := r.accounts[l.key+":"+l.value]; ok {
			return account, nil
		}

		r.log.Debug().Str(l.key, l.value).Msg("searching account by " + l.key)
		account, err := l.find(ctx, r.user.ID, l.value)
		if err != nil {
			return nil, fmt.Errorf("findAccount: by %s: %w", l.key, err)
		}
		if account != nil {
			return account, nil
		}
	}
	return nil, nil
}

// resolveAccount finds the account ev identifies or creates one, provisions
// currency on it and records it in the result.
func (r *resolver) resolveAccount(ctx context.Context, ev Evidence, currency *domain.Currency, params newAccount) (Resolution, error) {
	ev = ev.trimmed()
	if ev.IBAN == "" && ev.BIC == "" && ev.Name == "" {
		return Resolution{}, fmt.Errorf("resolveAccount: %w", ErrMissingIdentification)
	}

	account, err := r.findAccount(ctx, ev)
	if err != nil {
		return Resolution{}, err
	}

	res := Found(account)
	if account == nil {
		if account, err = r.createAccount(ctx, ev, currency, params); err != nil {
			return Resolution{}, err
		}
		res = Created(account)
	}
	r.remember(account, ev)

	if _, err := r.inCurrency(ctx, account, currency); err != nil {
		return Resolution{}, err
	}

	r.result.AddAccount(account, res.IsCreated())
	r.log.Debug().
		Str("account_id", account.ID.String()).
		Str("account", account.Name).
		Stringer("resolution", res.Kind).
		Msg("resolved account")
	return res, nil
}

func (r *resolver) createAccount(ctx context.Context, ev Evidence, currency *domain.Currency, params newAccount) (*domain.Account, error) {
	name := ev.strongest()

	counterpartyID := params.CounterpartyID
	if counterpartyID == uuid.Nil {
		counterpartyName := ev.Name
		if counterpartyName == "" {
			counterpartyName = name
		}
		counterparty := &domain.Counterparty{
			Ownership:      domain.Stamped(r.user.ID, r.now),
			ID:             uuid.New(),
			Name:           counterpartyName,
			NormalizedName: domain.NormalizeName(counterpartyName),
		}
		if err := r.tx.AddCounterparty(ctx, counterparty); err != nil {
			return nil, fmt.Errorf("createAccount: adding counterparty: %w", err)
		}
		counterpartyID = counterparty.ID
	}

	id := uuid.New()
	account := &domain.Account{
		Ownership:           domain.Stamped(r.user.ID, r.now),
		ID:                  id,
		Name:                name,
		NormalizedName:      domain.NormalizeName(name),
		IBAN:                ev.IBAN,
		BIC:                 ev.BIC,
		AccountNumber:       params.AccountNumber,
		CounterpartyID:      counterpartyID,
		PreferredCurrencyID: currency.ID,
		Currencies: []domain.AccountInCurrency{{
			Ownership:  domain.Stamped(r.user.ID, r.now),
			ID:         uuid.New(),
			AccountID:  id,
			CurrencyID: currency.ID,
		}},
	}
	if err := r.tx.AddAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("createAccount: %q: %w", name, err)
	}

	r.log.Info().Str("account_id", id.String()).Str("account", name).Msg("created account")
	return account, nil
}

// inCurrency returns the account's ledger for currency, adding it when the
// account does not hold that currency yet.
func (r *resolver) inCurrency(ctx context.Context, account *domain.Account, currency *domain.Currency) (*domain.AccountInCurrency, error) {
	if aic := account.InCurrency(currency.ID); aic != nil {
		return aic, nil
	}

	aic := domain.AccountInCurrency{
		Ownership:  domain.Stamped(r.user.ID, r.now),
		ID:         uuid.New(),
		AccountID:  account.ID,
		CurrencyID: currency.ID,
	}
	if err := r.tx.AddAccountInCurrency(ctx, &aic); err != nil {
		return nil, fmt.Errorf("inCurrency: %s on %q: %w", currency.AlphabeticCode, account.Name, err)
	}
	account.Currencies = append(account.Currencies, aic)

	r.log.Debug().
		Str("account_id", account.ID.String()).
		Str("currency", currency.AlphabeticCode).
		Msg("added account currency")
	return &account.Currencies[len(account.Currencies)-1], nil
}

// remember caches account under the evidence it was resolved with and
// under its own identifiers.
func (r *resolver) remember(account *domain.Account, ev Evidence) {
	own := Evidence{IBAN: account.IBAN, BIC: account.BIC, Name: account.Name}.trimmed()
	for _, key := range append(ev.cacheKeys(), own.cacheKeys()...) {
		if _, ok := r.accounts[key]; !ok {
			r.accounts[key] = account
		}
	}
}

// accountOf loads the account behind an AccountInCurrency id.
func (r *resolver) accountOf(ctx context.Context, inCurrencyID uuid.UUID) (*domain.Account, error) {
	aic, err := r.tx.GetAccountInCurrency(ctx, r.user.ID, inCurrencyID)
	if err != nil {
		return nil, fmt.Errorf("accountOf: %w", err)
	}
	account, err := r.tx.GetAccount(ctx, r.user.ID, aic.AccountID)
	if err != nil {
		return nil, fmt.Errorf("accountOf: %w", err)
	}
	return account, nil
}
