// Package importing turns bank statements into transactions and transfers.
//
// A run resolves the statement account and the servicing bank, then for
// every entry either recognizes it as already imported or resolves the
// other side through an ordered chain of strategies and writes one
// transaction with one transfer. A run commits as a whole or not at all.
package importing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/storage"
	"github.com/google/uuid"
)

// RunStart describes an import run when it begins.
type RunStart struct {
	UserID     uuid.UUID
	Source     string
	Statements int
	Entries    int
	ArchiveURI string
}

// RunSummary is recorded when a run commits.
type RunSummary struct {
	Statements int
	Entries    int
	Stats
}

// RunRecorder keeps an audit log of import runs.
type RunRecorder interface {
	StartImportRun(ctx context.Context, run RunStart) (string, error)
	MarkImportRunFailed(ctx context.Context, runID string, cause error)
	MarkImportRunSucceeded(ctx context.Context, runID string, summary RunSummary) error
}

// Importer runs statement imports against a store.
type Importer struct {
	store      storage.Store
	strategies []OtherSideStrategy
	recorder   RunRecorder
	now        func() time.Time
}

// Option configures an Importer.
type Option func(*Importer)

// WithStrategies replaces the other-side strategy chain.
func WithStrategies(strategies ...OtherSideStrategy) Option {
	return func(i *Importer) { i.strategies = strategies }
}

// WithRunRecorder records every run. A nil recorder disables recording.
func WithRunRecorder(recorder RunRecorder) Option {
	return func(i *Importer) { i.recorder = recorder }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Importer) { i.now = now }
}

// NewImporter returns an importer using the default strategy chain.
func NewImporter(store storage.Store, opts ...Option) *Importer {
	i := &Importer{
		store:      store,
		strategies: DefaultOtherSideStrategies(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import imports one statement on behalf of user.
func (i *Importer) Import(ctx context.Context, user *domain.User, statement Statement) (*Result, error) {
	results, err := i.ImportAll(ctx, user, []Statement{statement})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// ImportAll imports statements in a single database transaction, returning
// one result per statement. Input is validated before the transaction
// begins; any later failure rolls back every statement.
func (i *Importer) ImportAll(ctx context.Context, user *domain.User, statements []Statement) ([]*Result, error) {
	if user == nil {
		return nil, Invalid("user", "required")
	}
	if len(statements) == 0 {
		return nil, Invalid("statements", "at least one statement is required")
	}
	start := RunStart{UserID: user.ID, Source: statements[0].Source, Statements: len(statements)}
	for n, statement := range statements {
		if err := statement.Validate(); err != nil {
			return nil, fmt.Errorf("ImportAll: statement %d: %w", n, err)
		}
		start.Entries += len(statement.Entries)
		if start.ArchiveURI == "" {
			start.ArchiveURI = statement.ArchiveURI
		}
	}

	log := logger.FromContext(ctx).With().
		Str("user_id", user.ID.String()).
		Str("source", start.Source).
		Logger()

	runID, err := i.startRun(ctx, start)
	if err != nil {
		return nil, err
	}
	if runID != "" {
		log = log.With().Str("import_run_id", runID).Logger()
	}
	ctx = logger.WithContext(ctx, log)

	log.Info().Int("statements", start.Statements).Int("entries", start.Entries).Msg("import started")

	results, err := i.importAll(ctx, user, statements)
	if err != nil {
		log.Error().Err(err).Msg("import rolled back")
		if runID != "" {
			i.recorder.MarkImportRunFailed(ctx, runID, err)
		}
		return nil, err
	}

	summary := RunSummary{Statements: start.Statements, Entries: start.Entries}
	for _, r := range results {
		s := r.Stats()
		summary.AccountsCreated += s.AccountsCreated
		summary.TransactionsCreated += s.TransactionsCreated
		summary.TransfersCreated += s.TransfersCreated
		summary.TransfersExisting += s.TransfersExisting
	}
	log.Info().
		Int("transfers_created", summary.TransfersCreated).
		Int("transfers_existing", summary.TransfersExisting).
		Int("accounts_created", summary.AccountsCreated).
		Msg("import committed")

	if runID != "" {
		if err := i.recorder.MarkImportRunSucceeded(ctx, runID, summary); err != nil {
			log.Error().Err(err).Msg("failed to mark import run succeeded")
		}
	}
	return results, nil
}

func (i *Importer) startRun(ctx context.Context, start RunStart) (string, error) {
	if i.recorder == nil {
		return "", nil
	}
	runID, err := i.recorder.StartImportRun(ctx, start)
	if err != nil {
		return "", fmt.Errorf("ImportAll: starting import run: %w", err)
	}
	return runID, nil
}

func (i *Importer) importAll(ctx context.Context, user *domain.User, statements []Statement) (results []*Result, err error) {
	tx, err := i.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ImportAll: beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("ImportAll: rolling back: %w", rbErr))
			}
		}
	}()

	now := i.now()
	log := logger.FromContext(ctx)
	for n, statement := range statements {
		r := newResolver(tx, user, now, log.With().Str("iban", statement.Account.IBAN).Logger())
		if err := i.importStatement(ctx, r, statement); err != nil {
			return nil, fmt.Errorf("ImportAll: statement %d: %w", n, err)
		}
		results = append(results, r.result.Result())
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ImportAll: committing: %w", err)
	}
	return results, nil
}

func (i *Importer) importStatement(ctx context.Context, r *resolver, statement Statement) error {
	currency, err := r.currency(ctx, statement.Account.CurrencyCode)
	if err != nil {
		return err
	}

	iban := Evidence{IBAN: statement.Account.IBAN}.trimmed().IBAN
	userAccount, err := r.resolveAccount(ctx, Evidence{IBAN: iban}, currency, newAccount{
		CounterpartyID: r.user.CounterpartyID,
		AccountNumber:  iban,
	})
	if err != nil {
		return fmt.Errorf("importStatement: user account: %w", err)
	}
	r.result.SetUserAccount(userAccount.Account, userAccount.IsCreated())

	bank, err := r.resolveAccount(ctx, Evidence{BIC: statement.Bank.BIC, Name: statement.Bank.Name}, currency, newAccount{})
	if err != nil {
		return fmt.Errorf("importStatement: bank account: %w", err)
	}
	r.log.Debug().Str("account_id", bank.Account.ID.String()).Msg("matched bank account")

	for n, entry := range statement.Entries {
		if err := i.importEntry(ctx, r, bank, entry); err != nil {
			return fmt.Errorf("importStatement: entry %d: %w", n, err)
		}
	}
	return nil
}

func (i *Importer) importEntry(ctx context.Context, r *resolver, bank Resolution, entry Entry) error {
	importedID, err := r.findImported(ctx, entry)
	if err != nil {
		return err
	}
	if importedID != uuid.Nil {
		return r.addImported(ctx, importedID)
	}

	currency, err := r.currency(ctx, entry.CurrencyCode)
	if err != nil {
		return err
	}
	otherCurrency := currency
	if entry.HasOtherAmount() {
		if otherCurrency, err = r.currency(ctx, entry.OtherCurrencyCode); err != nil {
			return err
		}
	}

	userAccount := r.result.userAccount.Account
	statementSide, err := r.inCurrency(ctx, userAccount, currency)
	if err != nil {
		return err
	}
	statementSideID := statementSide.ID

	other, strategy, err := i.resolveOtherSide(ctx, entryLookup{r: r, currency: otherCurrency, bank: bank}, entry)
	if err != nil {
		return err
	}
	otherSide, err := r.inCurrency(ctx, other.Account, otherCurrency)
	if err != nil {
		return err
	}

	transaction := buildTransaction(entry, r.user.ID, r.now)
	if err := r.tx.AddTransaction(ctx, transaction); err != nil {
		return fmt.Errorf("importEntry: %w", err)
	}
	transfer := buildTransfer(entry, transaction, statementSideID, otherSide.ID)
	if err := r.tx.AddTransfer(ctx, transfer); err != nil {
		return fmt.Errorf("importEntry: %w", err)
	}

	r.result.AddTransaction(transaction, true)
	r.result.AddTransfer(transfer, true)
	r.log.Debug().
		Str("transfer_id", transfer.ID.String()).
		Str("bank_reference", transfer.BankReference).
		Str("strategy", strategy).
		Str("other_account_id", other.Account.ID.String()).
		Msg("imported entry")
	return nil
}

// resolveOtherSide runs the strategy chain, first match wins.
func (i *Importer) resolveOtherSide(ctx context.Context, accounts AccountLookup, entry Entry) (Resolution, string, error) {
	for _, strategy := range i.strategies {
		res, ok, err := strategy.Resolve(ctx, accounts, entry)
		if err != nil {
			return Resolution{}, "", fmt.Errorf("resolveOtherSide: %s: %w", strategy.Name(), err)
		}
		if ok {
			return res, strategy.Name(), nil
		}
	}
	return Resolution{}, "", fmt.Errorf("resolveOtherSide: no strategy matched: %w", ErrMissingIdentification)
}
