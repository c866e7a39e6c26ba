package nordigen

import (
	"context"
	"fmt"
	"sort"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/importing"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// AggregatorClient is the part of the aggregator API the service uses.
type AggregatorClient interface {
	ListRequisitions(ctx context.Context) ([]Requisition, error)
	CreateRequisition(ctx context.Context, req RequisitionRequest) (*Requisition, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountDetails(ctx context.Context, id string) (*AccountDetails, error)
	GetAccountTransactions(ctx context.Context, id string) (*AccountTransactions, error)
	GetInstitution(ctx context.Context, id string) (*Institution, error)
	ListInstitutions(ctx context.Context, country string) ([]Institution, error)
}

// Importer imports several statements at once.
type Importer interface {
	ImportAll(ctx context.Context, user *domain.User, statements []importing.Statement) ([]*importing.Result, error)
}

// Outcome is either a consent link to visit or the import results, one per
// linked account.
type Outcome struct {
	RedirectURL string
	Results     []*importing.Result
}

// Service imports linked accounts.
type Service struct {
	client      AggregatorClient
	importer    Importer
	redirectURL string
	concurrency int
}

// NewService returns a service. redirectURL is where the aggregator sends
// the user after consent; concurrency bounds parallel account fetches.
func NewService(client AggregatorClient, importer Importer, redirectURL string, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{client: client, importer: importer, redirectURL: redirectURL, concurrency: concurrency}
}

// Institutions lists the institution ids available in country.
func (s *Service) Institutions(ctx context.Context, country string) ([]string, error) {
	if len(country) != 2 {
		return nil, importing.Invalid("country", "expected an ISO 3166 alpha-2 code, got %q", country)
	}
	institutions, err := s.client.ListInstitutions(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("Institutions: %w", err)
	}
	ids := make([]string, 0, len(institutions))
	for _, institution := range institutions {
		ids = append(ids, institution.ID)
	}
	return ids, nil
}

// Import imports every account linked for institutionID, or starts the
// consent flow when nothing is linked yet.
func (s *Service) Import(ctx context.Context, user *domain.User, institutionID, timeZone string) (*Outcome, error) {
	loc, err := importing.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}
	if institutionID == "" {
		return nil, fmt.Errorf("Import: %w", importing.Invalid("institution", "required"))
	}

	log := logger.FromContext(ctx).With().Str("institution_id", institutionID).Logger()

	log.Debug().Msg("getting requisition")
	requisition, err := s.linkedRequisition(ctx, institutionID)
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}
	if requisition == nil {
		log.Info().Msg("creating requisition")
		created, err := s.client.CreateRequisition(ctx, RequisitionRequest{
			Redirect:      s.redirectURL,
			InstitutionID: institutionID,
			Reference:     uuid.NewString(),
		})
		if err != nil {
			return nil, fmt.Errorf("Import: %w", err)
		}
		return &Outcome{RedirectURL: created.Link}, nil
	}

	feeds, err := s.fetch(ctx, requisition.Accounts)
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}
	institutions, err := s.institutions(ctx, feeds)
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}

	statements := make([]importing.Statement, 0, len(feeds))
	for _, f := range feeds {
		statement, err := Translate(*f.account, *f.details, *f.transactions, *institutions[f.account.InstitutionID], loc)
		if err != nil {
			return nil, fmt.Errorf("Import: %w", err)
		}
		log.Debug().
			Str("account_id", f.account.ID).
			Int("booked", len(statement.Entries)).
			Msg("translated account transactions")
		statements = append(statements, statement)
	}
	if len(statements) == 0 {
		return &Outcome{Results: []*importing.Result{}}, nil
	}

	results, err := s.importer.ImportAll(ctx, user, statements)
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}
	return &Outcome{Results: results}, nil
}

// linkedRequisition returns the newest linked requisition for the
// institution, or nil.
func (s *Service) linkedRequisition(ctx context.Context, institutionID string) (*Requisition, error) {
	requisitions, err := s.client.ListRequisitions(ctx)
	if err != nil {
		return nil, err
	}

	var latest *Requisition
	for i := range requisitions {
		r := &requisitions[i]
		if r.InstitutionID != institutionID || r.Status != StatusLinked {
			continue
		}
		if latest == nil || r.Created.After(latest.Created) {
			latest = r
		}
	}
	return latest, nil
}

type feed struct {
	account      *Account
	details      *AccountDetails
	transactions *AccountTransactions
}

// fetch loads every account concurrently, keeping the requisition order.
func (s *Service) fetch(ctx context.Context, accountIDs []string) ([]feed, error) {
	feeds := make([]feed, len(accountIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range accountIDs {
		i, id := i, id
		g.Go(func() error {
			account, err := s.client.GetAccount(ctx, id)
			if err != nil {
				return err
			}
			details, err := s.client.GetAccountDetails(ctx, id)
			if err != nil {
				return err
			}
			transactions, err := s.client.GetAccountTransactions(ctx, id)
			if err != nil {
				return err
			}
			feeds[i] = feed{account: account, details: details, transactions: transactions}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching accounts: %w", err)
	}
	return feeds, nil
}

// institutions fetches each distinct institution of feeds once.
func (s *Service) institutions(ctx context.Context, feeds []feed) (map[string]*Institution, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, f := range feeds {
		if _, ok := seen[f.account.InstitutionID]; !ok {
			seen[f.account.InstitutionID] = struct{}{}
			ids = append(ids, f.account.InstitutionID)
		}
	}
	sort.Strings(ids)

	found := make([]*Institution, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			institution, err := s.client.GetInstitution(ctx, id)
			if err != nil {
				return err
			}
			found[i] = institution
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching institutions: %w", err)
	}

	byID := make(map[string]*Institution, len(ids))
	for i, id := range ids {
		byID[id] = found[i]
	}
	return byID, nil
}
