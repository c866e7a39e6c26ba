// Package nordigen imports booked transactions of bank accounts linked
// through the Nordigen (GoCardless Bank Account Data) aggregator.
package nordigen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://bankaccountdata.gocardless.com/api/v2"

// ErrUpstream marks every failure talking to the aggregator.
var ErrUpstream = errors.New("nordigen upstream error")

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Summary    string `json:"summary"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("nordigen: %d %s: %s", e.StatusCode, e.Summary, e.Detail)
	}
	return fmt.Sprintf("nordigen: %d %s", e.StatusCode, e.Summary)
}

func (e *APIError) Unwrap() error { return ErrUpstream }

// Client calls the aggregator API. Requests are paced by a token bucket and
// authenticated with a cached access token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	secretID   string
	secretKey  string
	limiter    *rate.Limiter
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRateLimit allows r requests per second with the given burst.
func WithRateLimit(r float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(r), burst) }
}

// NewClient returns a client authenticating with the given secrets.
func NewClient(secretID, secretKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		secretID:   secretID,
		secretKey:  secretKey,
		limiter:    rate.NewLimiter(rate.Limit(4), 4),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListRequisitions returns every requisition, following pagination.
func (c *Client) ListRequisitions(ctx context.Context) ([]Requisition, error) {
	var all []Requisition
	path := "/requisitions/?limit=100"
	for path != "" {
		var p page[Requisition]
		if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
			return nil, fmt.Errorf("ListRequisitions: %w", err)
		}
		all = append(all, p.Results...)

		path = ""
		if p.Next != "" {
			next, err := c.relative(p.Next)
			if err != nil {
				return nil, fmt.Errorf("ListRequisitions: %w", err)
			}
			path = next
		}
	}
	return all, nil
}

// CreateRequisition starts the consent flow; the user must visit Link.
func (c *Client) CreateRequisition(ctx context.Context, req RequisitionRequest) (*Requisition, error) {
	var requisition Requisition
	if err := c.do(ctx, http.MethodPost, "/requisitions/", req, &requisition); err != nil {
		return nil, fmt.Errorf("CreateRequisition: %w", err)
	}
	return &requisition, nil
}

func (c *Client) GetAccount(ctx context.Context, id string) (*Account, error) {
	var account Account
	if err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(id)+"/", nil, &account); err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return &account, nil
}

func (c *Client) GetAccountDetails(ctx context.Context, id string) (*AccountDetails, error) {
	var details AccountDetails
	if err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(id)+"/details/", nil, &details); err != nil {
		return nil, fmt.Errorf("GetAccountDetails: %w", err)
	}
	return &details, nil
}

func (c *Client) GetAccountTransactions(ctx context.Context, id string) (*AccountTransactions, error) {
	var transactions AccountTransactions
	if err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(id)+"/transactions/", nil, &transactions); err != nil {
		return nil, fmt.Errorf("GetAccountTransactions: %w", err)
	}
	return &transactions, nil
}

func (c *Client) GetInstitution(ctx context.Context, id string) (*Institution, error) {
	var institution Institution
	if err := c.do(ctx, http.MethodGet, "/institutions/"+url.PathEscape(id)+"/", nil, &institution); err != nil {
		return nil, fmt.Errorf("GetInstitution: %w", err)
	}
	return &institution, nil
}

// ListInstitutions returns the institutions available in an ISO 3166 country.
func (c *Client) ListInstitutions(ctx context.Context, country string) ([]Institution, error) {
	var institutions []Institution
	path := "/institutions/?country=" + url.QueryEscape(strings.ToLower(country))
	if err := c.do(ctx, http.MethodGet, path, nil, &institutions); err != nil {
		return nil, fmt.Errorf("ListInstitutions: %w", err)
	}
	return institutions, nil
}

// accessToken returns a cached token, requesting a new one when it is
// missing or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	var token tokenResponse
	body := tokenRequest{SecretID: c.secretID, SecretKey: c.secretKey}
	if err := c.send(ctx, http.MethodPost, "/token/new/", "", body, &token); err != nil {
		return "", fmt.Errorf("requesting access token: %w", err)
	}

	c.token = token.Access
	c.tokenExpiry = c.now().Add(time.Duration(token.AccessExpires)*time.Second - 30*time.Second)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, token, in, out)
}

func (c *Client) send(ctx context.Context, method, path, token string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Summary == "" {
			apiErr.Summary = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrUpstream, path, err)
	}
	return nil
}

// relative turns an absolute pagination link into a path under baseURL.
func (c *Client) relative(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parsing next link %q: %w", link, err)
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	path := strings.TrimPrefix(u.Path, base.Path)
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path, nil
}
