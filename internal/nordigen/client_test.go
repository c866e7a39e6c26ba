package nordigen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var tokens atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/token/new/", func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.SecretID != "id" || req.SecretKey != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"summary":"Authentication failed","detail":"No active account found with the given credentials","status_code":401}`))
			return
		}
		tokens.Add(1)
		_ = json.NewEncoder(w).Encode(tokenResponse{Access: "secret-token", AccessExpires: 86400})
	})
	for pattern, handler := range routes {
		handler := handler
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer secret-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			handler(w, r)
		})
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &tokens
}

func newTestClient(server *httptest.Server, secretKey string) *Client {
	return NewClient("id", secretKey, WithBaseURL(server.URL+"/api/v2"), WithRateLimit(1000, 10))
}

func TestClient_ListRequisitionsFollowsPages(t *testing.T) {
	var server *httptest.Server
	server, tokens := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v2/requisitions/": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("offset") == "" {
				_, _ = w.Write([]byte(`{"count":2,"next":"` + server.URL + `/api/v2/requisitions/?limit=100&offset=100","results":[{"id":"r1","status":"LN","institution_id":"BANK_LV","accounts":["a1"]}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"count":2,"next":null,"results":[{"id":"r2","status":"EX","institution_id":"BANK_LV"}]}`))
		},
	})
	client := newTestClient(server, "key")

	requisitions, err := client.ListRequisitions(context.Background())
	require.NoError(t, err)
	require.Len(t, requisitions, 2)
	assert.Equal(t, "r1", requisitions[0].ID)
	assert.Equal(t, StatusLinked, requisitions[0].Status)
	assert.Equal(t, []string{"a1"}, requisitions[0].Accounts)
	assert.Equal(t, StatusExpired, requisitions[1].Status)

	// the token is reused across requests
	assert.Equal(t, int32(1), tokens.Load())
}

func TestClient_AccountEndpoints(t *testing.T) {
	server, _ := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v2/accounts/acc-1/": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"acc-1","iban":"LV00BANK0000000000","institution_id":"BANK_LV","status":"READY"}`))
		},
		"/api/v2/accounts/acc-1/details/": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"account":{"iban":"LV00BANK0000000000","currency":"EUR","name":"Main"}}`))
		},
		"/api/v2/accounts/acc-1/transactions/": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"transactions":{"booked":[{"transactionId":"T1","bookingDate":"2026-02-03","transactionAmount":{"amount":"-12.30","currency":"EUR"},"bankTransactionCode":"PMNT-CCRD-POSD"}],"pending":[]}}`))
		},
		"/api/v2/institutions/BANK_LV/": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"BANK_LV","name":"Example Bank","bic":"BANKLV22"}`))
		},
		"/api/v2/institutions/": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "lv", r.URL.Query().Get("country"))
			_, _ = w.Write([]byte(`[{"id":"BANK_LV","name":"Example Bank","bic":"BANKLV22"}]`))
		},
	})
	client := newTestClient(server, "key")
	ctx := context.Background()

	account, err := client.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "LV00BANK0000000000", account.IBAN)

	details, err := client.GetAccountDetails(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "EUR", details.Account.Currency)

	transactions, err := client.GetAccountTransactions(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, transactions.Transactions.Booked, 1)
	booked := transactions.Transactions.Booked[0]
	assert.Equal(t, "-12.3", booked.TransactionAmount.Amount.String())
	require.NotNil(t, booked.BookingDate)
	assert.Equal(t, "2026-02-03", booked.BookingDate.String())

	institution, err := client.GetInstitution(ctx, "BANK_LV")
	require.NoError(t, err)
	assert.Equal(t, "BANKLV22", institution.BIC)

	institutions, err := client.ListInstitutions(ctx, "LV")
	require.NoError(t, err)
	assert.Len(t, institutions, 1)
}

func TestClient_CreateRequisition(t *testing.T) {
	server, _ := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v2/requisitions/": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			var req RequisitionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "BANK_LV", req.InstitutionID)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(Requisition{ID: "r9", Status: StatusCreated, Link: "https://consent.example/r9"})
		},
	})

	requisition, err := newTestClient(server, "key").CreateRequisition(context.Background(), RequisitionRequest{
		Redirect:      "https://example.com/done",
		InstitutionID: "BANK_LV",
		Reference:     "ref",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://consent.example/r9", requisition.Link)
}

func TestClient_Errors(t *testing.T) {
	server, _ := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v2/accounts/gone/": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"summary":"Not found.","detail":"Not found.","status_code":404}`))
		},
		"/api/v2/accounts/broken/": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	})

	t.Run("api error", func(t *testing.T) {
		_, err := newTestClient(server, "key").GetAccount(context.Background(), "gone")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUpstream)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "Not found.", apiErr.Summary)
	})

	t.Run("empty error body", func(t *testing.T) {
		_, err := newTestClient(server, "key").GetAccount(context.Background(), "broken")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Bad Gateway", apiErr.Summary)
	})

	t.Run("bad credentials", func(t *testing.T) {
		_, err := newTestClient(server, "wrong").GetAccount(context.Background(), "gone")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestClient(server, "key").GetAccount(ctx, "gone")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
