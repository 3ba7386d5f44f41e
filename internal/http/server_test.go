package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karansanghvi/spendly/internal/auth"
	"github.com/karansanghvi/spendly/internal/feed"
	"github.com/karansanghvi/spendly/internal/services"
	"github.com/karansanghvi/spendly/internal/sharing"
	"github.com/karansanghvi/spendly/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	tokens := auth.NewTokenIssuer("test-secret-0123456789")
	authSvc := auth.NewService(repo, tokens)
	hub := feed.NewHub()
	expenses := services.NewExpenseService(repo, hub, nil)
	registry := sharing.NewRegistry(repo, repo, repo, repo, "http://localhost:8081")

	srv := NewServer(":0", nil, authSvc, tokens, expenses, registry, hub)
	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

func signup(t *testing.T, ts *httptest.Server, name, email string) (userID, token string) {
	t.Helper()

	resp, body := doJSON(t, ts, http.MethodPost, "/api/signup", "", map[string]string{
		"full_name": name,
		"email":     email,
		"password":  "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out struct {
		User  struct{ ID string }
		Token string
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.User.ID, out.Token
}

func createExpense(t *testing.T, ts *httptest.Server, token string, e map[string]string) map[string]any {
	t.Helper()

	resp, body := doJSON(t, ts, http.MethodPost, "/api/expenses", token, e)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, body = doJSON(t, ts, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	// Generate some traffic before scraping.
	doJSON(t, ts, http.MethodGet, "/healthz", "", nil)
	doJSON(t, ts, http.MethodGet, "/api/expenses", "", nil)

	resp, body := doJSON(t, ts, http.MethodGet, "/metricsz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var metrics struct {
		TotalRequests      int64 `json:"total_requests"`
		RateLimitDenied    int64 `json:"rate_limit_denied"`
		SuspiciousRequests int64 `json:"suspicious_requests"`
	}
	require.NoError(t, json.Unmarshal(body, &metrics))
	assert.GreaterOrEqual(t, metrics.TotalRequests, int64(2))
	assert.Equal(t, int64(0), metrics.RateLimitDenied)
	assert.Equal(t, int64(0), metrics.SuspiciousRequests)
}

func TestSignupAndLoginFlow(t *testing.T) {
	ts := newTestServer(t)

	userID, token := signup(t, ts, "Alice", "alice@example.com")
	assert.NotEmpty(t, userID)
	assert.NotEmpty(t, token)

	// Duplicate email
	resp, _ := doJSON(t, ts, http.MethodPost, "/api/signup", "", map[string]string{
		"full_name": "Alice Again", "email": "alice@example.com", "password": "hunter22",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/login", "", map[string]string{
		"email": "alice@example.com", "password": "hunter22",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExpensesRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodGet, "/api/expenses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/expenses", "garbage-token", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExpenseCRUD(t *testing.T) {
	ts := newTestServer(t)
	_, token := signup(t, ts, "Alice", "alice@example.com")

	created := createExpense(t, ts, token, map[string]string{
		"title": "coffee", "amount": "4.50", "currency": "$", "category": "food", "date": "2026-08-30",
	})
	id := created["id"].(string)
	assert.Equal(t, "coffee", created["title"])

	resp, body := doJSON(t, ts, http.MethodGet, "/api/expenses/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, ts, http.MethodPut, "/api/expenses/"+id, token, map[string]string{
		"title": "espresso", "amount": "3.00", "currency": "$", "category": "food", "date": "2026-08-30",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated map[string]any
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "espresso", updated["title"])

	resp, _ = doJSON(t, ts, http.MethodDelete, "/api/expenses/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/expenses/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExpenseValidationAndIsolation(t *testing.T) {
	ts := newTestServer(t)
	_, alice := signup(t, ts, "Alice", "alice@example.com")
	_, bob := signup(t, ts, "Bob", "bob@example.com")

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/expenses", alice, map[string]string{
		"title": "bad", "amount": "not-a-number", "currency": "$", "category": "food", "date": "2026-08-30",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	created := createExpense(t, ts, alice, map[string]string{
		"title": "secret", "amount": "100", "currency": "$", "category": "food", "date": "2026-08-30",
	})
	id := created["id"].(string)

	// Bob must not read or delete Alice's expense.
	resp, _ = doJSON(t, ts, http.MethodGet, "/api/expenses/"+id, bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, ts, http.MethodDelete, "/api/expenses/"+id, bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestExpenseListFilterAndPagination(t *testing.T) {
	ts := newTestServer(t)
	_, token := signup(t, ts, "Alice", "alice@example.com")

	for i := 0; i < 22; i++ {
		createExpense(t, ts, token, map[string]string{
			"title": fmt.Sprintf("usd-%d", i), "amount": "10", "currency": "$", "category": "food", "date": "2026-08-30",
		})
	}
	createExpense(t, ts, token, map[string]string{
		"title": "chai", "amount": "25", "currency": "₹", "category": "food", "date": "2026-08-29",
	})

	resp, body := doJSON(t, ts, http.MethodGet, "/api/expenses?currency=$&page=2", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var page struct {
		Expenses     []map[string]any `json:"expenses"`
		Page         int              `json:"page"`
		TotalPages   int              `json:"total_pages"`
		TotalRecords int              `json:"total_records"`
		Totals       []struct {
			Currency string `json:"currency"`
			Cents    int64  `json:"cents"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Len(t, page.Expenses, 2)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 22, page.TotalRecords)
	for _, total := range page.Totals {
		switch total.Currency {
		case "$":
			assert.Equal(t, int64(22000), total.Cents)
		case "₹":
			assert.Equal(t, int64(0), total.Cents)
		}
	}

	resp, body = doJSON(t, ts, http.MethodGet, "/api/expenses?date=2026-08-29", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, 1, page.TotalRecords)

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/expenses?days=zero", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboardSummary(t *testing.T) {
	ts := newTestServer(t)
	_, token := signup(t, ts, "Alice", "alice@example.com")

	createExpense(t, ts, token, map[string]string{
		"title": "groceries", "amount": "100", "currency": "$", "category": "food", "date": "2026-08-01",
	})
	createExpense(t, ts, token, map[string]string{
		"title": "rent", "amount": "50", "currency": "₹", "category": "rent", "date": "2026-08-02",
	})

	resp, body := doJSON(t, ts, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var summary struct {
		Transactions int    `json:"transactions"`
		Highest      string `json:"highest_category"`
		Lowest       string `json:"lowest_category"`
		Totals       []struct {
			Currency string `json:"currency"`
			Cents    int64  `json:"cents"`
		} `json:"totals"`
		Top []map[string]any `json:"top_expenses"`
	}
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, 2, summary.Transactions)
	assert.Equal(t, "food", summary.Highest)
	assert.Equal(t, "rent", summary.Lowest)
	assert.Len(t, summary.Top, 2)
}

func TestDashboardStream(t *testing.T) {
	ts := newTestServer(t)
	_, token := signup(t, ts, "Alice", "alice@example.com")

	createExpense(t, ts, token, map[string]string{
		"title": "coffee", "amount": "5", "currency": "$", "category": "food", "date": "2026-08-30",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/dashboard/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The full middleware chain wraps the writer; streaming must still
	// negotiate a flushable connection through it.
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readSummaryEvent(t, reader)
	assert.Equal(t, float64(1), first["transactions"])

	// A write while subscribed pushes a fresh summary.
	createExpense(t, ts, token, map[string]string{
		"title": "bus", "amount": "2.50", "currency": "$", "category": "transport", "date": "2026-08-30",
	})
	second := readSummaryEvent(t, reader)
	assert.Equal(t, float64(2), second["transactions"])
}

// readSummaryEvent blocks until the next SSE data line and decodes it.
func readSummaryEvent(t *testing.T, r *bufio.Reader) map[string]any {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if payload, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
			var out map[string]any
			require.NoError(t, json.Unmarshal([]byte(payload), &out))
			return out
		}
	}
}

func TestSharingFlow(t *testing.T) {
	ts := newTestServer(t)
	_, owner := signup(t, ts, "Alice Owner", "alice@example.com")
	_, viewer := signup(t, ts, "Bob Viewer", "bob@example.com")

	createExpense(t, ts, owner, map[string]string{
		"title": "groceries", "amount": "100", "currency": "$", "category": "food", "date": "2026-08-01",
	})

	resp, body := doJSON(t, ts, http.MethodPost, "/api/share-links", owner, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var link struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(body, &link))
	assert.Contains(t, link.URL, "/shared-dashboard/"+link.Token)

	// Shared view works without authentication.
	resp, body = doJSON(t, ts, http.MethodGet, "/api/shared-dashboard/"+link.Token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var view struct {
		OwnerName string `json:"owner_name"`
		Summary   struct {
			Transactions int `json:"transactions"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "Alice Owner", view.OwnerName)
	assert.Equal(t, 1, view.Summary.Transactions)

	// Unknown token renders the invalid-link message.
	resp, body = doJSON(t, ts, http.MethodGet, "/api/shared-dashboard/no-such-token", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), invalidLinkMessage)

	// Viewer joins via the full URL.
	resp, body = doJSON(t, ts, http.MethodPost, "/api/join", viewer, map[string]string{"link": link.URL})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var join struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &join))

	// Joining again is a conflict.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/join", viewer, map[string]string{"link": link.URL})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Both sides of the relationship list it, enriched with names.
	resp, body = doJSON(t, ts, http.MethodGet, "/api/joined", viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var joined []struct {
		OwnerName string `json:"owner_name"`
	}
	require.NoError(t, json.Unmarshal(body, &joined))
	require.Len(t, joined, 1)
	assert.Equal(t, "Alice Owner", joined[0].OwnerName)

	resp, body = doJSON(t, ts, http.MethodGet, "/api/viewers", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var viewers []struct {
		ViewerName string `json:"viewer_name"`
	}
	require.NoError(t, json.Unmarshal(body, &viewers))
	require.Len(t, viewers, 1)
	assert.Equal(t, "Bob Viewer", viewers[0].ViewerName)

	// Only the viewer may leave, only the owner may revoke.
	resp, _ = doJSON(t, ts, http.MethodDelete, "/api/joined/"+join.ID, owner, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, ts, http.MethodDelete, "/api/viewers/"+join.ID, viewer, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodDelete, "/api/joined/"+join.ID, viewer, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Viewer can rejoin after leaving.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/join", viewer, map[string]string{"link": link.URL})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestProfileRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	_, token := signup(t, ts, "Alice", "alice@example.com")

	resp, body := doJSON(t, ts, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var profile struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, "Alice", profile.FullName)

	resp, body = doJSON(t, ts, http.MethodPut, "/api/profile", token, map[string]string{
		"full_name": "Alice Updated", "phone": "555-0100", "email": "alice@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, "Alice Updated", profile.FullName)
}
