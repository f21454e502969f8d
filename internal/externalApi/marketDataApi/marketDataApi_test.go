package marketDataApi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KotFed0t/invest_ledger/config"
	"github.com/KotFed0t/invest_ledger/internal/circuitBreaker"
	"github.com/KotFed0t/invest_ledger/internal/externalApi"
	"github.com/KotFed0t/invest_ledger/internal/externalApi/marketDataApi"
	"github.com/KotFed0t/invest_ledger/internal/model"
	"github.com/KotFed0t/invest_ledger/internal/model/marketDataModel"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryCursors struct {
	mu      sync.Mutex
	cursors map[string]string
}

func newMemoryCursors() *memoryCursors {
	return &memoryCursors{cursors: map[string]string{}}
}

func (m *memoryCursors) GetCursor(_ context.Context, symbol string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.cursors[symbol]
	return token, ok
}

func (m *memoryCursors) UpdateCursor(_ context.Context, symbol, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[symbol] = token
	return nil
}

func testConfig(url string) *config.Config {
	return &config.Config{
		API: config.API{
			Timeout: time.Second,
			MarketDataApi: config.MarketDataApi{
				Url:               url,
				MaxRetries:        2,
				InitialRetryDelay: time.Millisecond,
				MaxRetryDelay:     5 * time.Millisecond,
				MaxScanPages:      10,
			},
		},
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func newBreaker(threshold int) *circuitBreaker.Breaker {
	return circuitBreaker.New("market-data", threshold, time.Minute, clockwork.NewFakeClock())
}

func TestFetchPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quotes/AAPL", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{"symbol": "AAPL", "name": "Apple Inc.", "price": 150.25, "pageToken": "p3"})
	}))
	defer server.Close()

	cursors := newMemoryCursors()
	api := marketDataApi.New(testConfig(server.URL), newBreaker(3), cursors, nil)

	quote, err := api.FetchPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, "AAPL", quote.Symbol)
	require.Equal(t, "Apple Inc.", quote.Name)
	require.True(t, decimal.RequireFromString("150.25").Equal(quote.Price))
	require.Equal(t, "p3", quote.PageToken)

	token, ok := cursors.GetCursor(context.Background(), "AAPL")
	require.True(t, ok)
	require.Equal(t, "p3", token)
}

func TestFetchPriceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(t, w, http.StatusServiceUnavailable, map[string]any{"code": "UNAVAILABLE"})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"symbol": "AAPL", "name": "Apple Inc.", "price": "150.25"})
	}))
	defer server.Close()

	breaker := newBreaker(3)
	api := marketDataApi.New(testConfig(server.URL), breaker, newMemoryCursors(), nil)

	_, err := api.FetchPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load())
	require.Zero(t, breaker.State().ConsecutiveFailures)
}

func TestFetchPriceExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusInternalServerError, map[string]any{"code": "INTERNAL"})
	}))
	defer server.Close()

	breaker := newBreaker(5)
	api := marketDataApi.New(testConfig(server.URL), breaker, newMemoryCursors(), nil)

	_, err := api.FetchPrice(context.Background(), "AAPL")
	require.ErrorIs(t, err, externalApi.ErrUpstreamError)
	require.EqualValues(t, 3, calls.Load(), "maxRetries+1 attempts")
	require.Equal(t, 1, breaker.State().ConsecutiveFailures, "one outcome per call")
}

func TestFetchPriceClientErrorIsTerminal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusBadRequest, map[string]any{"code": "INVALID_SYMBOL", "message": "bad symbol"})
	}))
	defer server.Close()

	breaker := newBreaker(1)
	api := marketDataApi.New(testConfig(server.URL), breaker, newMemoryCursors(), nil)

	_, err := api.FetchPrice(context.Background(), "??")
	require.ErrorIs(t, err, externalApi.ErrClient)
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, circuitBreaker.StatusClosed, breaker.State().Status)
}

func TestFetchPriceNonJSONErrorBody(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.API.MarketDataApi.MaxRetries = 0
	api := marketDataApi.New(cfg, newBreaker(3), newMemoryCursors(), nil)

	_, err := api.FetchPrice(context.Background(), "AAPL")
	require.ErrorIs(t, err, externalApi.ErrUpstreamError)
	require.Contains(t, err.Error(), "status 502")
	require.Contains(t, logs.String(), "error response is not {code,message}")
	require.Contains(t, logs.String(), "bad gateway")
}

func TestFetchPriceTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
		writeJSON(t, w, http.StatusOK, map[string]any{"symbol": "AAPL", "price": 1})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.API.Timeout = 20 * time.Millisecond
	breaker := newBreaker(1)
	api := marketDataApi.New(cfg, breaker, newMemoryCursors(), nil)

	_, err := api.FetchPrice(context.Background(), "AAPL")
	require.ErrorIs(t, err, externalApi.ErrUpstreamTimeout)
	require.EqualValues(t, 3, calls.Load())
	require.Equal(t, circuitBreaker.StatusOpen, breaker.State().Status)
}

func TestFetchPriceCircuitOpenMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusBadGateway, map[string]any{})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.API.MarketDataApi.MaxRetries = 0
	breaker := newBreaker(2)
	api := marketDataApi.New(cfg, breaker, newMemoryCursors(), nil)

	for i := 0; i < 2; i++ {
		_, err := api.FetchPrice(context.Background(), "AAPL")
		require.ErrorIs(t, err, externalApi.ErrUpstreamError)
	}
	require.EqualValues(t, 2, calls.Load())

	_, err := api.FetchPrice(context.Background(), "AAPL")
	require.ErrorIs(t, err, externalApi.ErrCircuitOpen)
	require.EqualValues(t, 2, calls.Load(), "no upstream attempt while open")
}

func TestFetchPriceScansListingFromCursor(t *testing.T) {
	pages := map[string]marketDataModel.QuotesPage{
		"":   {Quotes: []marketDataModel.Quote{{Symbol: "AAA", Price: decimal.NewFromInt(1)}}, NextPageToken: "p1"},
		"p1": {Quotes: []marketDataModel.Quote{{Symbol: "BBB", Price: decimal.NewFromInt(2)}}, NextPageToken: "p2"},
		"p2": {Quotes: []marketDataModel.Quote{{Symbol: "MSFT", Name: "Microsoft", Price: decimal.NewFromInt(400)}}},
	}

	var mu sync.Mutex
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/quotes/") {
			writeJSON(t, w, http.StatusNotFound, map[string]any{"code": "NOT_FOUND"})
			return
		}
		token := r.URL.Query().Get("pageToken")
		mu.Lock()
		requested = append(requested, token)
		mu.Unlock()
		writeJSON(t, w, http.StatusOK, pages[token])
	}))
	defer server.Close()

	cursors := newMemoryCursors()
	api := marketDataApi.New(testConfig(server.URL), newBreaker(3), cursors, nil)

	quote, err := api.FetchPrice(context.Background(), "MSFT")
	require.NoError(t, err)
	require.Equal(t, "Microsoft", quote.Name)
	require.Equal(t, "p2", quote.PageToken)
	mu.Lock()
	require.Equal(t, []string{"", "p1", "p2"}, requested)
	mu.Unlock()

	token, ok := cursors.GetCursor(context.Background(), "MSFT")
	require.True(t, ok)
	require.Equal(t, "p2", token)

	mu.Lock()
	requested = nil
	mu.Unlock()

	_, err = api.FetchPrice(context.Background(), "MSFT")
	require.NoError(t, err)
	mu.Lock()
	require.Equal(t, []string{"p2"}, requested, "second lookup resumes at the cursor")
	mu.Unlock()
}

func TestFetchPriceScanWrapsAndGivesUp(t *testing.T) {
	pages := map[string]marketDataModel.QuotesPage{
		"":   {Quotes: []marketDataModel.Quote{{Symbol: "AAA"}}, NextPageToken: "p1"},
		"p1": {Quotes: []marketDataModel.Quote{{Symbol: "BBB"}}, NextPageToken: "p2"},
		"p2": {Quotes: []marketDataModel.Quote{{Symbol: "CCC"}}},
	}

	var mu sync.Mutex
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/quotes/") {
			writeJSON(t, w, http.StatusNotFound, map[string]any{})
			return
		}
		token := r.URL.Query().Get("pageToken")
		mu.Lock()
		requested = append(requested, token)
		mu.Unlock()
		writeJSON(t, w, http.StatusOK, pages[token])
	}))
	defer server.Close()

	cursors := newMemoryCursors()
	require.NoError(t, cursors.UpdateCursor(context.Background(), "ZZZ", "p1"))
	breaker := newBreaker(1)
	api := marketDataApi.New(testConfig(server.URL), breaker, cursors, nil)

	_, err := api.FetchPrice(context.Background(), "ZZZ")
	require.ErrorIs(t, err, externalApi.ErrNotFound)
	mu.Lock()
	require.Equal(t, []string{"p1", "p2", ""}, requested)
	mu.Unlock()
	require.Equal(t, circuitBreaker.StatusClosed, breaker.State().Status)
}

func TestExecutePurchase(t *testing.T) {
	var calls atomic.Int32
	var keys sync.Map
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/purchases/AAPL", r.URL.Path)
		keys.Store(r.Header.Get("Idempotency-Key"), true)

		if calls.Add(1) == 1 {
			writeJSON(t, w, http.StatusServiceUnavailable, map[string]any{})
			return
		}

		req := marketDataModel.PurchaseRequest{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(t, w, http.StatusOK, marketDataModel.PurchaseConfirmation{
			ConfirmationID:    "conf-1",
			ConfirmedPrice:    req.Price,
			ConfirmedQuantity: req.Quantity,
		})
	}))
	defer server.Close()

	api := marketDataApi.New(testConfig(server.URL), newBreaker(3), newMemoryCursors(), nil)

	conf, err := api.ExecutePurchase(context.Background(), "AAPL", model.PurchaseRequest{
		PortfolioID:    1,
		Price:          decimal.RequireFromString("150.25"),
		Quantity:       10,
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	require.Equal(t, "conf-1", conf.ConfirmationID)
	require.Equal(t, 10, conf.ConfirmedQuantity)
	require.True(t, decimal.RequireFromString("150.25").Equal(conf.ConfirmedPrice))
	require.EqualValues(t, 2, calls.Load())

	count := 0
	keys.Range(func(k, _ any) bool {
		require.Equal(t, "key-1", k)
		count++
		return true
	})
	require.Equal(t, 1, count, "same idempotency key on every attempt")
}

func TestExecutePurchasePriceMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"confirmationId": "c", "confirmedPrice": "151.00", "confirmedQuantity": 10})
	}))
	defer server.Close()

	breaker := newBreaker(1)
	api := marketDataApi.New(testConfig(server.URL), breaker, newMemoryCursors(), nil)

	_, err := api.ExecutePurchase(context.Background(), "AAPL", model.PurchaseRequest{
		PortfolioID: 1,
		Price:       decimal.RequireFromString("150.25"),
		Quantity:    10,
	})
	require.ErrorIs(t, err, externalApi.ErrPriceMismatch)
	require.Equal(t, circuitBreaker.StatusClosed, breaker.State().Status)
}
