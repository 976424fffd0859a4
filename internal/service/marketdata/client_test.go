package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	pkghttp "MarketLens/pkg/http"
	"MarketLens/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "disabled"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	return log
}

func testClient(t *testing.T, baseURL string, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Timeout:        5 * time.Second,
		RequestsPerSec: 1000,
		MaxRetries:     retries,
	}, testLogger(t))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	c.retryDelay = time.Millisecond
	return c
}

func TestGroupedDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/aggs/grouped/locale/us/market/stocks/2024-01-05" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("apiKey") != "test-key" {
			t.Errorf("missing api key, query %v", q)
		}
		if q.Get("adjusted") != "true" {
			t.Errorf("adjusted not set, query %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "OK",
			"resultsCount": 3,
			"results": [
				{"T": "AAA", "o": 10, "h": 12, "l": 9.5, "c": 11.25, "v": 1234500.0, "vw": 11.1, "n": 321, "t": 1704430800000},
				{"T": "", "o": 1, "h": 1, "l": 1, "c": 1, "v": 10, "t": 1704430800000},
				{"T": "BBB", "o": 20, "h": 21, "l": 19, "c": 20.5, "v": 500, "vw": 20.2, "n": 42, "t": 1704430800000}
			]
		}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 0)
	date := time.Date(2024, 1, 5, 14, 30, 0, 0, time.UTC)

	bars, err := c.GroupedDaily(context.Background(), date)
	if err != nil {
		t.Fatalf("grouped daily: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars after skipping blank ticker, got %d", len(bars))
	}

	first := bars[0]
	if first.Symbol != "AAA" {
		t.Fatalf("unexpected symbol %q", first.Symbol)
	}
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if !first.TradeDate.Equal(want) {
		t.Fatalf("bar date should be the requested date, got %v", first.TradeDate)
	}
	if first.Open != 10 || first.Close != 11.25 {
		t.Fatalf("unexpected prices %+v", first)
	}
	if first.Volume != 1234500 {
		t.Fatalf("unexpected volume %d", first.Volume)
	}
	if first.VWAP != 11.1 || first.Transactions != 321 {
		t.Fatalf("unexpected vwap fields %+v", first)
	}
	if bars[1].Symbol != "BBB" {
		t.Fatalf("unexpected second symbol %q", bars[1].Symbol)
	}
}

func TestRangeUsesRowTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/aggs/ticker/ACME/range/1/day/2024-01-01/2024-01-03" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("sort") != "asc" || q.Get("limit") != "50000" {
			t.Errorf("unexpected range params %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		// Timestamps land mid-day UTC; the bar date is the UTC calendar day.
		w.Write([]byte(`{
			"status": "OK",
			"resultsCount": 2,
			"results": [
				{"o": 10, "h": 11, "l": 9, "c": 10.5, "v": 1000, "t": 1704153600000},
				{"o": 10.5, "h": 12, "l": 10, "c": 11.5, "v": 1500, "t": 1704222000000}
			]
		}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 0)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	bars, err := c.Range(context.Background(), "ACME", from, to)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Symbol != "ACME" || bars[1].Symbol != "ACME" {
		t.Fatalf("symbol should come from the request, got %+v", bars)
	}
	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !bars[0].TradeDate.Equal(d0) {
		t.Fatalf("unexpected first bar date %v", bars[0].TradeDate)
	}
	if !bars[1].TradeDate.Equal(d0) {
		t.Fatalf("mid-day timestamp should truncate to its UTC day, got %v", bars[1].TradeDate)
	}
}

func TestRangeRequiresSymbol(t *testing.T) {
	c := testClient(t, "http://localhost:0", 0)
	if _, err := c.Range(context.Background(), "", time.Now(), time.Now()); err == nil {
		t.Fatal("expected error for empty symbol")
	}
}

func TestRetriesOnlyOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"status":"OK","resultsCount":0,"results":[]}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 3)
	bars, err := c.GroupedDaily(context.Background(), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected 3 calls, got %d", n)
	}
	if len(bars) != 0 {
		t.Fatalf("expected no bars, got %d", len(bars))
	}
}

func TestNoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 3)
	_, err := c.GroupedDaily(context.Background(), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("server errors must not retry, got %d calls", n)
	}
	var statusErr *pkghttp.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != 500 {
		t.Fatalf("expected status error 500, got %v", err)
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 2)
	_, err := c.GroupedDaily(context.Background(), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected initial call plus 2 retries, got %d", n)
	}
	var statusErr *pkghttp.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != 429 {
		t.Fatalf("expected status error 429, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	log := testLogger(t)
	if _, err := NewClient(Config{APIKey: "k"}, log); err == nil || !strings.Contains(err.Error(), "base url") {
		t.Fatalf("expected base url error, got %v", err)
	}
	if _, err := NewClient(Config{BaseURL: "http://x"}, log); err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected api key error, got %v", err)
	}
}
