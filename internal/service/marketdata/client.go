package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"MarketLens/internal/domain/models"
	"MarketLens/internal/service/ratelimit"
	pkghttp "MarketLens/pkg/http"
	"MarketLens/pkg/logger"
	"MarketLens/pkg/util"
)

const (
	limiterKey = "marketdata"
	rangeLimit = "50000"
)

// Config holds connection settings for the aggregates API.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
	MaxRetries     int
}

// Client fetches daily OHLCV aggregates over the polygon.io REST API.
// All calls share one token bucket so backfills stay inside the
// subscription's rate limit.
type Client struct {
	http       *pkghttp.Client
	limiter    *ratelimit.Limiter
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	rps        float64
	retries    int
	retryDelay time.Duration
}

func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("marketdata: base url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("marketdata: api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}

	return &Client{
		http:       pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		limiter:    ratelimit.New(),
		logger:     log,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		rps:        rps,
		retries:    cfg.MaxRetries,
		retryDelay: time.Second,
	}, nil
}

// aggRow is one aggregate result as polygon returns it.
type aggRow struct {
	Ticker       string  `json:"T"`
	Open         float64 `json:"o"`
	High         float64 `json:"h"`
	Low          float64 `json:"l"`
	Close        float64 `json:"c"`
	Volume       float64 `json:"v"`
	VWAP         float64 `json:"vw"`
	Transactions int64   `json:"n"`
	Timestamp    int64   `json:"t"` // unix ms
}

type aggResponse struct {
	Status       string   `json:"status"`
	ResultsCount int      `json:"resultsCount"`
	Results      []aggRow `json:"results"`
}

// GroupedDaily returns one bar per traded symbol for a single date.
// The bar date is the requested date; the per-row timestamp marks the
// session window and is not used.
func (c *Client) GroupedDaily(ctx context.Context, date time.Time) ([]models.PriceBar, error) {
	day := util.Day(date)
	path := fmt.Sprintf("/v2/aggs/grouped/locale/us/market/stocks/%s", util.FormatDate(day))

	var resp aggResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("grouped daily %s: %w", util.FormatDate(day), err)
	}

	bars := make([]models.PriceBar, 0, len(resp.Results))
	for _, row := range resp.Results {
		if row.Ticker == "" {
			continue
		}
		bars = append(bars, rowToBar(row, day))
	}

	c.logger.Debug("marketdata.grouped fetched",
		logger.String("date", util.FormatDate(day)),
		logger.Int("results", len(bars)))
	return bars, nil
}

// Range returns the daily bars for one symbol in [from, to], ascending.
// Each bar's date comes from the row timestamp.
func (c *Client) Range(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("marketdata: symbol is required")
	}
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		url.PathEscape(symbol), util.FormatDate(from), util.FormatDate(to))
	params := map[string][]string{
		"sort":  {"asc"},
		"limit": {rangeLimit},
	}

	var resp aggResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, fmt.Errorf("range %s %s..%s: %w", symbol, util.FormatDate(from), util.FormatDate(to), err)
	}

	bars := make([]models.PriceBar, 0, len(resp.Results))
	for _, row := range resp.Results {
		day := util.Day(time.UnixMilli(row.Timestamp).UTC())
		row.Ticker = symbol
		bars = append(bars, rowToBar(row, day))
	}
	return bars, nil
}

func rowToBar(row aggRow, day time.Time) models.PriceBar {
	return models.PriceBar{
		Symbol:       row.Ticker,
		TradeDate:    day,
		Open:         row.Open,
		High:         row.High,
		Low:          row.Low,
		Close:        row.Close,
		Volume:       int64(row.Volume),
		VWAP:         row.VWAP,
		Transactions: row.Transactions,
	}
}

// get issues one rate limited GET, retrying only when the API answers 429.
func (c *Client) get(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	query := map[string][]string{
		"adjusted": {"true"},
		"apiKey":   {c.apiKey},
	}
	for k, v := range params {
		query[k] = v
	}

	opts := &pkghttp.RequestOptions{
		Method:      pkghttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: query,
	}

	// Capacity below one token would starve the bucket forever.
	burst := c.rps
	if burst < 1 {
		burst = 1
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := c.limiter.Wait(ctx, limiterKey, burst, c.rps); err != nil {
			return err
		}

		err := c.http.SendAndParse(ctx, opts, dest)
		if err == nil {
			return nil
		}
		lastErr = err

		var statusErr *pkghttp.StatusError
		if !errors.As(err, &statusErr) || statusErr.Code != 429 {
			return err
		}

		delay := time.Duration(attempt+1) * c.retryDelay
		c.logger.Warn("marketdata.throttled",
			logger.String("path", path),
			logger.Int("attempt", attempt+1),
			logger.Duration("backoff", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}
