package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketLens/internal/domain/models"
	pkgch "MarketLens/pkg/clickhouse"
	"MarketLens/pkg/logger"
	"MarketLens/pkg/util"
)

const barColumns = "symbol, trade_date, open, high, low, close, volume, vwap, transactions"

// schemaStatements creates the three tables. ReplacingMergeTree collapses
// re-ingested rows on merge; reads use FINAL so callers never see the
// pre-merge duplicates.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS prices (
        symbol       String,
        trade_date   Date,
        open         Float64,
        high         Float64,
        low          Float64,
        close        Float64,
        volume       Int64,
        vwap         Float64,
        transactions Int64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol, trade_date)`,
	`CREATE TABLE IF NOT EXISTS companies (
        symbol                      String,
        company_name                String,
        sector                      String,
        industry                    String,
        market_cap                  Float64,
        weighted_shares_outstanding Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY symbol`,
	`CREATE TABLE IF NOT EXISTS sma_events (
        symbol       String,
        event_date   Date,
        event_type   String,
        short_window Int32,
        long_window  Int32,
        close_price  Float64,
        short_sma    Float64,
        long_sma     Float64,
        created_at   DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol, event_date, event_type)`,
}

// ClickHouseStore implements SeriesStore and CompanyStore for large
// universes. Duplicate event writes are skipped by reading the existing
// keys for the affected range and filtering before the batch insert,
// since ClickHouse inserts never conflict.
type ClickHouseStore struct {
	client *pkgch.Client
	db     *sql.DB
	logger *logger.Logger
}

func NewClickHouseStore(client *pkgch.Client, lgr *logger.Logger) *ClickHouseStore {
	return &ClickHouseStore{client: client, db: client.DB(), logger: lgr}
}

func (s *ClickHouseStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, schemaStatements)
}

func (s *ClickHouseStore) ReadSeries(ctx context.Context, symbol string, from *time.Time) ([]models.PriceBar, error) {
	q := fmt.Sprintf("SELECT %s FROM prices FINAL WHERE symbol = ?", barColumns)
	args := []interface{}{symbol}
	if from != nil {
		q += " AND trade_date >= ?"
		args = append(args, util.Day(*from))
	}
	q += " ORDER BY trade_date ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()
	return scanBars(rows)
}

func (s *ClickHouseStore) ReadLookback(ctx context.Context, symbol string, through time.Time, n int) ([]models.PriceBar, error) {
	if n <= 0 {
		return nil, nil
	}
	q := fmt.Sprintf(
		"SELECT %s FROM prices FINAL WHERE symbol = ? AND trade_date <= ? ORDER BY trade_date DESC LIMIT ?",
		barColumns)

	rows, err := s.db.QueryContext(ctx, q, symbol, util.Day(through), n)
	if err != nil {
		return nil, fmt.Errorf("query lookback: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

func (s *ClickHouseStore) ReadBarsRange(ctx context.Context, from, to time.Time) ([]models.PriceBar, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM prices FINAL WHERE trade_date >= ? AND trade_date <= ? ORDER BY symbol ASC, trade_date ASC",
		barColumns)

	rows, err := s.db.QueryContext(ctx, q, util.Day(from), util.Day(to))
	if err != nil {
		return nil, fmt.Errorf("query bars range: %w", err)
	}
	defer rows.Close()
	return scanBars(rows)
}

func (s *ClickHouseStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT symbol FROM prices ORDER BY symbol ASC")
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) WriteBars(ctx context.Context, bars []models.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, b := range bars[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				b.Symbol, util.Day(b.TradeDate),
				b.Open, b.High, b.Low, b.Close,
				b.Volume, b.VWAP, b.Transactions)
		}
		q := fmt.Sprintf("INSERT INTO prices (%s) VALUES %s", barColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return 0, fmt.Errorf("insert bars: %w", err)
		}
	}
	return len(bars), nil
}

func (s *ClickHouseStore) ReadLatestEventDate(ctx context.Context, symbol string) (*time.Time, error) {
	var count uint64
	var latest time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT count(), max(event_date) FROM sma_events WHERE symbol = ?", symbol).
		Scan(&count, &latest)
	if err != nil {
		return nil, fmt.Errorf("query latest event date: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	d := util.Day(latest)
	return &d, nil
}

func (s *ClickHouseStore) WriteEvents(ctx context.Context, events []models.SignalEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	existing, err := s.existingEventKeys(ctx, events)
	if err != nil {
		return 0, err
	}

	fresh := make([]models.SignalEvent, 0, len(events))
	for _, e := range events {
		if _, ok := existing[e.Key()]; ok {
			continue
		}
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	values := make([]string, 0, len(fresh))
	args := make([]interface{}, 0, len(fresh)*8)
	for _, e := range fresh {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			e.Symbol, util.Day(e.EventDate), string(e.Type),
			e.ShortWindow, e.LongWindow,
			e.ClosePrice, e.ShortSMA, e.LongSMA)
	}
	q := "INSERT INTO sma_events (symbol, event_date, event_type, short_window, long_window, close_price, short_sma, long_sma) VALUES " +
		strings.Join(values, ",")
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return 0, fmt.Errorf("insert events: %w", err)
	}
	return len(fresh), nil
}

// existingEventKeys reads the stored keys covering the batch's symbols
// and date span.
func (s *ClickHouseStore) existingEventKeys(ctx context.Context, events []models.SignalEvent) (map[string]struct{}, error) {
	symbols := make(map[string]struct{})
	minDate, maxDate := util.Day(events[0].EventDate), util.Day(events[0].EventDate)
	for _, e := range events {
		symbols[e.Symbol] = struct{}{}
		d := util.Day(e.EventDate)
		if d.Before(minDate) {
			minDate = d
		}
		if d.After(maxDate) {
			maxDate = d
		}
	}

	placeholders := make([]string, 0, len(symbols))
	args := make([]interface{}, 0, len(symbols)+2)
	for sym := range symbols {
		placeholders = append(placeholders, "?")
		args = append(args, sym)
	}
	args = append(args, minDate, maxDate)

	q := fmt.Sprintf(
		"SELECT symbol, event_date, event_type FROM sma_events FINAL WHERE symbol IN (%s) AND event_date >= ? AND event_date <= ?",
		strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing events: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var e models.SignalEvent
		var typ string
		if err := rows.Scan(&e.Symbol, &e.EventDate, &typ); err != nil {
			return nil, fmt.Errorf("scan event key: %w", err)
		}
		e.Type = models.EventType(typ)
		keys[e.Key()] = struct{}{}
	}
	return keys, rows.Err()
}

func (s *ClickHouseStore) ReadEventsByDate(ctx context.Context, date time.Time, types ...models.EventType) ([]models.SignalEvent, error) {
	q := "SELECT symbol, event_date, event_type, short_window, long_window, close_price, short_sma, long_sma FROM sma_events FINAL WHERE event_date = ?"
	args := []interface{}{util.Day(date)}
	q, args = appendTypeFilter(q, args, types)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *ClickHouseStore) ReadEventsRange(ctx context.Context, from, to time.Time, symbol string, types ...models.EventType) ([]models.SignalEvent, error) {
	q := "SELECT symbol, event_date, event_type, short_window, long_window, close_price, short_sma, long_sma FROM sma_events FINAL WHERE event_date >= ? AND event_date <= ?"
	args := []interface{}{util.Day(from), util.Day(to)}
	if symbol != "" {
		q += " AND symbol = ?"
		args = append(args, symbol)
	}
	q, args = appendTypeFilter(q, args, types)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events range: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *ClickHouseStore) ListCompanies(ctx context.Context) ([]models.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT symbol, company_name, sector, industry, market_cap, weighted_shares_outstanding FROM companies FINAL ORDER BY symbol ASC")
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var out []models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.Symbol, &c.CompanyName, &c.Sector, &c.Industry, &c.MarketCap, &c.WeightedSharesOutstanding); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *ClickHouseStore) Close() error {
	return nil // pool owned by pkg client
}

func appendTypeFilter(q string, args []interface{}, types []models.EventType) (string, []interface{}) {
	if len(types) == 0 {
		return q, args
	}
	placeholders := make([]string, len(types))
	for i, t := range types {
		placeholders[i] = "?"
		args = append(args, string(t))
	}
	return q + fmt.Sprintf(" AND event_type IN (%s)", strings.Join(placeholders, ",")), args
}

func scanBars(rows *sql.Rows) ([]models.PriceBar, error) {
	var out []models.PriceBar
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Symbol, &b.TradeDate, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.VWAP, &b.Transactions); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.TradeDate = util.Day(b.TradeDate)
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]models.SignalEvent, error) {
	var out []models.SignalEvent
	for rows.Next() {
		var e models.SignalEvent
		var typ string
		if err := rows.Scan(&e.Symbol, &e.EventDate, &typ, &e.ShortWindow, &e.LongWindow, &e.ClosePrice, &e.ShortSMA, &e.LongSMA); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EventDate = util.Day(e.EventDate)
		e.Type = models.EventType(typ)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	models.SortEvents(out)
	return out, nil
}
