package repository

import (
	"context"
	"time"

	"MarketLens/internal/domain/models"
)

// SeriesStore is the persistence boundary for price series and derived
// signal events. Implementations expose synchronous calls with no internal
// retry; errors propagate unchanged to the caller.
type SeriesStore interface {
	Init(ctx context.Context) error // ensure tables, health checks

	// ReadSeries returns the ordered bar series for one symbol, ascending
	// by trade date. A nil from reads the whole series; otherwise bars
	// with trade_date >= from.
	ReadSeries(ctx context.Context, symbol string, from *time.Time) ([]models.PriceBar, error)

	// ReadLookback returns up to n bars with trade_date <= through,
	// ascending. Used to seed rolling windows when resuming: lookback is
	// counted in bars, not calendar days.
	ReadLookback(ctx context.Context, symbol string, through time.Time, n int) ([]models.PriceBar, error)

	// ReadBarsRange returns bars for all symbols in [from, to], ascending
	// by (symbol, trade_date).
	ReadBarsRange(ctx context.Context, from, to time.Time) ([]models.PriceBar, error)

	// ListSymbols returns the distinct symbols present in the price series.
	ListSymbols(ctx context.Context) ([]string, error)

	// WriteBars upserts bars on (symbol, trade_date), returning the
	// backend-reported affected row count.
	WriteBars(ctx context.Context, bars []models.PriceBar) (int, error)

	// ReadLatestEventDate returns the most recent persisted event date for
	// a symbol across all event types, or nil when none exist.
	ReadLatestEventDate(ctx context.Context, symbol string) (*time.Time, error)

	// WriteEvents persists events, silently skipping rows already present
	// on (symbol, event_date, event_type). Returns newly written count.
	WriteEvents(ctx context.Context, events []models.SignalEvent) (int, error)

	// ReadEventsByDate returns events for one date, optionally filtered by
	// type, in canonical order.
	ReadEventsByDate(ctx context.Context, date time.Time, types ...models.EventType) ([]models.SignalEvent, error)

	// ReadEventsRange returns events in [from, to], optionally filtered by
	// symbol and types, in canonical order.
	ReadEventsRange(ctx context.Context, from, to time.Time, symbol string, types ...models.EventType) ([]models.SignalEvent, error)

	Health(ctx context.Context) error // ping
	Close() error
}

// CompanyStore reads security reference data for report grouping.
type CompanyStore interface {
	ListCompanies(ctx context.Context) ([]models.Company, error)
}

// Store is the full persistence surface one backend provides. Both the
// MySQL and ClickHouse implementations satisfy it with a single handle.
type Store interface {
	SeriesStore
	CompanyStore
}

// EventPublisher fans newly written signal events out to a message bus.
// Publishing is best-effort; failures never fail the producing scan.
type EventPublisher interface {
	PublishEvents(ctx context.Context, events []models.SignalEvent) error
	Close() error
}

// MarketData fetches daily bars from an external aggregates API.
type MarketData interface {
	// GroupedDaily returns one bar per traded symbol for a single date.
	GroupedDaily(ctx context.Context, date time.Time) ([]models.PriceBar, error)

	// Range returns the daily bars for one symbol in [from, to], ascending.
	Range(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error)
}

// Metrics records operational measurements. Implementations must be safe
// for concurrent use.
type Metrics interface {
	RecordEventsWritten(eventType string, n int)
	RecordScan(symbols, events int, seconds float64)
	RecordReport(kind string, seconds float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
