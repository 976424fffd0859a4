package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"MarketLens/internal/domain/models"
	"MarketLens/pkg/cache"
	"MarketLens/pkg/logger"
	"MarketLens/pkg/util"
)

func testLogger() *logger.Logger {
	lgr, err := logger.New(&logger.Config{Level: "disabled"})
	if err != nil {
		panic(err)
	}
	return lgr
}

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// barSeries builds a daily series starting at day(0) with the given
// closes and a constant volume of 1000.
func barSeries(symbol string, closes ...float64) []models.PriceBar {
	out := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		out[i] = models.PriceBar{
			Symbol:    symbol,
			TradeDate: day(i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

// fakeStore is an in-memory SeriesStore and CompanyStore.
type fakeStore struct {
	mu        sync.Mutex
	bars      map[string][]models.PriceBar
	companies []models.Company
	events    map[string]models.SignalEvent

	failFor         map[string]error // per-symbol read/write failures
	failRange       error            // range and company reads
	writeEventCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bars:    map[string][]models.PriceBar{},
		events:  map[string]models.SignalEvent{},
		failFor: map[string]error{},
	}
}

func (f *fakeStore) addBars(bars []models.PriceBar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range bars {
		f.bars[b.Symbol] = append(f.bars[b.Symbol], b)
	}
	for sym := range f.bars {
		sort.Slice(f.bars[sym], func(i, j int) bool {
			return f.bars[sym][i].TradeDate.Before(f.bars[sym][j].TradeDate)
		})
	}
}

func (f *fakeStore) eventList() []models.SignalEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.SignalEvent, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e)
	}
	models.SortEvents(out)
	return out
}

func (f *fakeStore) Init(ctx context.Context) error { return nil }

func (f *fakeStore) ReadSeries(ctx context.Context, symbol string, from *time.Time) ([]models.PriceBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[symbol]; err != nil {
		return nil, err
	}
	var out []models.PriceBar
	for _, b := range f.bars[symbol] {
		if from != nil && b.TradeDate.Before(*from) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeStore) ReadLookback(ctx context.Context, symbol string, through time.Time, n int) ([]models.PriceBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[symbol]; err != nil {
		return nil, err
	}
	var upTo []models.PriceBar
	for _, b := range f.bars[symbol] {
		if !b.TradeDate.After(through) {
			upTo = append(upTo, b)
		}
	}
	if len(upTo) > n {
		upTo = upTo[len(upTo)-n:]
	}
	return upTo, nil
}

func (f *fakeStore) ReadBarsRange(ctx context.Context, from, to time.Time) ([]models.PriceBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRange != nil {
		return nil, f.failRange
	}
	syms := make([]string, 0, len(f.bars))
	for sym := range f.bars {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	var out []models.PriceBar
	for _, sym := range syms {
		for _, b := range f.bars[sym] {
			if b.TradeDate.Before(from) || b.TradeDate.After(to) {
				continue
			}
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSymbols(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	syms := make([]string, 0, len(f.bars))
	for sym := range f.bars {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms, nil
}

func (f *fakeStore) WriteBars(ctx context.Context, bars []models.PriceBar) (int, error) {
	written := 0
	for _, b := range bars {
		dup := false
		f.mu.Lock()
		for _, have := range f.bars[b.Symbol] {
			if util.SameDay(have.TradeDate, b.TradeDate) {
				dup = true
				break
			}
		}
		f.mu.Unlock()
		if !dup {
			f.addBars([]models.PriceBar{b})
			written++
		}
	}
	return written, nil
}

func (f *fakeStore) ReadLatestEventDate(ctx context.Context, symbol string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[symbol]; err != nil {
		return nil, err
	}
	var latest *time.Time
	for _, e := range f.events {
		if e.Symbol != symbol {
			continue
		}
		if latest == nil || e.EventDate.After(*latest) {
			d := e.EventDate
			latest = &d
		}
	}
	return latest, nil
}

func (f *fakeStore) WriteEvents(ctx context.Context, events []models.SignalEvent) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeEventCalls++
	written := 0
	for _, e := range events {
		if err := f.failFor[e.Symbol]; err != nil {
			return written, err
		}
		if _, ok := f.events[e.Key()]; ok {
			continue
		}
		f.events[e.Key()] = e
		written++
	}
	return written, nil
}

func (f *fakeStore) ReadEventsByDate(ctx context.Context, date time.Time, types ...models.EventType) ([]models.SignalEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SignalEvent
	for _, e := range f.events {
		if !util.SameDay(e.EventDate, date) {
			continue
		}
		if len(types) > 0 && !containsType(types, e.Type) {
			continue
		}
		out = append(out, e)
	}
	models.SortEvents(out)
	return out, nil
}

func (f *fakeStore) ReadEventsRange(ctx context.Context, from, to time.Time, symbol string, types ...models.EventType) ([]models.SignalEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SignalEvent
	for _, e := range f.events {
		if e.EventDate.Before(from) || e.EventDate.After(to) {
			continue
		}
		if symbol != "" && e.Symbol != symbol {
			continue
		}
		if len(types) > 0 && !containsType(types, e.Type) {
			continue
		}
		out = append(out, e)
	}
	models.SortEvents(out)
	return out, nil
}

func (f *fakeStore) Health(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                     { return nil }

func (f *fakeStore) ListCompanies(ctx context.Context) ([]models.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRange != nil {
		return nil, f.failRange
	}
	return append([]models.Company(nil), f.companies...), nil
}

func containsType(types []models.EventType, t models.EventType) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []models.SignalEvent
	err    error
}

func (p *fakePublisher) PublishEvents(ctx context.Context, events []models.SignalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

// fakeLocker satisfies cache.Service for the scan lock; all other
// methods panic if reached.
type fakeLocker struct {
	cache.Service
	mu     sync.Mutex
	locked bool
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked {
		return false, nil
	}
	l.locked = true
	return true, nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = false
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordEventsWritten(eventType string, n int) {}

func (nopMetrics) RecordScan(symbols, events int, seconds float64) {}

func (nopMetrics) RecordReport(kind string, seconds float64) {}

func (nopMetrics) RecordError(kind string) {}

func (nopMetrics) RecordLatency(op string, seconds float64) {}
