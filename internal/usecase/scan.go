package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"MarketLens/internal/domain/models"
	domrepo "MarketLens/internal/domain/repository"
	"MarketLens/internal/services/detect"
	"MarketLens/internal/services/window"
	"MarketLens/pkg/cache"
	"MarketLens/pkg/logger"
	"MarketLens/pkg/util"
)

// ErrScanInProgress is returned when another scan run holds the lock.
var ErrScanInProgress = errors.New("scan already running")

const (
	scanLockKey = "scan:lock"
	scanLockTTL = 15 * time.Minute
)

// ScanUseCase is the incremental scheduler: per security it determines
// the minimal series suffix to re-evaluate, recomputes windows over a
// bar-exact lookback buffer, and persists only events strictly after the
// latest persisted event date. Securities are independent; workers
// process disjoint symbols with no shared mutable state.
type ScanUseCase struct {
	store     domrepo.SeriesStore
	publisher domrepo.EventPublisher // optional
	cache     cache.Service          // optional, guards overlapping runs
	metrics   domrepo.Metrics
	logger    *logger.Logger
	params    window.Params
	workers   int
}

func NewScanUseCase(
	store domrepo.SeriesStore,
	publisher domrepo.EventPublisher,
	cacheSvc cache.Service,
	metrics domrepo.Metrics,
	lgr *logger.Logger,
	params window.Params,
	workers int,
) (*ScanUseCase, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}
	return &ScanUseCase{
		store:     store,
		publisher: publisher,
		cache:     cacheSvc,
		metrics:   metrics,
		logger:    lgr,
		params:    params,
		workers:   workers,
	}, nil
}

// ScanResult summarizes one scan run.
type ScanResult struct {
	RunID         string            `json:"run_id"`
	Symbols       int               `json:"symbols"`
	Scanned       int               `json:"scanned"`
	Skipped       int               `json:"skipped"`
	EventsWritten int               `json:"events_written"`
	ElapsedMS     int64             `json:"elapsed_ms"`
	Errors        map[string]string `json:"errors,omitempty"`
}

// Run scans the given symbols, or the whole stored universe when symbols
// is empty. Per-symbol store failures are collected in the result, never
// aborting other symbols; a failure listing the universe propagates.
func (uc *ScanUseCase) Run(ctx context.Context, symbols []string) (*ScanResult, error) {
	start := time.Now()
	runID := uuid.NewString()

	if uc.cache != nil {
		ok, err := uc.cache.TryLock(ctx, scanLockKey, scanLockTTL)
		if err != nil {
			uc.logger.Warn("scan.run lock_error", logger.String("run_id", runID), logger.Error(err))
		} else if !ok {
			return nil, ErrScanInProgress
		} else {
			defer func() {
				if err := uc.cache.Unlock(context.WithoutCancel(ctx), scanLockKey); err != nil {
					uc.logger.Warn("scan.run unlock_error", logger.Error(err))
				}
			}()
		}
	}

	if len(symbols) == 0 {
		var err error
		symbols, err = uc.store.ListSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("list symbols: %w", err)
		}
	}

	uc.logger.Info("scan.run started",
		logger.String("run_id", runID),
		logger.Int("symbols", len(symbols)),
		logger.Int("workers", uc.workers))

	res := &ScanResult{RunID: runID, Symbols: len(symbols), Errors: map[string]string{}}

	type item struct {
		symbol  string
		written int
		skipped bool
		err     error
	}

	jobs := make(chan string)
	results := make(chan item, len(symbols))
	var wg sync.WaitGroup

	for w := 0; w < min(uc.workers, len(symbols)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				written, skipped, err := uc.scanSymbol(ctx, sym)
				results <- item{symbol: sym, written: written, skipped: skipped, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, s := range symbols {
			select {
			case jobs <- s:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() { wg.Wait(); close(results) }()

	for it := range results {
		switch {
		case it.err != nil:
			res.Errors[it.symbol] = it.err.Error()
			uc.metrics.RecordError("scan_symbol")
			uc.logger.Error("scan.symbol error",
				logger.String("run_id", runID),
				logger.String("symbol", it.symbol),
				logger.Error(it.err))
		case it.skipped:
			res.Skipped++
		default:
			res.Scanned++
			res.EventsWritten += it.written
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	res.ElapsedMS = time.Since(start).Milliseconds()
	uc.metrics.RecordScan(len(symbols), res.EventsWritten, time.Since(start).Seconds())
	uc.logger.Info("scan.run finished",
		logger.String("run_id", runID),
		logger.Int("scanned", res.Scanned),
		logger.Int("skipped", res.Skipped),
		logger.Int("events_written", res.EventsWritten),
		logger.Int("errors", len(res.Errors)),
		logger.Duration("elapsed", time.Since(start)))

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, nil
}

// scanSymbol evaluates one security. The event batch is computed fully
// in memory before the single write, so a failed write affects at most
// this security's batch.
func (uc *ScanUseCase) scanSymbol(ctx context.Context, symbol string) (int, bool, error) {
	latest, err := uc.store.ReadLatestEventDate(ctx, symbol)
	if err != nil {
		return 0, false, fmt.Errorf("latest event date: %w", err)
	}

	var bars []models.PriceBar
	var after time.Time

	if latest == nil {
		bars, err = uc.store.ReadSeries(ctx, symbol, nil)
		if err != nil {
			return 0, false, fmt.Errorf("read series: %w", err)
		}
	} else {
		after = *latest
		from := util.AddDays(*latest, 1)
		suffix, err := uc.store.ReadSeries(ctx, symbol, &from)
		if err != nil {
			return 0, false, fmt.Errorf("read series: %w", err)
		}
		if len(suffix) == 0 {
			uc.logger.Debug("scan.symbol up_to_date", logger.String("symbol", symbol))
			return 0, true, nil
		}
		// seed the windows with the bar at the latest event date plus the
		// lookback buffer before it, counted in bars
		lookback, err := uc.store.ReadLookback(ctx, symbol, *latest, uc.params.Lookback()+1)
		if err != nil {
			return 0, false, fmt.Errorf("read lookback: %w", err)
		}
		bars = append(lookback, suffix...)
	}

	if len(bars) < uc.params.Short {
		uc.logger.Info("scan.symbol insufficient_data",
			logger.String("symbol", symbol),
			logger.Int("bars", len(bars)),
			logger.Int("short_window", uc.params.Short))
		return 0, true, nil
	}

	points, err := window.Points(bars, uc.params)
	if err != nil {
		return 0, false, err
	}
	events := detect.Detect(symbol, points, detect.Config{Short: uc.params.Short, Long: uc.params.Long}, after)
	if len(events) == 0 {
		return 0, false, nil
	}

	written, err := uc.store.WriteEvents(ctx, events)
	if err != nil {
		return 0, false, fmt.Errorf("write events: %w", err)
	}
	for _, e := range events {
		uc.metrics.RecordEventsWritten(string(e.Type), 1)
	}
	uc.logger.Info("scan.symbol recorded",
		logger.String("symbol", symbol),
		logger.Int("events", written))

	if uc.publisher != nil && written > 0 {
		if err := uc.publisher.PublishEvents(ctx, events); err != nil {
			uc.metrics.RecordError("publish_events")
			uc.logger.Warn("scan.symbol publish_error",
				logger.String("symbol", symbol),
				logger.Error(err))
		}
	}

	return written, false, nil
}
