package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	domrepo "MarketLens/internal/domain/repository"
	"MarketLens/pkg/logger"
	"MarketLens/pkg/util"
)

// IngestUseCase pulls daily bars from the market-data source into the
// series store. It feeds the scan and report paths but is never required
// by them; a run against an already current store writes nothing.
type IngestUseCase struct {
	market    domrepo.MarketData
	store     domrepo.SeriesStore
	companies domrepo.CompanyStore // optional, filters to the tracked universe
	metrics   domrepo.Metrics
	logger    *logger.Logger
}

func NewIngestUseCase(
	market domrepo.MarketData,
	store domrepo.SeriesStore,
	companies domrepo.CompanyStore,
	metrics domrepo.Metrics,
	lgr *logger.Logger,
) (*IngestUseCase, error) {
	if market == nil {
		return nil, fmt.Errorf("ingest: market data source is required")
	}
	return &IngestUseCase{
		market:    market,
		store:     store,
		companies: companies,
		metrics:   metrics,
		logger:    lgr,
	}, nil
}

// IngestDay fetches the grouped daily bars for one date and upserts them,
// keeping only symbols present in the company universe when one is wired.
// Returns the backend-reported written count; zero for market holidays.
func (uc *IngestUseCase) IngestDay(ctx context.Context, date time.Time) (int, error) {
	start := time.Now()
	day := util.Day(date)

	bars, err := uc.market.GroupedDaily(ctx, day)
	if err != nil {
		uc.metrics.RecordError("ingest_fetch")
		return 0, fmt.Errorf("fetch grouped daily: %w", err)
	}
	fetched := len(bars)
	if fetched == 0 {
		uc.logger.Warn("ingest.day no_bars", logger.String("date", util.FormatDate(day)))
		return 0, nil
	}

	if uc.companies != nil {
		companies, err := uc.companies.ListCompanies(ctx)
		if err != nil {
			return 0, fmt.Errorf("list companies: %w", err)
		}
		known := make(map[string]struct{}, len(companies))
		for _, c := range companies {
			known[c.Symbol] = struct{}{}
		}
		kept := bars[:0]
		for _, b := range bars {
			if _, ok := known[b.Symbol]; ok {
				kept = append(kept, b)
			}
		}
		bars = kept
	}
	if len(bars) == 0 {
		uc.logger.Warn("ingest.day no_tracked_symbols",
			logger.String("date", util.FormatDate(day)),
			logger.Int("fetched", fetched))
		return 0, nil
	}

	written, err := uc.store.WriteBars(ctx, bars)
	if err != nil {
		uc.metrics.RecordError("ingest_write")
		return 0, fmt.Errorf("write bars: %w", err)
	}

	uc.metrics.RecordLatency("ingest_day", time.Since(start).Seconds())
	uc.logger.Info("ingest.day finished",
		logger.String("date", util.FormatDate(day)),
		logger.Int("fetched", fetched),
		logger.Int("kept", len(bars)),
		logger.Int("written", written),
		logger.Duration("elapsed", time.Since(start)))
	return written, nil
}

// BackfillResult summarizes one backfill run.
type BackfillResult struct {
	RunID       string            `json:"run_id"`
	Symbols     int               `json:"symbols"`
	Fetched     int               `json:"fetched"`
	Skipped     int               `json:"skipped"`
	BarsWritten int               `json:"bars_written"`
	ElapsedMS   int64             `json:"elapsed_ms"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// Backfill catches each tracked symbol up to end. A symbol with stored
// history is fetched from the bar after its newest stored date; one
// without history gets the trailing lookbackDays window. Symbols run
// sequentially so the shared rate limit budget is spent predictably, and
// per-symbol failures never abort the rest.
func (uc *IngestUseCase) Backfill(ctx context.Context, end time.Time, lookbackDays int) (*BackfillResult, error) {
	if lookbackDays < 1 {
		return nil, fmt.Errorf("backfill: lookback days must be at least 1, got %d", lookbackDays)
	}
	startTime := time.Now()
	runID := uuid.NewString()
	endDay := util.Day(end)

	symbols, err := uc.listUniverse(ctx)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("ingest.backfill started",
		logger.String("run_id", runID),
		logger.String("end", util.FormatDate(endDay)),
		logger.Int("lookback_days", lookbackDays),
		logger.Int("symbols", len(symbols)))

	res := &BackfillResult{RunID: runID, Symbols: len(symbols), Errors: map[string]string{}}

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		written, skipped, err := uc.backfillSymbol(ctx, sym, endDay, lookbackDays)
		switch {
		case err != nil:
			res.Errors[sym] = err.Error()
			uc.metrics.RecordError("backfill_symbol")
			uc.logger.Error("ingest.backfill symbol_error",
				logger.String("run_id", runID),
				logger.String("symbol", sym),
				logger.Error(err))
		case skipped:
			res.Skipped++
		default:
			res.Fetched++
			res.BarsWritten += written
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	res.ElapsedMS = time.Since(startTime).Milliseconds()
	uc.metrics.RecordLatency("backfill", time.Since(startTime).Seconds())
	uc.logger.Info("ingest.backfill finished",
		logger.String("run_id", runID),
		logger.Int("fetched", res.Fetched),
		logger.Int("skipped", res.Skipped),
		logger.Int("bars_written", res.BarsWritten),
		logger.Int("errors", len(res.Errors)),
		logger.Duration("elapsed", time.Since(startTime)))
	return res, nil
}

func (uc *IngestUseCase) backfillSymbol(ctx context.Context, symbol string, end time.Time, lookbackDays int) (int, bool, error) {
	start := util.AddDays(end, -(lookbackDays - 1))
	newest, err := uc.store.ReadLookback(ctx, symbol, end, 1)
	if err != nil {
		return 0, false, fmt.Errorf("read newest bar: %w", err)
	}
	if len(newest) > 0 {
		start = util.AddDays(newest[len(newest)-1].TradeDate, 1)
	}
	if start.After(end) {
		uc.logger.Debug("ingest.backfill up_to_date", logger.String("symbol", symbol))
		return 0, true, nil
	}

	bars, err := uc.market.Range(ctx, symbol, start, end)
	if err != nil {
		return 0, false, fmt.Errorf("fetch range: %w", err)
	}
	if len(bars) == 0 {
		return 0, true, nil
	}

	written, err := uc.store.WriteBars(ctx, bars)
	if err != nil {
		return 0, false, fmt.Errorf("write bars: %w", err)
	}
	return written, false, nil
}

func (uc *IngestUseCase) listUniverse(ctx context.Context) ([]string, error) {
	if uc.companies != nil {
		companies, err := uc.companies.ListCompanies(ctx)
		if err != nil {
			return nil, fmt.Errorf("list companies: %w", err)
		}
		if len(companies) > 0 {
			symbols := make([]string, 0, len(companies))
			for _, c := range companies {
				symbols = append(symbols, c.Symbol)
			}
			return symbols, nil
		}
	}
	symbols, err := uc.store.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return symbols, nil
}
