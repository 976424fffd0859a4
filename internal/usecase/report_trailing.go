package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"MarketLens/internal/domain/models"
	domrepo "MarketLens/internal/domain/repository"
	"MarketLens/pkg/logger"
	"MarketLens/pkg/util"
)

// TrailingReportUseCase builds the N-day market report: window
// performance per symbol, top stocks, golden crosses inside the window,
// and top industries by mean gain.
type TrailingReportUseCase struct {
	store     domrepo.SeriesStore
	companies domrepo.CompanyStore
	metrics   domrepo.Metrics
	logger    *logger.Logger
	params    ReportParams
}

func NewTrailingReportUseCase(
	store domrepo.SeriesStore,
	companies domrepo.CompanyStore,
	metrics domrepo.Metrics,
	lgr *logger.Logger,
	params ReportParams,
) (*TrailingReportUseCase, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &TrailingReportUseCase{
		store:     store,
		companies: companies,
		metrics:   metrics,
		logger:    lgr,
		params:    params,
	}, nil
}

// Build assembles the trailing report ending at end and spanning days
// calendar days, window start = end - (days-1).
func (uc *TrailingReportUseCase) Build(ctx context.Context, end time.Time, days int) (*models.TrailingReport, error) {
	if days < 1 {
		return nil, fmt.Errorf("trailing days must be at least 1, got %d", days)
	}
	start := time.Now()
	endDay := util.Day(end)
	startDay := util.AddDays(endDay, -(days - 1))

	bars, err := uc.store.ReadBarsRange(ctx, startDay, endDay)
	if err != nil {
		return nil, fmt.Errorf("read bars: %w", err)
	}
	companies, err := uc.companies.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	events, err := uc.store.ReadEventsRange(ctx, startDay, endDay, "", models.EventGoldenCross)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	perf := windowPerformance(groupBySymbol(bars))
	byCompany := indexCompanies(companies)

	rep := &models.TrailingReport{
		StartDate:        util.FormatDate(startDay),
		EndDate:          util.FormatDate(endDay),
		Days:             days,
		TopStockCount:    uc.params.TopStocks,
		TopIndustryCount: uc.params.TopIndustries,
		TopStocks:        topStocks(perf, byCompany, uc.params.TopStocks),
		GoldenCrosses:    trailingEvents(events),
		TopIndustries:    topIndustries(perf, byCompany, uc.params.TopIndustries),
	}

	uc.metrics.RecordReport("trailing", time.Since(start).Seconds())
	uc.logger.Info("report.trailing built",
		logger.String("start", rep.StartDate),
		logger.String("end", rep.EndDate),
		logger.Int("days", days),
		logger.Int("symbols", len(perf)),
		logger.Int("golden_crosses", len(rep.GoldenCrosses)),
		logger.Duration("elapsed", time.Since(start)))
	return rep, nil
}

// windowPerf is one symbol's move across its first and last bars inside
// the trailing window.
type windowPerf struct {
	symbol     string
	startDate  time.Time
	endDate    time.Time
	startClose float64
	endClose   float64
	pct        float64
}

// windowPerformance computes first-to-last close percent change per
// symbol. A symbol needs at least two bars in the window and a positive
// first close; everything else is skipped.
func windowPerformance(series map[string][]models.PriceBar) []windowPerf {
	out := make([]windowPerf, 0, len(series))
	for sym, bars := range series {
		if len(bars) < 2 {
			continue
		}
		first, last := bars[0], bars[len(bars)-1]
		if first.Close <= 0 {
			continue
		}
		out = append(out, windowPerf{
			symbol:     sym,
			startDate:  first.TradeDate,
			endDate:    last.TradeDate,
			startClose: first.Close,
			endClose:   last.Close,
			pct:        (last.Close - first.Close) / first.Close * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].symbol < out[j].symbol })
	return out
}

func topStocks(perf []windowPerf, byCompany map[string]models.Company, limit int) []models.StockPerformanceEntry {
	ranked := append([]windowPerf(nil), perf...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].pct > ranked[j].pct })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]models.StockPerformanceEntry, 0, len(ranked))
	for _, p := range ranked {
		out = append(out, models.StockPerformanceEntry{
			Symbol:      p.symbol,
			CompanyName: byCompany[p.symbol].CompanyName,
			StartDate:   util.FormatDate(p.startDate),
			EndDate:     util.FormatDate(p.endDate),
			StartClose:  p.startClose,
			EndClose:    p.endClose,
			PctChange:   p.pct,
		})
	}
	return out
}

func trailingEvents(events []models.SignalEvent) []models.TrailingEventEntry {
	out := make([]models.TrailingEventEntry, 0, len(events))
	for _, e := range events {
		out = append(out, models.TrailingEventEntry{
			Symbol:      e.Symbol,
			EventDate:   util.FormatDate(e.EventDate),
			ClosePrice:  e.ClosePrice,
			ShortWindow: e.ShortWindow,
			LongWindow:  e.LongWindow,
		})
	}
	return out
}

func topIndustries(perf []windowPerf, byCompany map[string]models.Company, limit int) []models.IndustryPerformanceEntry {
	groups := make(map[string][]float64)
	for _, p := range perf {
		industry := byCompany[p.symbol].Industry
		if industry == "" {
			continue
		}
		groups[industry] = append(groups[industry], p.pct)
	}

	out := make([]models.IndustryPerformanceEntry, 0, len(groups))
	for industry, pcts := range groups {
		var sum float64
		for _, p := range pcts {
			sum += p
		}
		out = append(out, models.IndustryPerformanceEntry{
			Industry:    industry,
			MeanPct:     sum / float64(len(pcts)),
			MedianPct:   median(pcts),
			SymbolCount: len(pcts),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanPct != out[j].MeanPct {
			return out[i].MeanPct > out[j].MeanPct
		}
		return out[i].Industry < out[j].Industry
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
