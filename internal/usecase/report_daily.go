package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"MarketLens/internal/domain/models"
	domrepo "MarketLens/internal/domain/repository"
	"MarketLens/internal/services/window"
	"MarketLens/pkg/logger"
	"MarketLens/pkg/util"
)

// DailyReportUseCase builds the daily market report from stored bars,
// events, and company reference data. Every pass is pure: the same date
// against the same stored data produces the same document.
type DailyReportUseCase struct {
	store     domrepo.SeriesStore
	companies domrepo.CompanyStore
	metrics   domrepo.Metrics
	logger    *logger.Logger
	params    ReportParams
}

func NewDailyReportUseCase(
	store domrepo.SeriesStore,
	companies domrepo.CompanyStore,
	metrics domrepo.Metrics,
	lgr *logger.Logger,
	params ReportParams,
) (*DailyReportUseCase, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &DailyReportUseCase{
		store:     store,
		companies: companies,
		metrics:   metrics,
		logger:    lgr,
		params:    params,
	}, nil
}

// Build assembles the report document for the given date.
func (uc *DailyReportUseCase) Build(ctx context.Context, date time.Time) (*models.DailyReport, error) {
	start := time.Now()
	day := util.Day(date)

	// calendar cushion so volume_window trading days fit even across
	// weekends and holidays
	cushion := uc.params.VolumeWindow * 2
	if cushion < 90 {
		cushion = 90
	}

	bars, err := uc.store.ReadBarsRange(ctx, util.AddDays(day, -cushion), day)
	if err != nil {
		return nil, fmt.Errorf("read bars: %w", err)
	}
	companies, err := uc.companies.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	events, err := uc.store.ReadEventsByDate(ctx, day, models.EventGoldenCross, models.EventDeathCross)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	series := groupBySymbol(bars)
	changes := dailyChanges(series, day)
	byCompany := indexCompanies(companies)
	pctBySymbol := make(map[string]float64, len(changes))
	for _, ch := range changes {
		pctBySymbol[ch.symbol] = ch.pct
	}

	rep := &models.DailyReport{
		ReportDate:    util.FormatDate(day),
		Gainers:       gainers(changes, uc.params.GainThreshold, byCompany),
		Crossovers:    crossoverDigest(events),
		VolumeSpikes:  volumeSpikes(series, day, uc.params.VolumeWindow, uc.params.SpikeMultiple, pctBySymbol),
		GainThreshold: uc.params.GainThreshold,
		SpikeMultiple: uc.params.SpikeMultiple,
	}
	rep.SectorLeaders = groupLeaders(changes, func(sym string) string { return byCompany[sym].Sector })
	rep.IndustryLeaders = groupLeaders(changes, func(sym string) string { return byCompany[sym].Industry })
	for _, leaders := range [][]models.GroupLeaderEntry{rep.SectorLeaders, rep.IndustryLeaders} {
		for i := range leaders {
			leaders[i].TopCompany = byCompany[leaders[i].TopSymbol].CompanyName
		}
	}

	uc.metrics.RecordReport("daily", time.Since(start).Seconds())
	uc.logger.Info("report.daily built",
		logger.String("date", rep.ReportDate),
		logger.Int("active_symbols", len(changes)),
		logger.Int("gainers", len(rep.Gainers)),
		logger.Int("golden_crosses", len(rep.Crossovers.GoldenCross)),
		logger.Int("death_crosses", len(rep.Crossovers.DeathCross)),
		logger.Int("volume_spikes", len(rep.VolumeSpikes)),
		logger.Duration("elapsed", time.Since(start)))
	return rep, nil
}

func gainers(changes []symbolChange, threshold float64, byCompany map[string]models.Company) []models.GainerEntry {
	out := make([]models.GainerEntry, 0)
	for _, ch := range changes {
		if ch.pct < threshold {
			continue
		}
		company := byCompany[ch.symbol]
		out = append(out, models.GainerEntry{
			Symbol:      ch.symbol,
			CompanyName: company.CompanyName,
			Sector:      company.Sector,
			Industry:    company.Industry,
			Close:       ch.close,
			PrevClose:   ch.prevClose,
			PctChange:   ch.pct,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PctChange != out[j].PctChange {
			return out[i].PctChange > out[j].PctChange
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func crossoverDigest(events []models.SignalEvent) models.CrossoverDigest {
	digest := models.CrossoverDigest{
		GoldenCross: []models.CrossoverDigestEntry{},
		DeathCross:  []models.CrossoverDigestEntry{},
	}
	for _, e := range events {
		entry := models.CrossoverDigestEntry{
			Symbol:      e.Symbol,
			ClosePrice:  e.ClosePrice,
			ShortSMA:    e.ShortSMA,
			LongSMA:     e.LongSMA,
			ShortWindow: e.ShortWindow,
			LongWindow:  e.LongWindow,
		}
		switch e.Type {
		case models.EventGoldenCross:
			digest.GoldenCross = append(digest.GoldenCross, entry)
		case models.EventDeathCross:
			digest.DeathCross = append(digest.DeathCross, entry)
		}
	}
	return digest
}

// volumeSpikes flags symbols trading at or above spikeMultiple times
// their trailing baseline. The baseline ends the prior trading day so a
// spike never feeds its own average, and it requires a full window of
// prior bars.
func volumeSpikes(series map[string][]models.PriceBar, day time.Time, volumeWindow int, spikeMultiple float64, pctBySymbol map[string]float64) []models.VolumeSpikeEntry {
	out := make([]models.VolumeSpikeEntry, 0)
	for sym, bars := range series {
		idx := indexOfDay(bars, day)
		if idx < 0 {
			continue
		}
		baseline, ok := window.VolumeBaseline(bars[:idx], volumeWindow)
		if !ok || baseline <= 0 {
			continue
		}
		cur := bars[idx]
		if float64(cur.Volume) < spikeMultiple*baseline {
			continue
		}
		out = append(out, models.VolumeSpikeEntry{
			Symbol:         sym,
			Volume:         cur.Volume,
			BaselineVolume: baseline,
			Multiple:       float64(cur.Volume) / baseline,
			PctChange:      pctBySymbol[sym],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Volume != out[j].Volume {
			return out[i].Volume > out[j].Volume
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
