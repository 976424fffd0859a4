package usecase

import (
	"fmt"
	"sort"
	"time"

	"MarketLens/internal/domain/models"
	"MarketLens/pkg/util"
)

// ReportParams carries the aggregation thresholds shared by the daily
// and trailing report builders.
type ReportParams struct {
	VolumeWindow  int
	GainThreshold float64 // percent
	SpikeMultiple float64
	TopStocks     int
	TopIndustries int
}

func (p ReportParams) Validate() error {
	if p.VolumeWindow <= 0 {
		return fmt.Errorf("volume window must be positive, got %d", p.VolumeWindow)
	}
	if p.SpikeMultiple <= 0 {
		return fmt.Errorf("volume spike multiple must be positive, got %v", p.SpikeMultiple)
	}
	if p.TopStocks <= 0 || p.TopIndustries <= 0 {
		return fmt.Errorf("top counts must be positive, got stocks=%d industries=%d", p.TopStocks, p.TopIndustries)
	}
	return nil
}

// symbolChange is one security's percent move between two closes.
type symbolChange struct {
	symbol    string
	close     float64
	prevClose float64
	pct       float64
}

func groupBySymbol(bars []models.PriceBar) map[string][]models.PriceBar {
	out := make(map[string][]models.PriceBar)
	for _, b := range bars {
		out[b.Symbol] = append(out[b.Symbol], b)
	}
	return out
}

func indexCompanies(companies []models.Company) map[string]models.Company {
	out := make(map[string]models.Company, len(companies))
	for _, c := range companies {
		out[c.Symbol] = c
	}
	return out
}

// indexOfDay finds the bar traded on day, searching from the end since
// report dates sit at the tail of the range read.
func indexOfDay(bars []models.PriceBar, day time.Time) int {
	for i := len(bars) - 1; i >= 0; i-- {
		if util.SameDay(bars[i].TradeDate, day) {
			return i
		}
		if bars[i].TradeDate.Before(day) {
			break
		}
	}
	return -1
}

// dailyChanges computes per-symbol percent change on day against the
// prior trading day's close. Symbols without a bar on day, without a
// prior bar, or with a non-positive prior close are left out. The result
// is sorted by symbol for deterministic downstream passes.
func dailyChanges(series map[string][]models.PriceBar, day time.Time) []symbolChange {
	out := make([]symbolChange, 0, len(series))
	for sym, bars := range series {
		idx := indexOfDay(bars, day)
		if idx <= 0 {
			continue
		}
		prev, cur := bars[idx-1], bars[idx]
		if prev.Close <= 0 {
			continue
		}
		out = append(out, symbolChange{
			symbol:    sym,
			close:     cur.Close,
			prevClose: prev.Close,
			pct:       (cur.Close - prev.Close) / prev.Close * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].symbol < out[j].symbol })
	return out
}

// groupLeaders aggregates changes into named groups, reporting each
// group's mean percent change and its single best member. Symbols whose
// group name resolves empty are omitted, so absent reference data never
// shows up as a zero-valued group.
func groupLeaders(changes []symbolChange, groupOf func(symbol string) string) []models.GroupLeaderEntry {
	type agg struct {
		sum       float64
		count     int
		topSymbol string
		topPct    float64
	}
	groups := make(map[string]*agg)
	for _, ch := range changes {
		name := groupOf(ch.symbol)
		if name == "" {
			continue
		}
		g, ok := groups[name]
		if !ok {
			g = &agg{topSymbol: ch.symbol, topPct: ch.pct}
			groups[name] = g
		} else if ch.pct > g.topPct {
			g.topSymbol, g.topPct = ch.symbol, ch.pct
		}
		g.sum += ch.pct
		g.count++
	}

	out := make([]models.GroupLeaderEntry, 0, len(groups))
	for name, g := range groups {
		out = append(out, models.GroupLeaderEntry{
			Name:        name,
			MeanPct:     g.sum / float64(g.count),
			TopSymbol:   g.topSymbol,
			TopPct:      g.topPct,
			SymbolCount: g.count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanPct != out[j].MeanPct {
			return out[i].MeanPct > out[j].MeanPct
		}
		return out[i].Name < out[j].Name
	})
	return out
}
