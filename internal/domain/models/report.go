package models

// Report documents are transient snapshots built fresh from stored bars
// and events; they are never a source of truth. Field names below are
// contract surface for downstream tooling.

// GainerEntry is one security whose percent change met the gain threshold.
type GainerEntry struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"company_name,omitempty"`
	Sector      string  `json:"sector,omitempty"`
	Industry    string  `json:"industry,omitempty"`
	Close       float64 `json:"close"`
	PrevClose   float64 `json:"prev_close"`
	PctChange   float64 `json:"pct_change"`
}

// CrossoverDigestEntry summarizes one moving-average crossover.
type CrossoverDigestEntry struct {
	Symbol      string  `json:"symbol"`
	ClosePrice  float64 `json:"close_price"`
	ShortSMA    float64 `json:"short_sma"`
	LongSMA     float64 `json:"long_sma"`
	ShortWindow int     `json:"short_window"`
	LongWindow  int     `json:"long_window"`
}

// CrossoverDigest groups the day's moving-average events by type.
type CrossoverDigest struct {
	GoldenCross []CrossoverDigestEntry `json:"golden_cross"`
	DeathCross  []CrossoverDigestEntry `json:"death_cross"`
}

// GroupLeaderEntry reports one sector's or industry's mean gain together
// with its single top-performing member. Groups with no observations for
// the report date are omitted from the document entirely.
type GroupLeaderEntry struct {
	Name        string  `json:"name"`
	MeanPct     float64 `json:"mean_pct_change"`
	TopSymbol   string  `json:"top_symbol"`
	TopCompany  string  `json:"top_company,omitempty"`
	TopPct      float64 `json:"top_pct_change"`
	SymbolCount int     `json:"symbol_count"`
}

// VolumeSpikeEntry is one security trading at or above the spike multiple
// of its trailing volume baseline (baseline ends the prior trading day).
type VolumeSpikeEntry struct {
	Symbol         string  `json:"symbol"`
	Volume         int64   `json:"volume"`
	BaselineVolume float64 `json:"baseline_volume"`
	Multiple       float64 `json:"multiple"`
	PctChange      float64 `json:"pct_change"`
}

// DailyReport is the structured daily market report document.
type DailyReport struct {
	ReportDate      string             `json:"report_date"`
	Gainers         []GainerEntry      `json:"gainers"`
	Crossovers      CrossoverDigest    `json:"crossovers"`
	SectorLeaders   []GroupLeaderEntry `json:"sector_leaders"`
	IndustryLeaders []GroupLeaderEntry `json:"industry_leaders"`
	VolumeSpikes    []VolumeSpikeEntry `json:"volume_spikes"`
	GainThreshold   float64            `json:"gain_threshold"`
	SpikeMultiple   float64            `json:"volume_spike_multiple"`
}

// StockPerformanceEntry is one symbol's move over a trailing window,
// first close to last close within the window.
type StockPerformanceEntry struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"company_name,omitempty"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	StartClose  float64 `json:"start_close"`
	EndClose    float64 `json:"end_close"`
	PctChange   float64 `json:"pct_change"`
}

// IndustryPerformanceEntry aggregates window performance per industry.
type IndustryPerformanceEntry struct {
	Industry    string  `json:"industry"`
	MeanPct     float64 `json:"mean_pct_change"`
	MedianPct   float64 `json:"median_pct_change"`
	SymbolCount int     `json:"symbol_count"`
}

// TrailingEventEntry is one golden cross inside the trailing window.
type TrailingEventEntry struct {
	Symbol      string  `json:"symbol"`
	EventDate   string  `json:"event_date"`
	ClosePrice  float64 `json:"close_price"`
	ShortWindow int     `json:"short_window"`
	LongWindow  int     `json:"long_window"`
}

// TrailingReport is the structured N-day market report document.
type TrailingReport struct {
	StartDate        string                     `json:"start_date"`
	EndDate          string                     `json:"end_date"`
	Days             int                        `json:"days"`
	TopStockCount    int                        `json:"top_stock_count"`
	TopIndustryCount int                        `json:"top_industry_count"`
	TopStocks        []StockPerformanceEntry    `json:"top_stocks"`
	GoldenCrosses    []TrailingEventEntry       `json:"golden_crosses"`
	TopIndustries    []IndustryPerformanceEntry `json:"top_industries"`
}
