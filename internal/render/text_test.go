package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"MarketLens/internal/domain/models"
)

func TestDailyText(t *testing.T) {
	rep := &models.DailyReport{
		ReportDate:    "2024-01-05",
		GainThreshold: 10.0,
		SpikeMultiple: 3.0,
		Gainers: []models.GainerEntry{
			{Symbol: "AAA", CompanyName: "Alpha Apps", Sector: "Technology", Industry: "Software", Close: 12, PrevClose: 10, PctChange: 20},
			{Symbol: "DDD", Close: 5.6, PrevClose: 5, PctChange: 12},
		},
		Crossovers: models.CrossoverDigest{
			GoldenCross: []models.CrossoverDigestEntry{
				{Symbol: "AAA", ClosePrice: 12, ShortSMA: 11, LongSMA: 10.5, ShortWindow: 50, LongWindow: 200},
			},
			DeathCross: []models.CrossoverDigestEntry{
				{Symbol: "CCC", ClosePrice: 27, ShortSMA: 28, LongSMA: 29, ShortWindow: 50, LongWindow: 200},
			},
		},
		SectorLeaders: []models.GroupLeaderEntry{
			{Name: "Technology", MeanPct: 12.5, TopSymbol: "AAA", TopCompany: "Alpha Apps", TopPct: 20, SymbolCount: 2},
		},
		IndustryLeaders: []models.GroupLeaderEntry{},
		VolumeSpikes: []models.VolumeSpikeEntry{
			{Symbol: "BBB", Volume: 1234500, BaselineVolume: 352714.28, Multiple: 3.5, PctChange: 5},
		},
	}

	want := strings.Join([]string{
		"Daily Market Report - 2024-01-05",
		strings.Repeat("=", 60),
		"",
		"Stocks Up More Than 10.00%",
		strings.Repeat("-", 60),
		"- AAA: Alpha Apps | 20.00% (Close: 12.00, Prev Close: 10.00) [Sector: Technology | Industry: Software]",
		"- DDD: N/A | 12.00% (Close: 5.60, Prev Close: 5.00) [Sector: N/A | Industry: N/A]",
		"",
		"SMA Events",
		strings.Repeat("-", 60),
		"- CCC: death_cross (Close 27.00; SMA50 28.00; SMA200 29.00)",
		"- AAA: golden_cross (Close 12.00; SMA50 11.00; SMA200 10.50)",
		"",
		"Sector Leaders (Top Average % Gain)",
		strings.Repeat("-", 60),
		"- Technology: Avg Change 12.50% (Top: AAA 20.00% - Alpha Apps)",
		"",
		"Industry Leaders (Top Average % Gain)",
		strings.Repeat("-", 60),
		"No industry performance data available.",
		"",
		"Unusual Volume (>= 3x rolling average)",
		strings.Repeat("-", 60),
		"- BBB: Volume 1,234,500 (~3.50x avg 352714) | Change 5.00%",
		"",
		"End of report.",
	}, "\n")

	if got := DailyText(rep); got != want {
		t.Fatalf("daily text mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestDailyTextEmptySections(t *testing.T) {
	rep := &models.DailyReport{ReportDate: "2024-01-05", GainThreshold: 10, SpikeMultiple: 3}
	got := DailyText(rep)

	for _, phrase := range []string{
		"No stocks gained above the configured threshold.",
		"No SMA events recorded for today.",
		"No sector performance data available.",
		"No industry performance data available.",
		"No volume spikes detected.",
		"End of report.",
	} {
		if !strings.Contains(got, phrase) {
			t.Fatalf("missing %q in:\n%s", phrase, got)
		}
	}
}

func TestTrailingText(t *testing.T) {
	rep := &models.TrailingReport{
		StartDate:        "2024-01-01",
		EndDate:          "2024-01-30",
		Days:             30,
		TopStockCount:    20,
		TopIndustryCount: 10,
		TopStocks: []models.StockPerformanceEntry{
			{Symbol: "AAA", CompanyName: "Alpha Apps", StartDate: "2024-01-02", EndDate: "2024-01-30", StartClose: 10, EndClose: 15, PctChange: 50},
		},
		GoldenCrosses: []models.TrailingEventEntry{
			{Symbol: "CCC", EventDate: "2024-01-08", ClosePrice: 32, ShortWindow: 50, LongWindow: 200},
		},
		TopIndustries: []models.IndustryPerformanceEntry{
			{Industry: "Semiconductors", MeanPct: 4, MedianPct: 2.5, SymbolCount: 4},
		},
	}

	want := strings.Join([]string{
		"30-Day Market Report (2024-01-01 to 2024-01-30)",
		strings.Repeat("=", 70),
		"",
		"Top 20 Stocks by Percentage Gain",
		strings.Repeat("-", 70),
		"- AAA: Alpha Apps | 50.00% (Start 2024-01-02: 10.00 -> 2024-01-30: 15.00)",
		"",
		"Golden Cross Events",
		strings.Repeat("-", 70),
		"- 2024-01-08: CCC (short=50 long=200 close=32.00)",
		"",
		"Top 10 Industries by Average % Gain",
		strings.Repeat("-", 70),
		"- Semiconductors: 4.00% avg (median 2.50%, 4 symbols)",
	}, "\n")

	if got := TrailingText(rep); got != want {
		t.Fatalf("trailing text mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestTrailingTextEmptySections(t *testing.T) {
	rep := &models.TrailingReport{
		StartDate: "2024-01-01", EndDate: "2024-01-30", Days: 30,
		TopStockCount: 20, TopIndustryCount: 10,
	}
	got := TrailingText(rep)
	for _, phrase := range []string{
		"No price data available for the requested window.",
		"No golden cross events recorded during the window.",
		"No industry performance data available.",
	} {
		if !strings.Contains(got, phrase) {
			t.Fatalf("missing %q in:\n%s", phrase, got)
		}
	}
}

func TestFileNames(t *testing.T) {
	if got := DailyFileName("2024-01-05"); got != "report_20240105.txt" {
		t.Fatalf("daily name = %s", got)
	}
	if got := TrailingFileName("2024-01-30"); got != "trailing_report_20240130.txt" {
		t.Fatalf("trailing name = %s", got)
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	path, err := WriteFile(dir, "report_20240105.txt", "hello")
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("content = %q", string(data))
	}
}

func TestGroupThousands(t *testing.T) {
	cases := map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		1234500: "1,234,500",
	}
	for in, want := range cases {
		if got := groupThousands(in); got != want {
			t.Fatalf("groupThousands(%d) = %s, want %s", in, got, want)
		}
	}
}
