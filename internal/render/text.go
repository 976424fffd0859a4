package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"MarketLens/internal/domain/models"
)

const (
	dailyRule    = 60
	trailingRule = 70
)

// DailyText renders the daily report document as the plain-text report
// downstream tooling reads.
func DailyText(rep *models.DailyReport) string {
	var lines []string
	add := func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("Daily Market Report - %s", rep.ReportDate)
	add(strings.Repeat("=", dailyRule))
	add("")

	add("Stocks Up More Than %.2f%%", rep.GainThreshold)
	add(strings.Repeat("-", dailyRule))
	if len(rep.Gainers) == 0 {
		add("No stocks gained above the configured threshold.")
	} else {
		for _, g := range rep.Gainers {
			add("- %s: %s | %.2f%% (Close: %.2f, Prev Close: %.2f) [Sector: %s | Industry: %s]",
				g.Symbol, orNA(g.CompanyName), g.PctChange, g.Close, g.PrevClose,
				orNA(g.Sector), orNA(g.Industry))
		}
	}
	add("")

	add("SMA Events")
	add(strings.Repeat("-", dailyRule))
	if len(rep.Crossovers.GoldenCross) == 0 && len(rep.Crossovers.DeathCross) == 0 {
		add("No SMA events recorded for today.")
	} else {
		// event type ascending, so death crosses list first
		for _, e := range rep.Crossovers.DeathCross {
			add("- %s: %s (%s)", e.Symbol, models.EventDeathCross, digestDetails(e))
		}
		for _, e := range rep.Crossovers.GoldenCross {
			add("- %s: %s (%s)", e.Symbol, models.EventGoldenCross, digestDetails(e))
		}
	}
	add("")

	add("Sector Leaders (Top Average %% Gain)")
	add(strings.Repeat("-", dailyRule))
	if len(rep.SectorLeaders) == 0 {
		add("No sector performance data available.")
	} else {
		for _, s := range rep.SectorLeaders {
			add("- %s: Avg Change %.2f%% (Top: %s %.2f%% - %s)",
				s.Name, s.MeanPct, s.TopSymbol, s.TopPct, orNA(s.TopCompany))
		}
	}
	add("")

	add("Industry Leaders (Top Average %% Gain)")
	add(strings.Repeat("-", dailyRule))
	if len(rep.IndustryLeaders) == 0 {
		add("No industry performance data available.")
	} else {
		for _, s := range rep.IndustryLeaders {
			add("- %s: Avg Change %.2f%% (Top: %s %.2f%% - %s)",
				s.Name, s.MeanPct, s.TopSymbol, s.TopPct, orNA(s.TopCompany))
		}
	}
	add("")

	add("Unusual Volume (>= %gx rolling average)", rep.SpikeMultiple)
	add(strings.Repeat("-", dailyRule))
	if len(rep.VolumeSpikes) == 0 {
		add("No volume spikes detected.")
	} else {
		for _, v := range rep.VolumeSpikes {
			add("- %s: Volume %s (~%.2fx avg %.0f) | Change %.2f%%",
				v.Symbol, groupThousands(v.Volume), v.Multiple, v.BaselineVolume, v.PctChange)
		}
	}

	add("")
	add("End of report.")
	return strings.Join(lines, "\n")
}

func digestDetails(e models.CrossoverDigestEntry) string {
	return fmt.Sprintf("Close %.2f; SMA%d %.2f; SMA%d %.2f",
		e.ClosePrice, e.ShortWindow, e.ShortSMA, e.LongWindow, e.LongSMA)
}

// TrailingText renders the N-day report document as plain text.
func TrailingText(rep *models.TrailingReport) string {
	var lines []string
	add := func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("%d-Day Market Report (%s to %s)", rep.Days, rep.StartDate, rep.EndDate)
	add(strings.Repeat("=", trailingRule))
	add("")

	add("Top %d Stocks by Percentage Gain", rep.TopStockCount)
	add(strings.Repeat("-", trailingRule))
	if len(rep.TopStocks) == 0 {
		add("No price data available for the requested window.")
	} else {
		for _, s := range rep.TopStocks {
			add("- %s: %s | %.2f%% (Start %s: %.2f -> %s: %.2f)",
				s.Symbol, orNA(s.CompanyName), s.PctChange,
				s.StartDate, s.StartClose, s.EndDate, s.EndClose)
		}
	}
	add("")

	add("Golden Cross Events")
	add(strings.Repeat("-", trailingRule))
	if len(rep.GoldenCrosses) == 0 {
		add("No golden cross events recorded during the window.")
	} else {
		for _, e := range rep.GoldenCrosses {
			add("- %s: %s (short=%d long=%d close=%.2f)",
				e.EventDate, e.Symbol, e.ShortWindow, e.LongWindow, e.ClosePrice)
		}
	}
	add("")

	add("Top %d Industries by Average %% Gain", rep.TopIndustryCount)
	add(strings.Repeat("-", trailingRule))
	if len(rep.TopIndustries) == 0 {
		add("No industry performance data available.")
	} else {
		for _, ind := range rep.TopIndustries {
			add("- %s: %.2f%% avg (median %.2f%%, %d symbols)",
				ind.Industry, ind.MeanPct, ind.MedianPct, ind.SymbolCount)
		}
	}

	return strings.Join(lines, "\n")
}

// DailyFileName maps a report date (YYYY-MM-DD) to its on-disk name.
func DailyFileName(reportDate string) string {
	return fmt.Sprintf("report_%s.txt", strings.ReplaceAll(reportDate, "-", ""))
}

// TrailingFileName maps a window end date to its on-disk name.
func TrailingFileName(endDate string) string {
	return fmt.Sprintf("trailing_report_%s.txt", strings.ReplaceAll(endDate, "-", ""))
}

// WriteFile writes a rendered report under dir, creating the directory
// as needed, and returns the full path.
func WriteFile(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// groupThousands formats an integer with comma separators.
func groupThousands(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
