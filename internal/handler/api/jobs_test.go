package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MarketLens/internal/domain/models"
	"MarketLens/internal/render"
	"MarketLens/internal/services/window"
	"MarketLens/internal/usecase"
	"MarketLens/pkg/util"
)

func testReportParams() usecase.ReportParams {
	return usecase.ReportParams{
		VolumeWindow:  3,
		GainThreshold: 5,
		SpikeMultiple: 3,
		TopStocks:     5,
		TopIndustries: 5,
	}
}

func TestScanJobRunsFromMapPayload(t *testing.T) {
	store := newFakeStore()
	for i, closePrice := range []float64{10, 10, 10, 10, 12, 14} {
		store.addBar("CCC", time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC), closePrice, 1000)
	}
	lgr := testLogger(t)
	scanUC, err := usecase.NewScanUseCase(store, nil, nil, nopMetrics{}, lgr,
		window.Params{Short: 2, Long: 4, Volume: 3}, 1)
	if err != nil {
		t.Fatalf("scan usecase: %v", err)
	}

	job := NewScanJob(scanUC, lgr)
	if job.Type() != JobScanRun {
		t.Errorf("type = %q, want %q", job.Type(), JobScanRun)
	}

	// queue workers deliver payloads as decoded JSON maps
	payload := map[string]interface{}{"symbols": []interface{}{"CCC"}}
	if err := job.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}

	events, err := store.ReadEventsRange(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), "CCC", models.EventGoldenCross)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("golden crosses = %d, want 1", len(events))
	}
}

func TestDailyReportJobWritesFile(t *testing.T) {
	store := newFakeStore()
	seedMarket(t, store)
	lgr := testLogger(t)
	daily, err := usecase.NewDailyReportUseCase(store, store, nopMetrics{}, lgr, testReportParams())
	if err != nil {
		t.Fatalf("daily usecase: %v", err)
	}

	dir := t.TempDir()
	job := NewDailyReportJob(daily, lgr, dir)
	if job.Type() != JobReportDaily {
		t.Errorf("type = %q, want %q", job.Type(), JobReportDaily)
	}

	payload := map[string]interface{}{"date": "2024-01-05", "write_file": true}
	if err := job.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "report_20240105.txt")); err != nil {
		t.Errorf("report file: %v", err)
	}
}

func TestDailyReportJobRejectsBadDate(t *testing.T) {
	store := newFakeStore()
	lgr := testLogger(t)
	daily, err := usecase.NewDailyReportUseCase(store, store, nopMetrics{}, lgr, testReportParams())
	if err != nil {
		t.Fatalf("daily usecase: %v", err)
	}

	job := NewDailyReportJob(daily, lgr, t.TempDir())
	if err := job.Handle(context.Background(), map[string]interface{}{"date": "nope"}); err == nil {
		t.Error("invalid date accepted")
	}
}

func TestTrailingReportJobDefaults(t *testing.T) {
	store := newFakeStore()
	seedMarket(t, store)
	lgr := testLogger(t)
	trailing, err := usecase.NewTrailingReportUseCase(store, store, nopMetrics{}, lgr, testReportParams())
	if err != nil {
		t.Fatalf("trailing usecase: %v", err)
	}

	dir := t.TempDir()
	job := NewTrailingReportJob(trailing, lgr, dir, 7)
	if job.Type() != JobReportTrailing {
		t.Errorf("type = %q, want %q", job.Type(), JobReportTrailing)
	}

	// empty payload means end = today, days = configured default
	if err := job.Handle(context.Background(), map[string]interface{}{"write_file": true}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	today := util.FormatDate(util.Day(time.Now().UTC()))
	if _, err := os.Stat(filepath.Join(dir, render.TrailingFileName(today))); err != nil {
		t.Errorf("trailing report file: %v", err)
	}
}

func TestTrailingReportJobExplicitWindow(t *testing.T) {
	store := newFakeStore()
	seedMarket(t, store)
	lgr := testLogger(t)
	trailing, err := usecase.NewTrailingReportUseCase(store, store, nopMetrics{}, lgr, testReportParams())
	if err != nil {
		t.Fatalf("trailing usecase: %v", err)
	}

	dir := t.TempDir()
	job := NewTrailingReportJob(trailing, lgr, dir, 30)

	payload := map[string]interface{}{"end": "2024-01-05", "days": 4, "write_file": true}
	if err := job.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "trailing_report_20240105.txt")); err != nil {
		t.Errorf("trailing report file: %v", err)
	}
}
