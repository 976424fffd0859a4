package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MarketLens/internal/domain/models"
	"MarketLens/internal/usecase"
	"MarketLens/pkg/logger"
	"MarketLens/pkg/util"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "disabled"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return lgr
}

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

type fakeIngest struct {
	order *[]string
	err   error
}

func (f *fakeIngest) IngestDay(ctx context.Context, date time.Time) (int, error) {
	*f.order = append(*f.order, "ingest")
	return 1, f.err
}

type fakeScan struct {
	order *[]string
	err   error
}

func (f *fakeScan) Run(ctx context.Context, symbols []string) (*usecase.ScanResult, error) {
	*f.order = append(*f.order, "scan")
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.ScanResult{RunID: "run", Scanned: 2, EventsWritten: 1}, nil
}

type fakeDaily struct {
	order *[]string
	date  string
	err   error
}

func (f *fakeDaily) Build(ctx context.Context, date time.Time) (*models.DailyReport, error) {
	*f.order = append(*f.order, "daily")
	if f.err != nil {
		return nil, f.err
	}
	f.date = util.FormatDate(date)
	return &models.DailyReport{ReportDate: f.date}, nil
}

type fakeTrailing struct {
	order *[]string
	days  int
}

func (f *fakeTrailing) Build(ctx context.Context, end time.Time, days int) (*models.TrailingReport, error) {
	*f.order = append(*f.order, "trailing")
	f.days = days
	return &models.TrailingReport{
		StartDate: util.FormatDate(util.AddDays(end, -(days - 1))),
		EndDate:   util.FormatDate(end),
		Days:      days,
	}, nil
}

func testScheduler(t *testing.T, order *[]string, dir string) (*Scheduler, *fakeIngest, *fakeScan, *fakeDaily, *fakeTrailing) {
	t.Helper()
	ing := &fakeIngest{order: order}
	sc := &fakeScan{order: order}
	dl := &fakeDaily{order: order}
	tr := &fakeTrailing{order: order}
	s := &Scheduler{
		ingest:       ing,
		scan:         sc,
		daily:        dl,
		trailing:     tr,
		logger:       testLogger(t),
		loc:          mustLocation(t, "America/New_York"),
		hour:         17,
		minute:       30,
		trailingDays: 30,
		outputDir:    dir,
	}
	return s, ing, sc, dl, tr
}

func TestNextRunSameDay(t *testing.T) {
	s := &Scheduler{loc: mustLocation(t, "America/New_York"), hour: 17, minute: 30}
	// Wednesday morning
	now := time.Date(2024, 1, 3, 10, 0, 0, 0, s.loc)

	next := s.nextRun(now)
	want := time.Date(2024, 1, 3, 17, 30, 0, 0, s.loc)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunRollsToNextDay(t *testing.T) {
	s := &Scheduler{loc: mustLocation(t, "America/New_York"), hour: 17, minute: 30}

	// past today's slot
	now := time.Date(2024, 1, 3, 18, 0, 0, 0, s.loc)
	next := s.nextRun(now)
	want := time.Date(2024, 1, 4, 17, 30, 0, 0, s.loc)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}

	// exactly at the slot rolls over too
	now = want
	next = s.nextRun(now)
	want = time.Date(2024, 1, 5, 17, 30, 0, 0, s.loc)
	if !next.Equal(want) {
		t.Fatalf("next at slot = %v, want %v", next, want)
	}
}

func TestNextRunSkipsWeekend(t *testing.T) {
	s := &Scheduler{loc: mustLocation(t, "America/New_York"), hour: 17, minute: 30}

	// Friday evening jumps to Monday
	now := time.Date(2024, 1, 5, 18, 0, 0, 0, s.loc)
	next := s.nextRun(now)
	want := time.Date(2024, 1, 8, 17, 30, 0, 0, s.loc)
	if !next.Equal(want) {
		t.Fatalf("from friday evening: next = %v, want %v", next, want)
	}

	// Saturday jumps to Monday as well
	now = time.Date(2024, 1, 6, 9, 0, 0, 0, s.loc)
	next = s.nextRun(now)
	if !next.Equal(want) {
		t.Fatalf("from saturday: next = %v, want %v", next, want)
	}
}

func TestRunCycleOrderAndFiles(t *testing.T) {
	var order []string
	dir := t.TempDir()
	s, _, _, dl, tr := testScheduler(t, &order, dir)

	tradeDate := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	s.runCycle(context.Background(), tradeDate)

	want := []string{"ingest", "scan", "daily", "trailing"}
	if len(order) != len(want) {
		t.Fatalf("steps = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("step %d = %q, want %q", i, order[i], want[i])
		}
	}
	if dl.date != "2024-01-05" {
		t.Errorf("daily report date = %q, want 2024-01-05", dl.date)
	}
	if tr.days != 30 {
		t.Errorf("trailing days = %d, want 30", tr.days)
	}

	for _, name := range []string{"report_20240105.txt", "trailing_report_20240105.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("report file %s: %v", name, err)
		}
	}
}

func TestRunCycleContinuesPastFailures(t *testing.T) {
	var order []string
	dir := t.TempDir()
	s, ing, sc, dl, _ := testScheduler(t, &order, dir)
	ing.err = errors.New("fetch failed")
	sc.err = errors.New("store down")
	dl.err = errors.New("no bars")

	s.runCycle(context.Background(), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))

	if len(order) != 4 {
		t.Fatalf("steps = %v, want all four despite failures", order)
	}
	// trailing still writes its file
	if _, err := os.Stat(filepath.Join(dir, "trailing_report_20240105.txt")); err != nil {
		t.Errorf("trailing report file: %v", err)
	}
	// daily failed, so no daily file
	if _, err := os.Stat(filepath.Join(dir, "report_20240105.txt")); err == nil {
		t.Error("daily report file written despite build failure")
	}
}

func TestRunCycleWithoutIngest(t *testing.T) {
	var order []string
	s, _, _, _, _ := testScheduler(t, &order, t.TempDir())
	s.ingest = nil

	s.runCycle(context.Background(), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))

	if len(order) == 0 || order[0] != "scan" {
		t.Fatalf("steps = %v, want scan first when no ingest is wired", order)
	}
}

func TestParseRunAt(t *testing.T) {
	h, m, err := parseRunAt("17:30")
	if err != nil {
		t.Fatalf("parseRunAt: %v", err)
	}
	if h != 17 || m != 30 {
		t.Fatalf("parseRunAt = %d:%d, want 17:30", h, m)
	}

	for _, bad := range []string{"", "25:00", "0930", "17:30:00"} {
		if _, _, err := parseRunAt(bad); err == nil {
			t.Errorf("parseRunAt(%q) accepted invalid input", bad)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	lgr := testLogger(t)

	if _, err := New(Config{RunAt: "bad", Timezone: "UTC"}, nil, nil, nil, nil, lgr); err == nil {
		t.Error("invalid run_at accepted")
	}
	if _, err := New(Config{RunAt: "17:30", Timezone: "Not/AZone"}, nil, nil, nil, nil, lgr); err == nil {
		t.Error("invalid timezone accepted")
	}
}
