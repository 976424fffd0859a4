package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"MarketLens/internal/domain/models"
	"MarketLens/internal/render"
	"MarketLens/internal/usecase"
	"MarketLens/pkg/logger"
	"MarketLens/pkg/util"
)

// Config holds the wall-clock schedule and the report settings the
// nightly cycle uses.
type Config struct {
	RunAt        string // wall clock HH:MM, 24h
	Timezone     string // IANA zone name
	TrailingDays int
	OutputDir    string
}

// Narrow views over the usecases so cycles are testable with fakes.
type (
	ingestRunner interface {
		IngestDay(ctx context.Context, date time.Time) (int, error)
	}
	scanRunner interface {
		Run(ctx context.Context, symbols []string) (*usecase.ScanResult, error)
	}
	dailyBuilder interface {
		Build(ctx context.Context, date time.Time) (*models.DailyReport, error)
	}
	trailingBuilder interface {
		Build(ctx context.Context, end time.Time, days int) (*models.TrailingReport, error)
	}
)

// Scheduler drives the end-of-day pipeline once per trading day: ingest
// the day's bars when a market-data source is wired, scan for signal
// events, then write the daily and trailing reports.
type Scheduler struct {
	ingest   ingestRunner
	scan     scanRunner
	daily    dailyBuilder
	trailing trailingBuilder
	logger   *logger.Logger

	loc          *time.Location
	hour         int
	minute       int
	trailingDays int
	outputDir    string
}

// New builds a scheduler. The ingest usecase may be nil when no market
// data source is configured; the cycle then starts at the scan step.
func New(
	cfg Config,
	ingest *usecase.IngestUseCase,
	scan *usecase.ScanUseCase,
	daily *usecase.DailyReportUseCase,
	trailing *usecase.TrailingReportUseCase,
	lgr *logger.Logger,
) (*Scheduler, error) {
	hour, minute, err := parseRunAt(cfg.RunAt)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.TrailingDays <= 0 {
		cfg.TrailingDays = 30
	}

	s := &Scheduler{
		scan:         scan,
		daily:        daily,
		trailing:     trailing,
		logger:       lgr,
		loc:          loc,
		hour:         hour,
		minute:       minute,
		trailingDays: cfg.TrailingDays,
		outputDir:    cfg.OutputDir,
	}
	if ingest != nil {
		s.ingest = ingest
	}
	return s, nil
}

// Run blocks, firing one cycle per scheduled trading day, until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := time.Now().In(s.loc)
		next := s.nextRun(now)
		s.logger.Info("scheduler.waiting",
			logger.String("next_run", next.Format(time.RFC3339)))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler.stopped")
			return
		case <-timer.C:
		}

		tradeDate := time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC)
		s.runCycle(ctx, tradeDate)
	}
}

// nextRun returns the next scheduled wall-clock instant strictly after
// now, skipping Saturdays and Sundays.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	for util.IsWeekend(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// runCycle executes one end-of-day pass. A failed step logs and the
// cycle moves on; the next scheduled run retries naturally.
func (s *Scheduler) runCycle(ctx context.Context, tradeDate time.Time) {
	runID := uuid.NewString()
	start := time.Now()
	lgr := s.logger.With(logger.String("run_id", runID))
	lgr.Info("scheduler.cycle started", logger.String("trade_date", util.FormatDate(tradeDate)))

	if s.ingest != nil {
		if written, err := s.ingest.IngestDay(ctx, tradeDate); err != nil {
			lgr.Error("scheduler.ingest error", logger.Error(err))
		} else {
			lgr.Info("scheduler.ingest finished", logger.Int("bars_written", written))
		}
	}

	if res, err := s.scan.Run(ctx, nil); err != nil {
		lgr.Error("scheduler.scan error", logger.Error(err))
	} else {
		lgr.Info("scheduler.scan finished",
			logger.Int("scanned", res.Scanned),
			logger.Int("events_written", res.EventsWritten))
	}

	if rep, err := s.daily.Build(ctx, tradeDate); err != nil {
		lgr.Error("scheduler.daily_report error", logger.Error(err))
	} else if path, err := render.WriteFile(s.outputDir, render.DailyFileName(rep.ReportDate), render.DailyText(rep)); err != nil {
		lgr.Error("scheduler.daily_report write error", logger.Error(err))
	} else {
		lgr.Info("scheduler.daily_report written", logger.String("file", path))
	}

	if rep, err := s.trailing.Build(ctx, tradeDate, s.trailingDays); err != nil {
		lgr.Error("scheduler.trailing_report error", logger.Error(err))
	} else if path, err := render.WriteFile(s.outputDir, render.TrailingFileName(rep.EndDate), render.TrailingText(rep)); err != nil {
		lgr.Error("scheduler.trailing_report write error", logger.Error(err))
	} else {
		lgr.Info("scheduler.trailing_report written", logger.String("file", path))
	}

	lgr.Info("scheduler.cycle finished", logger.Duration("elapsed", time.Since(start)))
}

// parseRunAt parses a 24-hour HH:MM wall-clock string.
func parseRunAt(runAt string) (int, int, error) {
	t, err := time.Parse("15:04", runAt)
	if err != nil {
		return 0, 0, fmt.Errorf("parse run_at %q: %w", runAt, err)
	}
	return t.Hour(), t.Minute(), nil
}
