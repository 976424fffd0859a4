package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketLens/internal/domain/models"
	"MarketLens/internal/render"
	"MarketLens/internal/usecase"
	applogger "MarketLens/pkg/logger"
	"MarketLens/pkg/queue"
	"MarketLens/pkg/util"
)

// Job type identifiers on the wire. Payloads mirror the POST bodies, so
// an enqueued request and an inline one run the same way.
const (
	JobScanRun        = "scan.run"
	JobReportDaily    = "report.daily"
	JobReportTrailing = "report.trailing"
)

// ScanRunPayload asks a worker to scan the given symbols, or the whole
// stored universe when empty.
type ScanRunPayload struct {
	Symbols []string `json:"symbols,omitempty"`
}

// ReportDailyPayload asks a worker to build the daily report for a date.
type ReportDailyPayload struct {
	Date      string `json:"date"`
	WriteFile bool   `json:"write_file,omitempty"`
}

// ReportTrailingPayload asks a worker to build a trailing report. End
// defaults to today, days to the configured trailing window.
type ReportTrailingPayload struct {
	End       string `json:"end,omitempty"`
	Days      int    `json:"days,omitempty"`
	WriteFile bool   `json:"write_file,omitempty"`
}

// ScanJob runs incremental scans from the queue.
type ScanJob struct {
	scan   *usecase.ScanUseCase
	logger *applogger.Logger
}

func NewScanJob(scan *usecase.ScanUseCase, lgr *applogger.Logger) *ScanJob {
	return &ScanJob{scan: scan, logger: lgr}
}

func (j *ScanJob) Name() string { return "incremental scan" }
func (j *ScanJob) Type() string { return JobScanRun }

func (j *ScanJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[ScanRunPayload](payload)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	res, err := j.scan.Run(ctx, p.Symbols)
	if err != nil {
		// lock contention is retryable, the queue redelivers after the
		// configured delay
		if errors.Is(err, usecase.ErrScanInProgress) {
			return err
		}
		return fmt.Errorf("scan: %w", err)
	}
	j.logger.Info("job scan.run finished",
		applogger.String("run_id", res.RunID),
		applogger.Int("scanned", res.Scanned),
		applogger.Int("events_written", res.EventsWritten))
	return nil
}

// DailyReportJob builds daily reports from the queue.
type DailyReportJob struct {
	daily     *usecase.DailyReportUseCase
	logger    *applogger.Logger
	outputDir string
}

func NewDailyReportJob(daily *usecase.DailyReportUseCase, lgr *applogger.Logger, outputDir string) *DailyReportJob {
	return &DailyReportJob{daily: daily, logger: lgr, outputDir: outputDir}
}

func (j *DailyReportJob) Name() string { return "daily report" }
func (j *DailyReportJob) Type() string { return JobReportDaily }

func (j *DailyReportJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[ReportDailyPayload](payload)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	date, err := util.ParseDate(p.Date)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}

	rep, err := j.daily.Build(ctx, date)
	if err != nil {
		return fmt.Errorf("daily report: %w", err)
	}

	var path string
	if p.WriteFile {
		if path, err = writeDailyFile(j.outputDir, rep); err != nil {
			return err
		}
	}
	j.logger.Info("job report.daily finished",
		applogger.String("date", rep.ReportDate),
		applogger.Int("gainers", len(rep.Gainers)),
		applogger.String("file", path))
	return nil
}

// TrailingReportJob builds trailing reports from the queue.
type TrailingReportJob struct {
	trailing    *usecase.TrailingReportUseCase
	logger      *applogger.Logger
	outputDir   string
	defaultDays int
}

func NewTrailingReportJob(trailing *usecase.TrailingReportUseCase, lgr *applogger.Logger, outputDir string, defaultDays int) *TrailingReportJob {
	if defaultDays <= 0 {
		defaultDays = 30
	}
	return &TrailingReportJob{trailing: trailing, logger: lgr, outputDir: outputDir, defaultDays: defaultDays}
}

func (j *TrailingReportJob) Name() string { return "trailing report" }
func (j *TrailingReportJob) Type() string { return JobReportTrailing }

func (j *TrailingReportJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[ReportTrailingPayload](payload)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	end := util.Day(time.Now().UTC())
	if p.End != "" {
		if end, err = util.ParseDate(p.End); err != nil {
			return fmt.Errorf("parse end date: %w", err)
		}
	}
	days := p.Days
	if days <= 0 {
		days = j.defaultDays
	}

	rep, err := j.trailing.Build(ctx, end, days)
	if err != nil {
		return fmt.Errorf("trailing report: %w", err)
	}

	var path string
	if p.WriteFile {
		if path, err = writeTrailingFile(j.outputDir, rep); err != nil {
			return err
		}
	}
	j.logger.Info("job report.trailing finished",
		applogger.String("end", rep.EndDate),
		applogger.Int("days", rep.Days),
		applogger.String("file", path))
	return nil
}

func writeDailyFile(dir string, rep *models.DailyReport) (string, error) {
	return render.WriteFile(dir, render.DailyFileName(rep.ReportDate), render.DailyText(rep))
}

func writeTrailingFile(dir string, rep *models.TrailingReport) (string, error) {
	return render.WriteFile(dir, render.TrailingFileName(rep.EndDate), render.TrailingText(rep))
}
