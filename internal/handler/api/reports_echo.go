package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"MarketLens/internal/domain/models"
	domrepo "MarketLens/internal/domain/repository"
	"MarketLens/internal/usecase"
	"MarketLens/pkg/cache"
	xhttp "MarketLens/pkg/http"
	applogger "MarketLens/pkg/logger"
	"MarketLens/pkg/queue"
	"MarketLens/pkg/util"
)

// defaultEventsWindowDays bounds the events query when from is omitted.
const defaultEventsWindowDays = 90

// Options carries the handler knobs sourced from config.
type Options struct {
	Backend      string        // store backend name reported by /health
	CacheTTL     time.Duration // report cache TTL
	OutputDir    string        // rendered report files land here
	TrailingDays int           // default trailing window
}

// ReportsHandler serves the signal and report API. The cache and job
// queue are optional; without a queue the POST endpoints run inline.
type ReportsHandler struct {
	logger   *applogger.Logger
	scan     *usecase.ScanUseCase
	daily    *usecase.DailyReportUseCase
	trailing *usecase.TrailingReportUseCase
	store    domrepo.SeriesStore
	cache    cache.Service
	jobs     queue.QueueService
	opts     Options
}

func NewReportsHandler(
	lgr *applogger.Logger,
	scan *usecase.ScanUseCase,
	daily *usecase.DailyReportUseCase,
	trailing *usecase.TrailingReportUseCase,
	store domrepo.SeriesStore,
	cacheSvc cache.Service,
	jobs queue.QueueService,
	opts Options,
) *ReportsHandler {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.TrailingDays <= 0 {
		opts.TrailingDays = 30
	}
	return &ReportsHandler{
		logger:   lgr,
		scan:     scan,
		daily:    daily,
		trailing: trailing,
		store:    store,
		cache:    cacheSvc,
		jobs:     jobs,
		opts:     opts,
	}
}

func (h *ReportsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api/v1")
	g.GET("/reports/daily", h.DailyReport)
	g.GET("/reports/trailing", h.TrailingReport)
	g.GET("/events", h.ListEvents)
	g.POST("/scan", h.RunScan)
	g.POST("/reports/daily", h.BuildDailyReport)
	g.POST("/reports/trailing", h.BuildTrailingReport)
}

func (h *ReportsHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Error("health check store error", applogger.Error(err))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{
			"backend": h.opts.Backend,
		})
	}
	return xhttp.SuccessResponse(c, map[string]string{"backend": h.opts.Backend})
}

func (h *ReportsHandler) DailyReport(c echo.Context) error {
	req := &models.DailyReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, err := util.ParseDate(req.Date)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	ctx := c.Request().Context()
	key := dailyReportKey(req.Date)
	if h.cache != nil && !req.Refresh {
		var cached models.DailyReport
		switch err := h.cache.Get(ctx, key, &cached); {
		case err == nil:
			return xhttp.SuccessResponse(c, &cached)
		case !errors.Is(err, cache.ErrCacheMiss):
			h.logger.Warn("report cache read error", applogger.String("key", key), applogger.Error(err))
		}
	}

	rep, err := h.daily.Build(ctx, date)
	if err != nil {
		h.logger.Error("daily report build error", applogger.String("date", req.Date), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("daily report failed").WithError(err))
	}
	h.cacheSet(ctx, key, rep)
	return xhttp.SuccessResponse(c, rep)
}

func (h *ReportsHandler) TrailingReport(c echo.Context) error {
	req := &models.TrailingReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	end := util.Day(time.Now().UTC())
	if req.End != "" {
		var err error
		end, err = util.ParseDate(req.End)
		if err != nil {
			return xhttp.BadRequestResponse(c, err.Error())
		}
	}

	ctx := c.Request().Context()
	key := trailingReportKey(util.FormatDate(end), req.Days)
	if h.cache != nil {
		var cached models.TrailingReport
		switch err := h.cache.Get(ctx, key, &cached); {
		case err == nil:
			return xhttp.SuccessResponse(c, &cached)
		case !errors.Is(err, cache.ErrCacheMiss):
			h.logger.Warn("report cache read error", applogger.String("key", key), applogger.Error(err))
		}
	}

	rep, err := h.trailing.Build(ctx, end, req.Days)
	if err != nil {
		h.logger.Error("trailing report build error",
			applogger.String("end", util.FormatDate(end)),
			applogger.Int("days", req.Days),
			applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("trailing report failed").WithError(err))
	}
	h.cacheSet(ctx, key, rep)
	return xhttp.SuccessResponse(c, rep)
}

func (h *ReportsHandler) ListEvents(c echo.Context) error {
	req := &models.ListEventsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	to := util.Day(time.Now().UTC())
	if req.To != "" {
		var err error
		to, err = util.ParseDate(req.To)
		if err != nil {
			return xhttp.BadRequestResponse(c, err.Error())
		}
	}
	from := util.AddDays(to, -defaultEventsWindowDays)
	if req.From != "" {
		var err error
		from, err = util.ParseDate(req.From)
		if err != nil {
			return xhttp.BadRequestResponse(c, err.Error())
		}
	}
	if from.After(to) {
		return xhttp.BadRequestResponse(c, "from must not be after to")
	}

	var types []models.EventType
	if req.Type != "" {
		t := models.EventType(req.Type)
		if !t.Valid() {
			return xhttp.BadRequestResponse(c, fmt.Sprintf("unknown event type %q, valid types: %v", req.Type, models.EventTypes()))
		}
		types = append(types, t)
	}

	events, err := h.store.ReadEventsRange(c.Request().Context(), from, to, req.Symbol, types...)
	if err != nil {
		h.logger.Error("events query error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("events query failed").WithError(err))
	}

	total := int64(len(events))
	if req.Limit > 0 && len(events) > req.Limit {
		events = events[:req.Limit]
	}
	return xhttp.ListResponse(c, events, total)
}

func (h *ReportsHandler) RunScan(c echo.Context) error {
	req := &models.RunScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if h.jobs != nil {
		payload := ScanRunPayload{Symbols: req.Symbols}
		if err := h.jobs.PublishMessage(ctx, JobScanRun, payload); err != nil {
			h.logger.Error("scan enqueue error", applogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("scan enqueue failed").WithError(err))
		}
		return xhttp.AcceptedResponse(c, map[string]interface{}{
			"job":     JobScanRun,
			"symbols": len(req.Symbols),
		})
	}

	res, err := h.scan.Run(ctx, req.Symbols)
	if err != nil {
		if errors.Is(err, usecase.ErrScanInProgress) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("scan already running"))
		}
		h.logger.Error("scan run error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("scan failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// reportFileResponse wraps a built report with the rendered file path
// when the caller asked for one.
type reportFileResponse struct {
	Report interface{} `json:"report"`
	File   string      `json:"file,omitempty"`
}

func (h *ReportsHandler) BuildDailyReport(c echo.Context) error {
	req := &models.BuildDailyReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, err := util.ParseDate(req.Date)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	ctx := c.Request().Context()
	if h.jobs != nil {
		payload := ReportDailyPayload{Date: req.Date, WriteFile: req.WriteFile}
		if err := h.jobs.PublishMessage(ctx, JobReportDaily, payload); err != nil {
			h.logger.Error("report enqueue error", applogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("report enqueue failed").WithError(err))
		}
		return xhttp.AcceptedResponse(c, map[string]interface{}{
			"job":  JobReportDaily,
			"date": req.Date,
		})
	}

	rep, err := h.daily.Build(ctx, date)
	if err != nil {
		h.logger.Error("daily report build error", applogger.String("date", req.Date), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("daily report failed").WithError(err))
	}
	h.cacheSet(ctx, dailyReportKey(rep.ReportDate), rep)

	out := reportFileResponse{Report: rep}
	if req.WriteFile {
		path, err := writeDailyFile(h.opts.OutputDir, rep)
		if err != nil {
			h.logger.Error("daily report write error", applogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("report file write failed").WithError(err))
		}
		out.File = path
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *ReportsHandler) BuildTrailingReport(c echo.Context) error {
	req := &models.BuildTrailingReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	end := util.Day(time.Now().UTC())
	if req.End != "" {
		var err error
		end, err = util.ParseDate(req.End)
		if err != nil {
			return xhttp.BadRequestResponse(c, err.Error())
		}
	}

	ctx := c.Request().Context()
	if h.jobs != nil {
		payload := ReportTrailingPayload{End: req.End, Days: req.Days, WriteFile: req.WriteFile}
		if err := h.jobs.PublishMessage(ctx, JobReportTrailing, payload); err != nil {
			h.logger.Error("report enqueue error", applogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("report enqueue failed").WithError(err))
		}
		return xhttp.AcceptedResponse(c, map[string]interface{}{
			"job": JobReportTrailing,
			"end": util.FormatDate(end),
		})
	}

	rep, err := h.trailing.Build(ctx, end, req.Days)
	if err != nil {
		h.logger.Error("trailing report build error",
			applogger.String("end", util.FormatDate(end)),
			applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("trailing report failed").WithError(err))
	}
	h.cacheSet(ctx, trailingReportKey(rep.EndDate, rep.Days), rep)

	out := reportFileResponse{Report: rep}
	if req.WriteFile {
		path, err := writeTrailingFile(h.opts.OutputDir, rep)
		if err != nil {
			h.logger.Error("trailing report write error", applogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("report file write failed").WithError(err))
		}
		out.File = path
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *ReportsHandler) cacheSet(ctx context.Context, key string, value interface{}) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, key, value, h.opts.CacheTTL); err != nil {
		h.logger.Warn("report cache write error", applogger.String("key", key), applogger.Error(err))
	}
}

func dailyReportKey(date string) string {
	return cache.GenerateKey("report:daily", date)
}

func trailingReportKey(end string, days int) string {
	return cache.GenerateKeyWithParams("report:trailing", end, days)
}
