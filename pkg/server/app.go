package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "MarketLens/internal/domain/repository"
	"MarketLens/internal/scheduler"
	"MarketLens/pkg/config"
	xhttp "MarketLens/pkg/http"
	applogger "MarketLens/pkg/logger"
	"MarketLens/pkg/queue"
)

// App encapsulates the entire application lifecycle: the HTTP API, the
// optional background job consumer and the optional daily scheduler.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	handler    xhttp.Handler
	sched      *scheduler.Scheduler
	consumer   *queue.RedisQueue
	store      domrepo.SeriesStore
	publisher  domrepo.EventPublisher
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
// The scheduler, consumer and publisher may be nil; nil disables them.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	handler xhttp.Handler,
	sched *scheduler.Scheduler,
	consumer *queue.RedisQueue,
	store domrepo.SeriesStore,
	publisher domrepo.EventPublisher,
) *App {
	return &App{
		cfg:       cfg,
		logger:    lgr,
		handler:   handler,
		sched:     sched,
		consumer:  consumer,
		store:     store,
		publisher: publisher,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(a.logger),
	)

	// Start job consumer workers before the HTTP server so queued work
	// is not accepted by an API that nothing will drain.
	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.logger.Error("queue consumer start error", applogger.Error(err))
			return err
		}
	}

	if a.sched != nil {
		go a.sched.Run(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown gracefully stops all services in reverse start order.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("queue consumer stop error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("store close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
