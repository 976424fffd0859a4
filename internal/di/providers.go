package di

import (
	"context"
	"fmt"
	"time"

	"MarketLens/internal/domain/repository"
	"MarketLens/internal/handler/api"
	internalrepo "MarketLens/internal/repository"
	"MarketLens/internal/scheduler"
	"MarketLens/internal/service/marketdata"
	"MarketLens/internal/services/window"
	"MarketLens/internal/usecase"
	"MarketLens/pkg/cache"
	pkgch "MarketLens/pkg/clickhouse"
	"MarketLens/pkg/config"
	xhttp "MarketLens/pkg/http"
	pkgkafka "MarketLens/pkg/kafka"
	applogger "MarketLens/pkg/logger"
	"MarketLens/pkg/metrics"
	"MarketLens/pkg/queue"
	"MarketLens/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the structured logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStore opens the configured storage backend and ensures its schema.
func ProvideStore(cfg *config.Config, lgr *applogger.Logger) (repository.Store, error) {
	var store repository.Store

	switch cfg.Store.Backend {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithAddr(cfg.Store.ClickHouse.Host, cfg.Store.ClickHouse.Port),
			pkgch.WithDatabase(cfg.Store.ClickHouse.Database),
			pkgch.WithCredentials(cfg.Store.ClickHouse.User, cfg.Store.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.Store.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.Store.ClickHouse.AsyncInsert, cfg.Store.ClickHouse.WaitForAsync),
			pkgch.WithTimeouts(cfg.Store.ClickHouse.DialTimeout, cfg.Store.ClickHouse.ReadTimeout, cfg.Store.ClickHouse.WriteTimeout),
			pkgch.WithMaxExecutionTime(cfg.Store.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		store = internalrepo.NewClickHouseStore(client, lgr)
	case "mysql":
		s, err := internalrepo.NewMySQLStore(internalrepo.MySQLConfig{
			Host:            cfg.Store.MySQL.Host,
			Port:            cfg.Store.MySQL.Port,
			User:            cfg.Store.MySQL.User,
			Password:        cfg.Store.MySQL.Password,
			Database:        cfg.Store.MySQL.Database,
			MaxOpenConns:    cfg.Store.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.MySQL.ConnMaxLifetime,
		}, lgr)
		if err != nil {
			return nil, fmt.Errorf("mysql store: %w", err)
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("store schema: %w", err)
	}

	return store, nil
}

// ProvideSeriesStore exposes the store's price and event surface.
func ProvideSeriesStore(store repository.Store) repository.SeriesStore {
	return store
}

// ProvideCompanyStore exposes the store's reference data surface.
func ProvideCompanyStore(store repository.Store) repository.CompanyStore {
	return store
}

// ProvideCache creates the report cache for the configured backend. The
// redis backend is layered behind an in-process L1 so repeated report
// reads skip the network.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Cache.Backend == "redis" {
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPool(cfg.Cache.Redis.PoolSize, cfg.Cache.Redis.MinIdleConns, cfg.Cache.Redis.PoolTimeout),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.Memory.MaxSize)), nil
	}
	return cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.Memory.MaxSize),
		cache.WithMemoryCleanup(cfg.Cache.Memory.CleanupInterval),
	), nil
}

// ProvideEventPublisher creates the Kafka event publisher, or nil when
// Kafka is disabled.
func ProvideEventPublisher(cfg *config.Config) (repository.EventPublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideMarketData creates the daily aggregates client, or nil when
// ingestion is disabled.
func ProvideMarketData(cfg *config.Config, lgr *applogger.Logger) (repository.MarketData, error) {
	if !cfg.MarketData.Enabled {
		return nil, nil
	}

	client, err := marketdata.NewClient(marketdata.Config{
		BaseURL:        cfg.MarketData.BaseURL,
		APIKey:         cfg.MarketData.APIKey,
		Timeout:        cfg.MarketData.Timeout,
		RequestsPerSec: cfg.MarketData.RequestsPerSec,
		MaxRetries:     cfg.MarketData.MaxRetries,
	}, lgr)
	if err != nil {
		return nil, fmt.Errorf("marketdata client: %w", err)
	}
	return client, nil
}

// ProvideWindowParams builds the rolling window sizes from config.
func ProvideWindowParams(cfg *config.Config) window.Params {
	return window.Params{
		Short:  cfg.Signals.ShortWindow,
		Long:   cfg.Signals.LongWindow,
		Volume: cfg.Report.VolumeWindow,
	}
}

// ProvideReportParams builds the report thresholds from config.
func ProvideReportParams(cfg *config.Config) usecase.ReportParams {
	return usecase.ReportParams{
		VolumeWindow:  cfg.Report.VolumeWindow,
		GainThreshold: cfg.Report.GainThreshold,
		SpikeMultiple: cfg.Report.VolumeSpikeMultiple,
		TopStocks:     cfg.Report.TopStocks,
		TopIndustries: cfg.Report.TopIndustries,
	}
}

// ProvideIngestUseCase creates the ingestion use case when a market data
// source is configured.
func ProvideIngestUseCase(
	market repository.MarketData,
	store repository.SeriesStore,
	companies repository.CompanyStore,
	mtr repository.Metrics,
	lgr *applogger.Logger,
) (*usecase.IngestUseCase, error) {
	if market == nil {
		return nil, nil
	}
	return usecase.NewIngestUseCase(market, store, companies, mtr, lgr)
}

// ProvideScanUseCase creates the incremental scan use case.
func ProvideScanUseCase(
	cfg *config.Config,
	store repository.SeriesStore,
	publisher repository.EventPublisher,
	cacheSvc cache.Service,
	mtr repository.Metrics,
	lgr *applogger.Logger,
	params window.Params,
) (*usecase.ScanUseCase, error) {
	return usecase.NewScanUseCase(store, publisher, cacheSvc, mtr, lgr, params, cfg.Signals.Workers)
}

// ProvideDailyReportUseCase creates the daily report builder.
func ProvideDailyReportUseCase(
	store repository.SeriesStore,
	companies repository.CompanyStore,
	mtr repository.Metrics,
	lgr *applogger.Logger,
	params usecase.ReportParams,
) (*usecase.DailyReportUseCase, error) {
	return usecase.NewDailyReportUseCase(store, companies, mtr, lgr, params)
}

// ProvideTrailingReportUseCase creates the trailing report builder.
func ProvideTrailingReportUseCase(
	store repository.SeriesStore,
	companies repository.CompanyStore,
	mtr repository.Metrics,
	lgr *applogger.Logger,
	params usecase.ReportParams,
) (*usecase.TrailingReportUseCase, error) {
	return usecase.NewTrailingReportUseCase(store, companies, mtr, lgr, params)
}

// ProvideJobs builds the queue job handlers. Job payloads mirror the POST
// bodies, so enqueued and inline requests share one code path.
func ProvideJobs(
	cfg *config.Config,
	scan *usecase.ScanUseCase,
	daily *usecase.DailyReportUseCase,
	trailing *usecase.TrailingReportUseCase,
	lgr *applogger.Logger,
) []queue.Job {
	return []queue.Job{
		api.NewScanJob(scan, lgr),
		api.NewDailyReportJob(daily, lgr, cfg.Report.OutputDir),
		api.NewTrailingReportJob(trailing, lgr, cfg.Report.OutputDir, cfg.Report.TrailingDays),
	}
}

// redisBacked is satisfied by the redis and layered caches.
type redisBacked interface {
	Client() *redis.Client
}

// ProvideQueueService creates the job publisher, or nil when the queue is
// disabled. The queue shares the redis connection owned by the cache;
// config validation guarantees the redis backend whenever the queue is on.
func ProvideQueueService(cfg *config.Config, lgr *applogger.Logger, cacheSvc cache.Service) (queue.QueueService, error) {
	if !cfg.Queue.Enabled {
		return nil, nil
	}

	rc, ok := cacheSvc.(redisBacked)
	if !ok {
		return nil, fmt.Errorf("queue requires the redis cache backend")
	}
	return queue.NewRedisPublisher(lgr, rc.Client()), nil
}

// ProvideQueueConsumer creates the worker-side queue with all jobs
// registered, or nil when the queue is disabled. The consumer is not
// started here; App.Run starts and stops it.
func ProvideQueueConsumer(
	cfg *config.Config,
	lgr *applogger.Logger,
	cacheSvc cache.Service,
	jobs []queue.Job,
) (*queue.RedisQueue, error) {
	if !cfg.Queue.Enabled {
		return nil, nil
	}

	rc, ok := cacheSvc.(redisBacked)
	if !ok {
		return nil, fmt.Errorf("queue requires the redis cache backend")
	}
	return queue.NewRedisConsumer(lgr, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), jobs), nil
}

// ProvideScheduler creates the daily run scheduler, or nil when disabled.
func ProvideScheduler(
	cfg *config.Config,
	ingest *usecase.IngestUseCase,
	scan *usecase.ScanUseCase,
	daily *usecase.DailyReportUseCase,
	trailing *usecase.TrailingReportUseCase,
	lgr *applogger.Logger,
) (*scheduler.Scheduler, error) {
	if !cfg.Schedule.Enabled {
		return nil, nil
	}
	return scheduler.New(scheduler.Config{
		RunAt:        cfg.Schedule.RunAt,
		Timezone:     cfg.Schedule.Timezone,
		TrailingDays: cfg.Report.TrailingDays,
		OutputDir:    cfg.Report.OutputDir,
	}, ingest, scan, daily, trailing, lgr)
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(
	cfg *config.Config,
	lgr *applogger.Logger,
	scan *usecase.ScanUseCase,
	daily *usecase.DailyReportUseCase,
	trailing *usecase.TrailingReportUseCase,
	store repository.SeriesStore,
	cacheSvc cache.Service,
	jobs queue.QueueService,
) xhttp.Handler {
	return api.NewReportsHandler(lgr, scan, daily, trailing, store, cacheSvc, jobs, api.Options{
		Backend:      cfg.Store.Backend,
		CacheTTL:     cfg.Cache.TTL,
		OutputDir:    cfg.Report.OutputDir,
		TrailingDays: cfg.Report.TrailingDays,
	})
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	handler xhttp.Handler,
	sched *scheduler.Scheduler,
	consumer *queue.RedisQueue,
	store repository.SeriesStore,
	publisher repository.EventPublisher,
) *server.App {
	return server.New(cfg, lgr, handler, sched, consumer, store, publisher)
}
