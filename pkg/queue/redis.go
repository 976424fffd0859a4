package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"MarketLens/pkg/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// QueueMode selects which halves of the queue a process runs. The API
// publishes, worker processes consume, a single-node deploy does both.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

func (m QueueMode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

const retryTick = 5 * time.Second

// queueKeys are the three redis keys derived from one prefix: the pending
// list jobs wait on, the retry zset scored by due time, and the dead
// letter list for jobs that spent their retry budget.
type queueKeys struct {
	pending string
	retry   string
	dead    string
}

func keysFor(prefix string) queueKeys {
	return queueKeys{
		pending: prefix + ":messages",
		retry:   prefix + ":retry",
		dead:    prefix + ":dlq",
	}
}

// RedisQueue moves scan and report jobs through a redis list. Handlers
// are registered per message type; a failed job is parked in the retry
// zset and pushed back when due.
type RedisQueue struct {
	logger *logger.Logger
	config *QueueConfig
	client *redis.Client
	jobs   map[string]Job
	keys   queueKeys
	mode   QueueMode

	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
	stopCh  chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix overrides the redis key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(q *RedisQueue) {
		q.keys = keysFor(prefix)
	}
}

// NewRedisQueue creates a queue on an existing redis client.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &RedisQueue{
		logger: lgr,
		config: config,
		client: client,
		jobs:   make(map[string]Job),
		keys:   keysFor("marketlens:queue"),
		mode:   mode,
		stopCh: make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	for _, opt := range opts {
		opt(q)
	}

	initQueueMetricsOnce()
	return q
}

// NewRedisPublisher creates a publish-only queue and starts it.
func NewRedisPublisher(lgr *logger.Logger, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	q := NewRedisQueue(lgr, &QueueConfig{}, client, ModeProducerOnly, opts...)
	if err := q.Start(); err != nil {
		lgr.Error("redis publisher start failed", logger.Error(err))
	}
	return q
}

// NewRedisConsumer creates a consuming queue with the given jobs. The
// caller starts it, so workers never run before the rest of the app is
// wired.
func NewRedisConsumer(lgr *logger.Logger, config *QueueConfig, client *redis.Client, jobs []Job, opts ...RedisQueueOption) *RedisQueue {
	q := NewRedisQueue(lgr, config, client, ModeConsumerOnly, opts...)
	if len(jobs) > 0 {
		q.RegisterJobs(jobs)
	}
	return q
}

// RegisterJobs registers multiple jobs.
func (q *RedisQueue) RegisterJobs(jobs []Job) {
	for _, job := range jobs {
		q.RegisterJob(job)
	}
}

// RegisterJob registers a single job. Dispatch happens on Job.Type, so a
// second registration for the same type is refused.
func (q *RedisQueue) RegisterJob(job Job) {
	if q.mode == ModeProducerOnly {
		q.logger.Warn("job registration ignored in producer-only mode",
			logger.String("job", job.Name()))
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}

	q.jobs[job.Type()] = job
	q.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start pings redis and, in consuming modes, launches the worker pool and
// the retry drainer.
func (q *RedisQueue) Start() error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	q.running = true
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := q.client.Ping(ctx).Err(); err != nil {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	if q.mode == ModeProducerOnly {
		q.logger.Info("redis publisher started",
			logger.String("addr", q.client.Options().Addr))
		return nil
	}

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.runWorker(i)
	}
	q.wg.Add(1)
	go q.drainRetries()

	q.logger.Info("redis queue started",
		logger.Int("workers", q.config.Workers),
		logger.String("addr", q.client.Options().Addr),
		logger.String("mode", q.mode.String()))
	return nil
}

// Stop shuts the queue down, waiting for in-flight jobs until ctx expires.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.logger.Info("stopping redis queue...")
	q.cancel()
	if q.mode != ModeProducerOnly {
		close(q.stopCh)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		q.logger.Info("redis queue stopped gracefully")
		return nil
	}
}

// Enqueue pushes a message onto the pending list. In consuming modes the
// type must match a registered job so typos surface at submit time.
func (q *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.running {
		return fmt.Errorf("queue not running")
	}
	if q.mode != ModeProducerOnly {
		if _, exists := q.jobs[msgType]; !exists {
			return fmt.Errorf("no job registered for type: %s", msgType)
		}
	}

	msg := Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := q.client.LPush(ctx, q.keys.pending, data).Err(); err != nil {
		queuePublishedTotal.WithLabelValues(msgType, "error").Inc()
		return fmt.Errorf("lpush: %w", err)
	}
	queuePublishedTotal.WithLabelValues(msgType, "ok").Inc()
	return nil
}

// PublishMessage implements QueueService.
func (q *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return q.Enqueue(ctx, msgType, payload)
}

func (q *RedisQueue) runWorker(id int) {
	defer q.wg.Done()
	q.logger.Info("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-q.stopCh:
			q.logger.Info("queue worker stopping", logger.Int("worker_id", id))
			return
		case <-q.ctx.Done():
			q.logger.Info("queue worker cancelled", logger.Int("worker_id", id))
			return
		default:
			q.popOne()
		}
	}
}

// popOne blocks up to a second for the next message, then dispatches it.
// The short timeout keeps workers responsive to Stop.
func (q *RedisQueue) popOne() {
	ctx, cancel := context.WithTimeout(q.ctx, time.Second)
	defer cancel()

	res, err := q.client.BRPop(ctx, time.Second, q.keys.pending).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) ||
			errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			return
		}
		q.logger.Error("brpop error", logger.Error(err))
		time.Sleep(time.Second)
		return
	}
	if len(res) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		q.logger.Error("unmarshal message", logger.Error(err))
		return
	}
	q.dispatch(msg)
}

func (q *RedisQueue) dispatch(msg Message) {
	job, exists := q.jobs[msg.Type]
	if !exists {
		q.logger.Error("no job found",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		queueProcessedTotal.WithLabelValues(msg.Type, "unknown").Inc()
		return
	}

	start := time.Now()
	err := job.Handle(q.ctx, rawPayload(q.logger, msg.Payload))
	elapsed := time.Since(start)
	queueJobSeconds.WithLabelValues(msg.Type).Observe(elapsed.Seconds())

	switch {
	case err == nil:
		queueProcessedTotal.WithLabelValues(msg.Type, "ok").Inc()
	case errors.Is(err, context.Canceled):
		q.logger.Warn("job cancelled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", elapsed.Milliseconds()))
	default:
		queueProcessedTotal.WithLabelValues(msg.Type, "error").Inc()
		q.retryOrPark(msg, job, err)
	}
}

// rawPayload rewraps decoded JSON maps as raw JSON so job handlers can
// unmarshal into their own payload structs.
func rawPayload(lgr *logger.Logger, payload interface{}) interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return payload
	}
	buf, err := json.Marshal(m)
	if err != nil {
		lgr.Error("convert payload", logger.Error(err))
		return payload
	}
	return json.RawMessage(buf)
}

func (q *RedisQueue) retryOrPark(msg Message, job Job, err error) {
	q.logger.Error("job failed",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= q.config.RetryLimit {
		q.logger.Error("retry budget spent",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		q.parkDead(msg)
		return
	}

	msg.Attempts++
	due := time.Now().Add(q.config.RetryDelay)
	data, merr := json.Marshal(msg)
	if merr != nil {
		q.logger.Error("marshal retry", logger.Error(merr))
		return
	}
	zerr := q.client.ZAdd(context.Background(), q.keys.retry, redis.Z{
		Score:  float64(due.Unix()),
		Member: data,
	}).Err()
	if zerr != nil {
		q.logger.Error("zadd retry", logger.Error(zerr))
		return
	}
	queueRetriesTotal.WithLabelValues(msg.Type).Inc()
	q.logger.Info("retry scheduled",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("due", due.Format(time.RFC3339)))
}

func (q *RedisQueue) parkDead(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		q.logger.Error("marshal dlq", logger.Error(err))
		return
	}
	if err := q.client.LPush(context.Background(), q.keys.dead, data).Err(); err != nil {
		q.logger.Error("lpush dlq", logger.Error(err))
		return
	}
	queueDeadTotal.WithLabelValues(msg.Type).Inc()
}

// drainRetries moves due retries back to the pending list on a fixed tick
// and refreshes the depth gauges on the way.
func (q *RedisQueue) drainRetries() {
	defer q.wg.Done()
	q.logger.Info("retry drainer started")

	ticker := time.NewTicker(retryTick)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			q.logger.Info("retry drainer stopping")
			return
		case <-q.ctx.Done():
			q.logger.Info("retry drainer cancelled")
			return
		case <-ticker.C:
			q.moveDue()
			q.sampleDepth()
		}
	}
}

func (q *RedisQueue) moveDue() {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := q.client.ZRangeByScore(q.ctx, q.keys.retry, &redis.ZRangeBy{
		Min: "0",
		Max: now,
	}).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		q.logger.Error("fetch retry messages", logger.Error(err))
		return
	}

	for _, member := range due {
		select {
		case <-q.ctx.Done():
			return
		default:
		}

		// Remove and requeue in one transaction so the message cannot end
		// up on both keys.
		pipe := q.client.TxPipeline()
		pipe.ZRem(q.ctx, q.keys.retry, member)
		pipe.LPush(q.ctx, q.keys.pending, member)
		if _, err := pipe.Exec(q.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			q.logger.Error("move retry to queue", logger.Error(err))
		}
	}
}

func (q *RedisQueue) sampleDepth() {
	if n, err := q.client.LLen(q.ctx, q.keys.pending).Result(); err == nil {
		queueDepth.WithLabelValues("pending").Set(float64(n))
	}
	if n, err := q.client.ZCard(q.ctx, q.keys.retry).Result(); err == nil {
		queueDepth.WithLabelValues("retry").Set(float64(n))
	}
	if n, err := q.client.LLen(q.ctx, q.keys.dead).Result(); err == nil {
		queueDepth.WithLabelValues("dead").Set(float64(n))
	}
}

var (
	queuePublishedTotal *prometheus.CounterVec
	queueProcessedTotal *prometheus.CounterVec
	queueRetriesTotal   *prometheus.CounterVec
	queueDeadTotal      *prometheus.CounterVec
	queueJobSeconds     *prometheus.HistogramVec
	queueDepth          *prometheus.GaugeVec
	queueMetricsOnce    = make(chan struct{}, 1)
)

func initQueueMetricsOnce() {
	select {
	case queueMetricsOnce <- struct{}{}:
		queuePublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "marketlens",
				Name:      "queue_published_total",
				Help:      "Messages submitted to the job queue",
			},
			[]string{"type", "result"},
		)
		queueProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "marketlens",
				Name:      "queue_processed_total",
				Help:      "Job executions by outcome",
			},
			[]string{"type", "result"},
		)
		queueRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "marketlens",
				Name:      "queue_retries_total",
				Help:      "Jobs rescheduled after a failure",
			},
			[]string{"type"},
		)
		queueDeadTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "marketlens",
				Name:      "queue_dead_total",
				Help:      "Jobs moved to the dead letter list",
			},
			[]string{"type"},
		)
		queueJobSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "marketlens",
				Name:      "queue_job_seconds",
				Help:      "Job handler duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		)
		queueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "marketlens",
				Name:      "queue_depth",
				Help:      "Queued message counts by state",
			},
			[]string{"state"},
		)
	default:
		// already initialized
	}
}
