package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Producer wraps a kafka-go writer. The engine publishes signal events
// through it keyed by symbol, so one symbol's events stay ordered within
// a partition.
type Producer struct {
	writer *kafka.Writer
}

// Message represents a Kafka message.
type Message struct {
	Key   []byte
	Value interface{}
}

// NewProducer creates a new Kafka producer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &ProducerConfig{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1048576,
		BatchTimeout: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	initProducerMetricsOnce()
	return &Producer{writer: newWriter(cfg)}, nil
}

func newWriter(cfg *ProducerConfig) *kafka.Writer {
	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}
}

// Publish sends a single message to the topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	v, err := encodeValue(value)
	if err != nil {
		return err
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: v,
		Time:  time.Now(),
	})
	observePublish(topic, int64(len(v)), 1, time.Since(start), err)
	return err
}

// PublishBatch sends one scan's worth of messages in a single write.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(messages))
	var totalBytes int64
	for _, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Topic: topic,
			Key:   m.Key,
			Value: v,
			Time:  time.Now(),
		})
		totalBytes += int64(len(v))
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, msgs...)
	observePublish(topic, totalBytes, len(messages), time.Since(start), err)
	return err
}

// Close closes the producer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// encodeValue passes through raw bytes and strings, and marshals anything
// else as JSON.
func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		buf, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return buf, nil
	}
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

var (
	kafkaPublishedTotal *prometheus.CounterVec
	kafkaErrorsTotal    *prometheus.CounterVec
	kafkaBytesTotal     *prometheus.CounterVec
	kafkaPublishSeconds *prometheus.HistogramVec
	kafkaMetricsOnce    = make(chan struct{}, 1)
)

func initProducerMetricsOnce() {
	select {
	case kafkaMetricsOnce <- struct{}{}:
		kafkaPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "marketlens",
				Name:      "kafka_published_total",
				Help:      "Messages published to Kafka",
			},
			[]string{"topic", "result"},
		)
		kafkaErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "marketlens",
				Name:      "kafka_publish_errors_total",
				Help:      "Failed publish calls",
			},
			[]string{"topic"},
		)
		kafkaBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "marketlens",
				Name:      "kafka_published_bytes_total",
				Help:      "Payload bytes published",
			},
			[]string{"topic"},
		)
		kafkaPublishSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "marketlens",
				Name:      "kafka_publish_seconds",
				Help:      "Publish call latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"topic"},
		)
	default:
		// already initialized
	}
}

func observePublish(topic string, bytes int64, count int, dur time.Duration, err error) {
	if kafkaPublishedTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		kafkaErrorsTotal.WithLabelValues(topic).Inc()
	}
	kafkaPublishedTotal.WithLabelValues(topic, result).Add(float64(count))
	kafkaBytesTotal.WithLabelValues(topic).Add(float64(bytes))
	kafkaPublishSeconds.WithLabelValues(topic).Observe(dur.Seconds())
}
