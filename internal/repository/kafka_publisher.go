package repository

import (
	"context"

	"MarketLens/internal/domain/models"
	pkgkafka "MarketLens/pkg/kafka"
	"MarketLens/pkg/util"
)

// KafkaPublisher sends signal events to one topic as JSON, keyed by
// symbol so consumers see per-symbol ordering.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// eventMessage is the wire shape of one published event.
type eventMessage struct {
	Symbol      string  `json:"symbol"`
	EventDate   string  `json:"event_date"`
	EventType   string  `json:"event_type"`
	ClosePrice  float64 `json:"close_price"`
	ShortSMA    float64 `json:"short_sma"`
	LongSMA     float64 `json:"long_sma"`
	ShortWindow int     `json:"short_window"`
	LongWindow  int     `json:"long_window"`
}

func (p *KafkaPublisher) PublishEvents(ctx context.Context, events []models.SignalEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]pkgkafka.Message, len(events))
	for i, e := range events {
		msgs[i] = pkgkafka.Message{
			Key: []byte(e.Symbol),
			Value: eventMessage{
				Symbol:      e.Symbol,
				EventDate:   util.FormatDate(e.EventDate),
				EventType:   string(e.Type),
				ClosePrice:  e.ClosePrice,
				ShortSMA:    e.ShortSMA,
				LongSMA:     e.LongSMA,
				ShortWindow: e.ShortWindow,
				LongWindow:  e.LongWindow,
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
