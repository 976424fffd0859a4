package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService is the publish side. The API handlers depend on this
// interface only, so inline execution and queued execution stay separate.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// QueueConfig sizes the worker pool and the retry policy.
type QueueConfig struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
}

// Message is the wire form of a queued job. ID is a uuid assigned at
// enqueue time and carried through retries for log correlation.
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Attempts  int
	Timestamp time.Time
}

// ParsePayload converts whatever shape the payload arrived in into *T.
// Locally enqueued payloads come through as structs, redis round-trips
// produce raw JSON.
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		var result T
		if err := json.Unmarshal(p, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &result, nil
	case map[string]interface{}, []interface{}:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		var result T
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &result, nil
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}
}
