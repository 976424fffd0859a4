package queue

import "context"

// Job is one unit of background work the consumer can run.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type this job consumes.
	Type() string

	// Handle runs the job against the message payload.
	Handle(ctx context.Context, payload interface{}) error
}
