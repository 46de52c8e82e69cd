package adapter

import "context"

// EventPublisher fans typed events out to live listeners. Publishing is
// best-effort by contract: implementations log transport failures and return
// normally, so a dead event channel can never fail a job.
type EventPublisher interface {
	Publish(ctx context.Context, event string, data map[string]any)
}
