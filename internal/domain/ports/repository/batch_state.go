package repository

import (
	"context"
	"time"
)

// BatchSignalRepository is the externally shared control-signal store for
// batch runs. Every entry carries a bounded TTL so a crashed worker cannot
// leave a stuck pause or cancel flag behind.
type BatchSignalRepository interface {
	SetPaused(ctx context.Context, runID string, paused bool) error
	IsPaused(ctx context.Context, runID string) bool
	SetCancelled(ctx context.Context, runID string) error
	IsCancelled(ctx context.Context, runID string) bool
	SetSkip(ctx context.Context, runID string) error
	ShouldSkip(ctx context.Context, runID string) bool
	ClearSkip(ctx context.Context, runID string) error
	// Cleanup removes all three flags for a run.
	Cleanup(ctx context.Context, runID string) error
}

// RunLocker provides the system-wide single-flight guard for batch runs.
type RunLocker interface {
	// TryAcquire claims the active-run marker for runID. It never queues:
	// domain.ErrBatchActive is returned when a different run holds it, along
	// with the holder's run id.
	TryAcquire(ctx context.Context, runID string, ttl time.Duration) (holder string, err error)
	Release(ctx context.Context, runID string) error
	// ActiveRun returns the current holder ("" when idle).
	ActiveRun(ctx context.Context) (string, error)
}
