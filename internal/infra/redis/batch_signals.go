package redis

import (
	"context"
	"fmt"
	"time"

	"docstream/internal/domain/ports/repository"
)

const (
	pauseKeyPrefix  = "batch:pause:"
	cancelKeyPrefix = "batch:cancel:"
	skipKeyPrefix   = "batch:skip:"
)

var _ repository.BatchSignalRepository = (*BatchSignals)(nil)

// BatchSignals stores the pause/cancel/skip flags for a batch run. Every key
// carries the configured TTL so a crashed worker cannot wedge the system.
type BatchSignals struct {
	client RedisClient
	ttl    time.Duration
}

func NewBatchSignals(client RedisClient, ttl time.Duration) *BatchSignals {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &BatchSignals{client: client, ttl: ttl}
}

func (s *BatchSignals) flag(ctx context.Context, key string) bool {
	val, err := s.client.Get(ctx, key)
	if err != nil {
		return false // missing key and transport errors both read as unset
	}
	return val == "1"
}

func (s *BatchSignals) SetPaused(ctx context.Context, runID string, paused bool) error {
	val := "0"
	if paused {
		val = "1"
	}
	return s.client.Set(ctx, pauseKeyPrefix+runID, val, s.ttl)
}

func (s *BatchSignals) IsPaused(ctx context.Context, runID string) bool {
	return s.flag(ctx, pauseKeyPrefix+runID)
}

func (s *BatchSignals) SetCancelled(ctx context.Context, runID string) error {
	return s.client.Set(ctx, cancelKeyPrefix+runID, "1", s.ttl)
}

func (s *BatchSignals) IsCancelled(ctx context.Context, runID string) bool {
	return s.flag(ctx, cancelKeyPrefix+runID)
}

func (s *BatchSignals) SetSkip(ctx context.Context, runID string) error {
	return s.client.Set(ctx, skipKeyPrefix+runID, "1", s.ttl)
}

func (s *BatchSignals) ShouldSkip(ctx context.Context, runID string) bool {
	return s.flag(ctx, skipKeyPrefix+runID)
}

func (s *BatchSignals) ClearSkip(ctx context.Context, runID string) error {
	return s.client.Del(ctx, skipKeyPrefix+runID)
}

func (s *BatchSignals) Cleanup(ctx context.Context, runID string) error {
	err := s.client.Del(ctx,
		pauseKeyPrefix+runID,
		cancelKeyPrefix+runID,
		skipKeyPrefix+runID,
	)
	if err != nil {
		return fmt.Errorf("cleanup batch signals for %s: %w", runID, err)
	}
	return nil
}
