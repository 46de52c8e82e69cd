package redis

import (
	"context"
	"time"

	"docstream/internal/domain"
	"docstream/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

// activeRunKey is the system-wide single-flight marker for batch runs.
const activeRunKey = "batch:active_run"

var _ repository.RunLocker = (*RunLock)(nil)

// RunLock implements the active-run guard with SET NX. The stored value is
// the holder's run id, so release is compare-and-delete and a second start
// attempt learns who blocked it.
type RunLock struct {
	cli *redis.Client
}

func NewRunLock(c *Client) *RunLock {
	return &RunLock{cli: c.Raw()}
}

func (l *RunLock) TryAcquire(ctx context.Context, runID string, ttl time.Duration) (string, error) {
	ok, err := l.cli.SetNX(ctx, activeRunKey, runID, ttl).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return runID, nil
	}
	holder, err := l.cli.Get(ctx, activeRunKey).Result()
	if err == redis.Nil {
		// Holder expired between SETNX and GET; caller retries by design.
		return "", domain.ErrBatchActive
	}
	if err != nil {
		return "", err
	}
	if holder == runID {
		return runID, nil
	}
	return holder, domain.ErrBatchActive
}

var luaRelease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RunLock) Release(ctx context.Context, runID string) error {
	_, err := luaRelease.Run(ctx, l.cli, []string{activeRunKey}, runID).Result()
	return err
}

func (l *RunLock) ActiveRun(ctx context.Context) (string, error) {
	holder, err := l.cli.Get(ctx, activeRunKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return holder, err
}
