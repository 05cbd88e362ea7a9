package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DisputeLocker serializes state transitions per dispute id. Different
// disputes proceed concurrently; all transitions for one dispute are
// at-most-one in flight.
type DisputeLocker interface {
	// Lock blocks until the per-dispute lock is held or ctx is done, and
	// returns the release function.
	Lock(ctx context.Context, disputeID string) (func(), error)
}

const (
	lockTTL          = 30 * time.Second
	lockPollInterval = 50 * time.Millisecond
)

// releaseScript deletes the lock only when still held by this owner.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`)

type redisDisputeLocker struct {
	client *redis.Client
}

// NewRedisDisputeLocker coordinates transition locks across instances.
func NewRedisDisputeLocker(client *redis.Client) DisputeLocker {
	return &redisDisputeLocker{client: client}
}

func (l *redisDisputeLocker) Lock(ctx context.Context, disputeID string) (func(), error) {
	key := "disputes:lock:" + disputeID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

type localDisputeLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalDisputeLocker serializes transitions in process, for tests and
// single-instance deployments without Redis.
func NewLocalDisputeLocker() DisputeLocker {
	return &localDisputeLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localDisputeLocker) Lock(ctx context.Context, disputeID string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[disputeID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[disputeID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}
