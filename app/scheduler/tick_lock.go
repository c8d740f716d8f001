package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TickLock keeps a single scheduler instance dispatching at a time
type TickLock interface {
	// Acquire returns ok=false when another instance holds the lock
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// releaseScript deletes the key only if we still own it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTickLock is a SETNX lease in Redis
type RedisTickLock struct {
	rc  *redis.Client
	key string
	ttl time.Duration
}

func NewRedisTickLock(rc *redis.Client, prefix string, ttl time.Duration) *RedisTickLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisTickLock{rc: rc, key: fmt.Sprintf("%sscheduler:tick", prefix), ttl: ttl}
}

func (l *RedisTickLock) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.rc.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rc, []string{l.key}, token).Err()
	}
	return release, true, nil
}

// localTickLock serializes ticks within one process
type localTickLock struct {
	ch chan struct{}
}

func newLocalTickLock() *localTickLock {
	return &localTickLock{ch: make(chan struct{}, 1)}
}

func (l *localTickLock) Acquire(ctx context.Context) (func(), bool, error) {
	select {
	case l.ch <- struct{}{}:
		return func() { <-l.ch }, true, nil
	default:
		return nil, false, nil
	}
}
