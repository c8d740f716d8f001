package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobResultStore keeps the outcome of jobs executed in-process so Poll can
// observe them from any instance sharing the store.
type JobResultStore interface {
	Put(ctx context.Context, jobID string, result PollResult) error
	Get(ctx context.Context, jobID string) (PollResult, bool, error)
}

// RedisJobResultStore stores results as JSON with a TTL
type RedisJobResultStore struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisJobResultStore creates a redis-backed result store
func NewRedisJobResultStore(rc *redis.Client, prefix string, ttl time.Duration) *RedisJobResultStore {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisJobResultStore{rc: rc, prefix: prefix, ttl: ttl}
}

func (s *RedisJobResultStore) key(jobID string) string {
	return fmt.Sprintf("%sjob-result:%s", s.prefix, jobID)
}

func (s *RedisJobResultStore) Put(ctx context.Context, jobID string, result PollResult) error {
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.rc.Set(ctx, s.key(jobID), b, s.ttl).Err()
}

func (s *RedisJobResultStore) Get(ctx context.Context, jobID string) (PollResult, bool, error) {
	b, err := s.rc.Get(ctx, s.key(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return PollResult{}, false, nil
		}
		return PollResult{}, false, err
	}
	var out PollResult
	if err := json.Unmarshal(b, &out); err != nil {
		return PollResult{}, false, err
	}
	return out, true, nil
}

// MemoryJobResultStore is a process-local result store
type MemoryJobResultStore struct {
	mu      sync.RWMutex
	results map[string]PollResult
}

// NewMemoryJobResultStore creates an in-memory result store
func NewMemoryJobResultStore() *MemoryJobResultStore {
	return &MemoryJobResultStore{results: make(map[string]PollResult)}
}

func (s *MemoryJobResultStore) Put(_ context.Context, jobID string, result PollResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[jobID] = result
	return nil
}

func (s *MemoryJobResultStore) Get(_ context.Context, jobID string) (PollResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[jobID]
	return r, ok, nil
}
