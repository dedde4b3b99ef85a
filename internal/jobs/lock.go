package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serialises submissions that share an idempotency key.
type Locker interface {
	// Acquire returns ok=false when another holder has the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// deletes the lock only if we still own it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: "studybuddy:joblock:"}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire job lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		releaseScript.Run(context.Background(), l.rdb, []string{lockKey}, token)
	}, true, nil
}

// MemoryLocker is the single-process fallback when Redis is not configured.
type MemoryLocker struct {
	locks map[string]*lockEntry
	mu    sync.Mutex
	done  chan struct{}
	once  sync.Once
}

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// NewMemoryLocker starts a janitor goroutine; call Stop when done.
func NewMemoryLocker(cleanupEvery time.Duration) *MemoryLocker {
	ml := &MemoryLocker{
		locks: make(map[string]*lockEntry),
		done:  make(chan struct{}),
	}
	go ml.cleanupLoop(cleanupEvery)
	return ml
}

func (ml *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := time.Now()
	if entry, held := ml.locks[key]; held && now.Before(entry.expiresAt) {
		return nil, false, nil
	}

	token := uuid.NewString()
	ml.locks[key] = &lockEntry{token: token, expiresAt: now.Add(ttl)}
	return func() {
		ml.mu.Lock()
		defer ml.mu.Unlock()
		if entry, held := ml.locks[key]; held && entry.token == token {
			delete(ml.locks, key)
		}
	}, true, nil
}

func (ml *MemoryLocker) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ml.done:
			return
		case <-ticker.C:
			ml.cleanup()
		}
	}
}

func (ml *MemoryLocker) cleanup() {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := time.Now()
	for key, entry := range ml.locks {
		if now.After(entry.expiresAt) {
			delete(ml.locks, key)
		}
	}
}

// Size returns the number of held or not yet collected locks.
func (ml *MemoryLocker) Size() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	return len(ml.locks)
}

func (ml *MemoryLocker) Stop() {
	ml.once.Do(func() { close(ml.done) })
}
