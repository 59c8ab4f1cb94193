package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"club-pos/internal/logger"

	"github.com/go-redis/redis/v8"
)

const attemptKeyPrefix = "pos:auth_attempts:"

// InitializeRedis connects to Redis and checks the connection.
func InitializeRedis(addr, password string, db int, log *logger.Logger) (*redis.Client, error) {
	if log == nil {
		log = logger.Discard()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error("AUTH", fmt.Sprintf("Failed to connect to Redis at %s: %v", addr, err))
		_ = client.Close()
		return nil, err
	}

	log.Info("AUTH", fmt.Sprintf("Connected to Redis at %s for login attempt tracking", addr))
	return client, nil
}

// RedisLimiter counts failed logins per client key in Redis. The counter
// expires Window after the first failure. MaxAttempts <= 0 disables it.
type RedisLimiter struct {
	Client      *redis.Client
	MaxAttempts int
	Window      time.Duration
}

func NewRedisLimiter(client *redis.Client, maxAttempts int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{Client: client, MaxAttempts: maxAttempts, Window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.MaxAttempts <= 0 {
		return true, nil
	}
	n, err := l.Client.Get(ctx, attemptKeyPrefix+key).Int()
	if err == redis.Nil {
		return true, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to read login attempts: %w", err)
	}
	return n < l.MaxAttempts, nil
}

func (l *RedisLimiter) Fail(ctx context.Context, key string) error {
	if l.MaxAttempts <= 0 {
		return nil
	}
	redisKey := attemptKeyPrefix + key
	n, err := l.Client.Incr(ctx, redisKey).Result()
	if err != nil {
		return fmt.Errorf("failed to count login attempt: %w", err)
	}
	if n == 1 {
		if err := l.Client.Expire(ctx, redisKey, l.Window).Err(); err != nil {
			return fmt.Errorf("failed to set attempt window: %w", err)
		}
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.Client.Del(ctx, attemptKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	return nil
}

type attempts struct {
	count   int
	expires time.Time
}

// MemoryLimiter is the single-process fallback when no Redis is configured.
type MemoryLimiter struct {
	MaxAttempts int
	Window      time.Duration

	mu    sync.Mutex
	seen  map[string]attempts
	clock func() time.Time
}

func NewMemoryLimiter(maxAttempts int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		MaxAttempts: maxAttempts,
		Window:      window,
		seen:        make(map[string]attempts),
		clock:       time.Now,
	}
}

func (l *MemoryLimiter) current(key string) attempts {
	a, ok := l.seen[key]
	if ok && !l.clock().Before(a.expires) {
		delete(l.seen, key)
		return attempts{}
	}
	return a
}

// sweep drops every expired entry so keys that never come back do not pile up.
func (l *MemoryLimiter) sweep() {
	now := l.clock()
	for key, a := range l.seen {
		if !now.Before(a.expires) {
			delete(l.seen, key)
		}
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.MaxAttempts <= 0 {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current(key).count < l.MaxAttempts, nil
}

func (l *MemoryLimiter) Fail(_ context.Context, key string) error {
	if l.MaxAttempts <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep()
	a := l.current(key)
	if a.count == 0 {
		a.expires = l.clock().Add(l.Window)
	}
	a.count++
	l.seen[key] = a
	return nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, key)
	return nil
}
