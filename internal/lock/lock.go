// Package lock provides the cross-process guard that keeps two newsdesk
// instances from running the same ingestion cycle at once.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/IshaanNene/newsdesk/internal/config"
)

// ErrLocked is returned by Acquire when another holder owns the lock.
var ErrLocked = errors.New("lock held by another instance")

// Locker guards a critical section across processes.
type Locker interface {
	// Acquire takes the lock and returns a function that releases it.
	Acquire(ctx context.Context) (release func(), err error)
	Close() error
}

// Nop is a Locker that always succeeds. Used when locking is disabled.
type Nop struct{}

func (Nop) Acquire(context.Context) (func(), error) { return func() {}, nil }
func (Nop) Close() error                             { return nil }

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-key SET NX lock with a TTL.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// New returns a RedisLocker when locking is enabled, otherwise Nop.
func New(ctx context.Context, cfg config.LockConfig, logger *slog.Logger) (Locker, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedisLocker(client, cfg.Key, cfg.TTL, logger), nil
}

// NewRedisLocker wraps an existing client.
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger.With("component", "lock", "key", key),
	}
}

// Acquire sets the key if absent. The TTL bounds how long a crashed holder
// can block other instances.
func (l *RedisLocker) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	l.logger.Debug("lock acquired", "ttl", l.ttl)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("lock release failed", "error", err)
		}
	}, nil
}

// Close closes the underlying client.
func (l *RedisLocker) Close() error { return l.client.Close() }
