package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// cycleLockKey is the Redis key guarding the reconciliation cycle.
const cycleLockKey = "endorsement:cycle:lock"

// releaseScript deletes the lock only when this holder still owns it, so
// a holder that outlived its TTL cannot free a lock someone else took.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisCycleLock implements CycleLock on Redis. Suitable for deployments
// running more than one instance against the same ledger; the TTL bounds
// how long a crashed holder can block the next cycle.
type RedisCycleLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	holder string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisCycleLock creates a cycle lock backed by a new Redis connection.
func NewRedisCycleLock(cfg RedisConfig, ttl time.Duration) (*RedisCycleLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCycleLockWithClient(client, ttl), nil
}

// NewRedisCycleLockWithClient creates a cycle lock on an existing client.
// This is useful when sharing a client across components.
func NewRedisCycleLockWithClient(client *redis.Client, ttl time.Duration) *RedisCycleLock {
	return &RedisCycleLock{
		client: client,
		key:    cycleLockKey,
		ttl:    ttl,
		holder: uuid.NewString(),
	}
}

// Acquire attempts to take the lock with SETNX. Returns false when
// another instance holds it.
func (l *RedisCycleLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.holder, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire cycle lock: %w", err)
	}
	return ok, nil
}

// Release frees the lock if this instance still holds it.
func (l *RedisCycleLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.holder).Err(); err != nil {
		return fmt.Errorf("failed to release cycle lock: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (l *RedisCycleLock) Close() error {
	return l.client.Close()
}

// Ensure RedisCycleLock implements CycleLock
var _ CycleLock = (*RedisCycleLock)(nil)
