package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements the Store interface using Redis as a backend.
// Replicas behind a load balancer share reports through it; each report
// expires after the configured TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewRedisStore creates a new Redis-backed store.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - ttl: Report expiration duration (0 uses default of 30 minutes)
//
// Returns an error if the connection to Redis fails or if parameters are invalid.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}

	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

// KeyPrefix prefixes every report key written by RedisStore.
const KeyPrefix = "anomalyd:report:"

func reportKey(source string) string {
	return KeyPrefix + SourceKey(source)
}

// Put stores a report in Redis with TTL-based expiration.
// The key format is "anomalyd:report:{sha256(source)}".
func (r *RedisStore) Put(ctx context.Context, report Report) error {
	if report.Source == "" {
		return errors.New("report source required")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := r.client.Set(ctx, reportKey(report.Source), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store report in redis: %w", err)
	}

	return nil
}

// GetLatest retrieves the latest report for a source.
//
// Returns:
//   - report: The stored report (zero value if not found)
//   - found: true if a report exists, false if not found or expired
//   - error: non-nil if an error occurred (excluding "not found")
func (r *RedisStore) GetLatest(ctx context.Context, source string) (Report, bool, error) {
	if source == "" {
		return Report{}, false, errors.New("report source required")
	}

	data, err := r.client.Get(ctx, reportKey(source)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Report{}, false, nil
		}
		return Report{}, false, fmt.Errorf("failed to get report from redis: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, false, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return report, true, nil
}

// Close closes the Redis client connection.
// It is safe to call multiple times (idempotent).
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if err != nil && err.Error() == "redis: client is closed" {
		return nil
	}

	return err
}

// Ping checks the Redis connection health.
// Returns an error if the connection is unavailable.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
