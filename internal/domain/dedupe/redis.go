package dedupe

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "nutriplan:request:"
	defaultTTL       = 24 * time.Hour
	pingTimeout      = 5 * time.Second
)

// RedisDeduper shares request IDs between replicas through Redis.
type RedisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	size   atomic.Int64
}

// NewRedisClient parses url, connects and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// NewRedisDeduper creates a deduper backed by client.
func NewRedisDeduper(client *redis.Client, opts ...RedisOption) *RedisDeduper {
	d := &RedisDeduper{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    defaultTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Remember uses SET NX so concurrent replicas agree on a single plan ID.
func (d *RedisDeduper) Remember(ctx context.Context, key, planID string) (string, bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+key, planID, d.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("dedupe: setnx %q: %w", key, err)
	}
	if ok {
		d.size.Add(1)
		return planID, false, nil
	}

	existing, err := d.client.Get(ctx, d.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; claim it again
		return d.Remember(ctx, key, planID)
	}
	if err != nil {
		return "", false, fmt.Errorf("dedupe: get %q: %w", key, err)
	}
	return existing, true, nil
}

func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	n, err := d.client.Del(ctx, d.prefix+key).Result()
	if err != nil {
		return fmt.Errorf("dedupe: del %q: %w", key, err)
	}
	d.size.Add(-n)
	return nil
}

// Size returns the number of keys this instance recorded and has not forgotten.
// Keys expired by Redis are still counted.
func (d *RedisDeduper) Size() int64 {
	return d.size.Load()
}

// Close releases the underlying client.
func (d *RedisDeduper) Close() error {
	return d.client.Close()
}
