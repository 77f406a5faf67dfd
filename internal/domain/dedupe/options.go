package dedupe

import "time"

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of keys to keep in memory.
// If maxSize > 0 the oldest key is evicted once the limit is reached.
// If maxSize <= 0 the deduper is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// RedisOption applies a configuration option to the RedisDeduper.
type RedisOption func(*RedisDeduper)

// WithKeyPrefix namespaces every key written to Redis.
func WithKeyPrefix(prefix string) RedisOption {
	return func(d *RedisDeduper) {
		d.prefix = prefix
	}
}

// WithTTL sets how long a request ID is remembered. Zero keeps keys forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(d *RedisDeduper) {
		if ttl >= 0 {
			d.ttl = ttl
		}
	}
}
