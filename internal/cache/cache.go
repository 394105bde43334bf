// Package cache is the response cache in front of the disclosure read
// paths. It stores already-masked payloads under viewer-scoped
// fingerprints; it is strictly advisory, so every failure here degrades
// to a miss and the caller recomputes from the store.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// TTL classes. Viewer-scoped payloads always take the short class: a
// viewer's entry state can flip at any moment regardless of how old the
// session is. Only anonymous payloads for long-archived sessions earn
// the long class, since an archived result set cannot change retroactively.
const (
	DefaultShortTTL = 45 * time.Second
	DefaultLongTTL  = 15 * time.Minute

	// archiveAge is how old a session must be before its anonymous
	// payloads move to the long TTL class.
	archiveAge = 14 * 24 * time.Hour
)

// ResponseCache wraps a Redis client with a circuit breaker. A nil
// *ResponseCache is valid and behaves as a cache that always misses,
// which is how the service runs when REDIS_ADDR is unset.
type ResponseCache struct {
	client   *redis.Client
	breaker  *gobreaker.CircuitBreaker
	shortTTL time.Duration
	longTTL  time.Duration
}

// New connects a response cache to the Redis at addr. Returns nil when
// addr is empty: callers treat a nil cache as all-miss.
func New(addr string, shortTTL, longTTL time.Duration) *ResponseCache {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return NewWithClient(client, shortTTL, longTTL)
}

// NewWithClient builds a cache over an existing client. Tests inject a
// redismock client here.
func NewWithClient(client *redis.Client, shortTTL, longTTL time.Duration) *ResponseCache {
	if shortTTL <= 0 {
		shortTTL = DefaultShortTTL
	}
	if longTTL <= 0 {
		longTTL = DefaultLongTTL
	}

	st := gobreaker.Settings{Name: "response-cache"}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}

	return &ResponseCache{
		client:   client,
		breaker:  gobreaker.NewCircuitBreaker(st),
		shortTTL: shortTTL,
		longTTL:  longTTL,
	}
}

// TTLFor picks the TTL class for a payload. viewerScoped covers both an
// authenticated viewer and a force-revealed anonymous payload.
func (c *ResponseCache) TTLFor(viewerScoped bool, startsAt time.Time) time.Duration {
	if c == nil {
		return DefaultShortTTL
	}
	if viewerScoped || time.Since(startsAt) < archiveAge {
		return c.shortTTL
	}
	return c.longTTL
}

// Get returns the cached payload for key, or ok=false on a miss. Redis
// errors and an open breaker both count as misses.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	v, err := c.breaker.Execute(func() (interface{}, error) {
		b, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		cacheErrors.Inc()
		misses.Inc()
		log.Warn().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
		return nil, false
	}

	b, _ := v.([]byte)
	if b == nil {
		misses.Inc()
		return nil, false
	}
	hits.Inc()
	return b, true
}

// Set stores a payload under key for ttl. Failures are logged and dropped.
func (c *ResponseCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if c == nil {
		return
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, key, payload, ttl).Err()
	})
	if err != nil {
		cacheErrors.Inc()
		log.Warn().Err(err).Str("key", key).Msg("cache set failed, payload not cached")
	}
}

// Evict drops the given keys. Eviction is best-effort: a failed evict
// falls back to the short TTL expiring the stale payload, which can only
// delay a reveal, never leak a hidden result.
func (c *ResponseCache) Evict(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		cacheErrors.Inc()
		log.Warn().Err(err).Int("keys", len(keys)).Msg("cache evict failed, relying on TTL")
		return
	}
	evictions.Add(float64(len(keys)))
}

// Healthy reports whether Redis answers a ping. Used by readiness only;
// an unhealthy cache never fails a request.
func (c *ResponseCache) Healthy(ctx context.Context) bool {
	if c == nil {
		return false
	}
	return c.client.Ping(ctx).Err() == nil
}

// Close releases the underlying client.
func (c *ResponseCache) Close() {
	if c == nil {
		return
	}
	_ = c.client.Close()
}
