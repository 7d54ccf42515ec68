package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key in fixed windows.
type Limiter interface {
	// Allow records one hit for key. When the window is exhausted it returns
	// false and how long until the window resets.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// MemoryLimiter keeps counters in process. Counts are per replica.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	store  *cache.Cache
	now    func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		store:  cache.New(window, 10*time.Minute),
		now:    time.Now,
	}
}

type memoryWindow struct {
	hits  int
	reset time.Time
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	var w memoryWindow
	if v, ok := l.store.Get(key); ok {
		if cur := v.(memoryWindow); now.Before(cur.reset) {
			w = cur
		}
	}
	if w.reset.IsZero() {
		w.reset = now.Add(l.window)
	}
	w.hits++
	// The cache TTL only evicts idle keys; reset decides the window.
	l.store.Set(key, w, cache.DefaultExpiration)
	if w.hits > l.limit {
		return false, w.reset.Sub(now), nil
	}
	return true, 0, nil
}

// RedisLimiter shares counters across replicas with INCR and EXPIRE.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, slot)

	n, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, 0, err
		}
	}
	if n > int64(l.limit) {
		reset := time.Unix(0, (slot+1)*int64(l.window))
		return false, reset.Sub(now), nil
	}
	return true, 0, nil
}

// RateLimit rejects with 429 RATE_LIMITED once the authenticated account
// exhausts its window. Limiter failures let the request through.
func RateLimit(l Limiter, scope string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := AccountIDFromCtx(r.Context())
			key := scope + ":" + id.String()
			ok, retry, err := l.Allow(r.Context(), key)
			if err != nil {
				log.Warn("rate limiter unavailable", "scope", scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				http.Error(w, `{"error":"RATE_LIMITED"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
