package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/shared"
)

// Decision is the outcome of counting one request against a fixed window.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Limiter counts hits per key inside fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Limit() int
}

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	keyFn  RateLimitKeyFunc
	logger *zap.Logger
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(c *rateLimitConfig) {
		if fn != nil {
			c.keyFn = fn
		}
	}
}

func WithRateLimitLogger(logger *zap.Logger) RateLimitOption {
	return func(c *rateLimitConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// RateLimit rejects callers over the limiter's budget with 429. Limiter errors fail open.
func RateLimit(limiter Limiter, opts ...RateLimitOption) func(http.Handler) http.Handler {
	cfg := rateLimitConfig{keyFn: actorOrIPKey, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enforce(limiter, cfg, w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SensitiveMutationRateLimit applies a tighter per-actor budget to destructive bulk routes
// and the full audit export.
func SensitiveMutationRateLimit(limiter Limiter, opts ...RateLimitOption) func(http.Handler) http.Handler {
	cfg := rateLimitConfig{keyFn: actorOrIPKey, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSensitiveMutation(r) && !enforce(limiter, cfg, w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enforce(limiter Limiter, cfg rateLimitConfig, w http.ResponseWriter, r *http.Request) bool {
	if limiter == nil || limiter.Limit() <= 0 {
		return true
	}
	key := cfg.keyFn(r)
	if key == "" {
		key = shared.ClientIP(r)
	}

	decision, err := limiter.Allow(r.Context(), key)
	if err != nil {
		cfg.logger.Warn("rate limiter unavailable", zap.Error(err), zap.String("key", key))
		return true
	}

	resetIn := durationSeconds(decision.ResetIn)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))

	if !decision.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
		cfg.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Int("limit", limiter.Limit()),
		)
		api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		return false
	}
	return true
}

func actorOrIPKey(r *http.Request) string {
	if actor, ok := GetActor(r.Context()); ok && actor.UserID != "" {
		return "user:" + actor.CompanyID + ":" + actor.UserID
	}
	return "ip:" + shared.ClientIP(r)
}

func isSensitiveMutation(r *http.Request) bool {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	if r.Method == http.MethodGet {
		return path == "/audit/export"
	}
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		return false
	}
	switch {
	case path == "/users/bulk-archive":
		return true
	case strings.HasPrefix(path, "/users/") && strings.HasSuffix(path, "/force-delete"):
		return true
	}
	return false
}

func durationSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	seconds := int(d.Seconds())
	if seconds <= 0 {
		return 1
	}
	return seconds
}

type rateBucket struct {
	count int
	reset time.Time
}

// MemoryLimiter keeps windows in process memory. Suitable for a single replica.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	clients map[string]*rateBucket
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: map[string]*rateBucket{},
	}
}

func (l *MemoryLimiter) Limit() int { return l.limit }

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	bucket, ok := l.clients[key]
	if !ok || !now.Before(bucket.reset) {
		bucket = &rateBucket{reset: now.Add(l.window)}
		l.clients[key] = bucket
	}
	bucket.count++
	return Decision{
		Allowed:   bucket.count <= l.limit,
		Remaining: l.limit - bucket.count,
		ResetIn:   bucket.reset.Sub(now),
	}, nil
}

// RedisLimiter shares windows across replicas using INCR with a key expiry.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "perfreview:ratelimit:"
	}
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: prefix}
}

func (l *RedisLimiter) Limit() int { return l.limit }

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := l.prefix + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("incr %s: %w", redisKey, err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("expire %s: %w", redisKey, err)
		}
	}
	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ttl %s: %w", redisKey, err)
	}
	if ttl < 0 {
		// key lost its expiry; restore it so the window cannot stick forever
		_ = l.client.PExpire(ctx, redisKey, l.window).Err()
		ttl = l.window
	}
	return Decision{
		Allowed:   int(count) <= l.limit,
		Remaining: l.limit - int(count),
		ResetIn:   ttl,
	}, nil
}
