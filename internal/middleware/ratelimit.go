// ratelimit.go provides Gin middleware that enforces per-client request rate limits,
// returning 429 responses when the configured requests-per-minute threshold is exceeded.
// Limits are kept in process memory, or in Redis when several replicas share a budget.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often the in-memory limiter drops idle clients
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
		BurstSize:         20,
		CleanupInterval:   5 * time.Minute,
	}
}

// Decision is the verdict for one request.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the client identified by key may make a request.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// rateLimitEntry tracks request counts for a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter implements an in-memory token bucket limiter
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.Mutex
	stopCh  chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// cleanup periodically removes entries idle for more than 10 minutes
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, entry := range rl.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) tokensPerSecond() float64 {
	return float64(rl.config.RequestsPerMinute) / 60.0
}

// Allow takes a token from key's bucket if one is available.
func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	burst := float64(rl.config.BurstSize)
	entry, exists := rl.entries[key]
	if !exists {
		entry = &rateLimitEntry{tokens: burst, lastUpdate: now}
		rl.entries[key] = entry
	} else {
		elapsed := now.Sub(entry.lastUpdate).Seconds()
		entry.tokens = min(burst, entry.tokens+elapsed*rl.tokensPerSecond())
		entry.lastUpdate = now
	}

	d := Decision{Limit: rl.config.RequestsPerMinute}
	if entry.tokens >= 1 {
		entry.tokens--
		d.Allowed = true
	} else if rate := rl.tokensPerSecond(); rate > 0 {
		d.RetryAfter = time.Duration((1 - entry.tokens) / rate * float64(time.Second))
	} else {
		d.RetryAfter = time.Minute
	}
	d.Remaining = int(entry.tokens)
	return d, nil
}

// RedisLimiter keeps rate limit state in Redis using the GCRA algorithm, so all
// replicas of the service share one budget per client.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisLimiter creates a Redis-backed limiter on rdb.
func NewRedisLimiter(rdb *redis.Client, config RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   config.RequestsPerMinute,
			Burst:  config.BurstSize,
			Period: time.Minute,
		},
	}
}

// Allow consults Redis for key.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := rl.limiter.Allow(ctx, "ratelimit:"+key, rl.limit)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{
		Allowed:   res.Allowed > 0,
		Limit:     rl.limit.Rate,
		Remaining: res.Remaining,
	}
	if !d.Allowed {
		d.RetryAfter = res.RetryAfter
	}
	return d, nil
}

// RateLimitMiddleware creates a Gin middleware that rate limits requests. When the
// limiter itself fails (Redis unreachable) the request is let through and the
// failure is logged.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		d, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))

		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message":     "Rate limit exceeded",
				"retry_after": retry,
			})
			return
		}

		c.Next()
	}
}

// getRateLimitKey determines the key to use for rate limiting.
// Priority: validated principal name > client IP address.
func getRateLimitKey(c *gin.Context) string {
	if principal := c.GetString(PrincipalKey); principal != "" {
		return "user:" + principal
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
