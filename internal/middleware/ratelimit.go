package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/config"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/logger"
)

// bucket takes one token for key.
type bucket interface {
	take(ctx context.Context, key string, now time.Time) (allowed bool, remaining int64, retry time.Duration, err error)
}

// NewTokenBucket limits requests per key (see buildRateKey). Buckets live in
// Redis so every instance shares them; when rdb is nil each process keeps
// its own buckets instead.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	var b bucket
	if rdb != nil {
		b = &redisBucket{cfg: cfg, rdb: rdb, script: redis.NewScript(tokenBucketScript)}
	} else {
		b = newLocalBucket(cfg)
	}
	return rateLimit(cfg, b)
}

func rateLimit(cfg config.RateLimitConfig, b bucket) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			allowed, remaining, retry, err := b.take(c.Request().Context(), key, time.Now())
			if err != nil {
				if cfg.Debug {
					logger.Warn("ratelimit: bucket error", zap.String("key", key), zap.Error(err))
				}
				return next(c)
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := int(math.Ceil(retry.Seconds()))
				if secs < 0 {
					secs = 0
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				if cfg.Debug {
					logger.Info("ratelimit: block", zap.String("key", key), zap.Duration("retry", retry))
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"status":      "fail",
					"code":        "RATE_LIMITED",
					"message":     "Too many requests from this IP, please try again later!",
					"retry_after": secs,
				})
			}
			if cfg.Debug {
				c.Response().Header().Set("X-RateLimit-Key", key)
			}
			return next(c)
		}
	}
}

const tokenBucketScript = `
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
    tokens = capacity
    last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
    local elapsed = math.max(0, now_ms - last_refill)
    local intervals = math.floor(elapsed / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + (intervals * refill_tokens))
        last_refill = last_refill + (intervals * interval_ms)
    end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    local until_next = interval_ms - (now_ms - last_refill)
    if until_next < 0 then until_next = 0 end
    retry_after_ms = until_next
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`

// redisBucket runs the token bucket atomically inside Redis.
type redisBucket struct {
	cfg    config.RateLimitConfig
	rdb    *redis.Client
	script *redis.Script
}

func (b *redisBucket) take(ctx context.Context, key string, now time.Time) (bool, int64, time.Duration, error) {
	vals, err := b.script.Run(ctx, b.rdb, []string{key},
		now.UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL/time.Second),
	).Result()
	if err != nil {
		return false, 0, 0, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected script result %#v", vals)
	}
	allowed := asInt64(arr[0]) == 1
	return allowed, asInt64(arr[1]), time.Duration(asInt64(arr[2])) * time.Millisecond, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// localBucket keeps one rate.Limiter per key in memory. Idle keys are
// swept once they outlive the configured TTL.
type localBucket struct {
	cfg   config.RateLimitConfig
	limit rate.Limit

	mu        sync.Mutex
	entries   map[string]*localEntry
	lastSweep time.Time
}

type localEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

func newLocalBucket(cfg config.RateLimitConfig) *localBucket {
	every := cfg.RefillInterval / time.Duration(cfg.RefillTokens)
	return &localBucket{
		cfg:     cfg,
		limit:   rate.Every(every),
		entries: map[string]*localEntry{},
	}
}

func (b *localBucket) take(_ context.Context, key string, now time.Time) (bool, int64, time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastSweep) > b.cfg.TTL {
		for k, e := range b.entries {
			if now.Sub(e.seen) > b.cfg.TTL {
				delete(b.entries, k)
			}
		}
		b.lastSweep = now
	}

	e, ok := b.entries[key]
	if !ok {
		e = &localEntry{lim: rate.NewLimiter(b.limit, b.cfg.Capacity)}
		b.entries[key] = e
	}
	e.seen = now

	r := e.lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, delay, nil
	}
	return true, int64(e.lim.TokensAt(now)), 0, nil
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := userID(c)
	route := c.Request().Method + " " + c.Path()

	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
