package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"barbershop-queue/internal/config"
	"barbershop-queue/internal/lib/logger/sl"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

var tokenBucket = redis.NewScript(`
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
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// RateLimiter is a per-user token bucket kept in Redis, so every instance shares the budget.
type RateLimiter struct {
	cfg       config.RateLimitConfig
	rdb       redis.Scripter
	log       *slog.Logger
	now       func() time.Time
	onLimited func()
}

func NewRateLimiter(cfg config.RateLimitConfig, rdb redis.Scripter, log *slog.Logger) *RateLimiter {
	return &RateLimiter{cfg: cfg, rdb: rdb, log: log, now: time.Now}
}

// OnLimited registers a hook called for every rejected request.
func (l *RateLimiter) OnLimited(fn func()) *RateLimiter {
	l.onLimited = fn
	return l
}

type bucketResult struct {
	allowed   bool
	remaining int64
	retryMs   int64
}

func (l *RateLimiter) take(ctx context.Context, key string) (bucketResult, error) {
	args := []interface{}{
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL / time.Second),
	}

	vals, err := tokenBucket.Run(ctx, l.rdb, []string{key}, args...).Result()
	if err != nil {
		return bucketResult{}, err
	}

	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return bucketResult{}, fmt.Errorf("unexpected script result %#v", vals)
	}
	return bucketResult{
		allowed:   asInt64(arr[0]) == 1,
		remaining: asInt64(arr[1]),
		retryMs:   asInt64(arr[2]),
	}, nil
}

// Handler limits by caller (or client IP when anonymous) and route. Redis errors fail open.
func (l *RateLimiter) Handler() fiber.Handler {
	if !l.cfg.Enabled || l.rdb == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		key := l.key(c)

		res, err := l.take(c.UserContext(), key)
		if err != nil {
			l.log.Warn("rate limiter unavailable", slog.String("key", key), sl.Err(err))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))

		if !res.allowed {
			secs := int(math.Ceil(float64(res.retryMs) / 1000.0))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			if l.onLimited != nil {
				l.onLimited()
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success":     false,
				"error":       "rate limit exceeded",
				"retry_after": secs,
			})
		}

		return c.Next()
	}
}

func (l *RateLimiter) key(c *fiber.Ctx) string {
	parts := []string{l.cfg.Prefix}
	if caller, ok := CallerFrom(c); ok {
		parts = append(parts, "user", caller.UserID)
	} else {
		parts = append(parts, "ip", c.IP())
	}
	parts = append(parts, "route", c.Method()+" "+c.Path())
	return strings.Join(parts, ":")
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
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
