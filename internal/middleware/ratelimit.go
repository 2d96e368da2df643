package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/gym-management/internal/config"
)

// tokenBucket keeps {tokens, stamp} in a hash.  Whole refill intervals
// elapsed since stamp add ARGV[3] tokens each, up to ARGV[2].  One token is
// taken per call.  Reply: {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local now, cap, per, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local h = redis.call('HMGET', KEYS[1], 'tokens', 'stamp')
local left, stamp = tonumber(h[1]) or cap, tonumber(h[2]) or now
local steps = math.floor(math.max(0, now - stamp) / every)
if steps > 0 then
	left = math.min(cap, left + steps * per)
	stamp = stamp + steps * every
end
local ok, wait = 0, 0
if left >= 1 then
	ok, left = 1, left - 1
else
	wait = math.max(0, every - (now - stamp))
end
redis.call('HSET', KEYS[1], 'tokens', left, 'stamp', stamp)
redis.call('EXPIRE', KEYS[1], ttl)
return { ok, left, wait }
`)

// bucketResult is the decoded reply of tokenBucket.
type bucketResult struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

func parseBucketResult(v any) (bucketResult, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 3 {
		return bucketResult{}, fmt.Errorf("unexpected script result %#v", v)
	}
	return bucketResult{
		allowed:   asInt64(arr[0]) == 1,
		remaining: asInt64(arr[1]),
		retry:     time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests per key with a Redis token bucket.  Redis
// errors let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			raw, err := tokenBucket.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), cfg.Capacity, cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(), int64(cfg.TTL/time.Second)).Result()
			res, perr := parseBucketResult(raw)
			if err != nil || perr != nil {
				if cfg.Debug {
					slog.Warn("rate limiter bypassed", "key", key, "redis_err", err, "parse_err", perr)
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
			if !res.allowed {
				secs := int(math.Ceil(res.retry.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "Too many requests",
					"retry_after": secs,
				})
			}
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			return next(c)
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func asInt64(v any) int64 {
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

// buildRateKey composes prefix:dim:value... from the dimensions named in
// KeyStrategy ("ip", "user", "route" joined by "_").  An unknown strategy
// keys on all three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	dims := strings.Split(strings.ToLower(cfg.KeyStrategy), "_")
	for _, d := range dims {
		if d != "ip" && d != "user" && d != "route" {
			dims = []string{"ip", "user", "route"}
			break
		}
	}
	parts := []string{cfg.Prefix}
	for _, d := range dims {
		var v string
		switch d {
		case "ip":
			if v = c.RealIP(); v == "" {
				v = "unknown"
			}
		case "user":
			v = currentUserID(c)
		case "route":
			v = c.Request().Method + " " + c.Path()
		}
		parts = append(parts, d, v)
	}
	return strings.Join(parts, ":")
}
