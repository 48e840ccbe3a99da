package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/item-registry/internal/config"
)

// bucketScript takes one token from the bucket at KEYS[1], refilling it by
// whole intervals first.  It returns {allowed, tokens left, ms until the
// next refill}.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local tokens = tonumber(redis.call('HGET', key, 'tokens'))
local stamp = tonumber(redis.call('HGET', key, 'stamp'))
if tokens == nil or stamp == nil then
  tokens = capacity
  stamp = now
end

local steps = math.floor((now - stamp) / interval)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  stamp = stamp + steps * interval
end

local allowed = 0
local wait = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  wait = interval - (now - stamp)
end

redis.call('HSET', key, 'tokens', tokens, 'stamp', stamp)
redis.call('PEXPIRE', key, ttl)
return { allowed, tokens, wait }
`)

// bucketFor picks the read or write bucket for the request and its capacity.
func bucketFor(cfg config.RateLimitConfig, c echo.Context) (key string, capacity int) {
	class, capacity := "read", cfg.ReadCapacity
	switch c.Request().Method {
	case http.MethodGet, http.MethodHead:
	default:
		class, capacity = "write", cfg.WriteCapacity
	}
	key = cfg.Prefix + ":" + class
	if cfg.KeyStrategy != "global" {
		ip := c.RealIP()
		if ip == "" {
			ip = "unknown"
		}
		key += ":" + ip
	}
	return key, capacity
}

// NewTokenBucket limits the item routes with Redis-backed token buckets, one
// for reads and one for writes.  Bucket state lives in Redis so every
// instance shares the same budget.  A Redis failure lets the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, capacity := bucketFor(cfg, c)
			res, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				cfg.TTL.Milliseconds(),
			).Int64Slice()
			if err != nil || len(res) != 3 {
				c.Logger().Debugf("rate limit %s: %v", key, err)
				return next(c)
			}
			allowed, remaining, waitMs := res[0] == 1, res[1], res[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if allowed {
				return next(c)
			}
			secs := (max(waitMs, 0) + 999) / 1000
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "Too many requests"})
		}
	}
}
