package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/item-registry/internal/config"
)

// Entries live at <prefix>:<generation>:<read key>.  A write bumps the
// generation, so a slow read that captured the old state before the write
// stores its body under a generation nobody asks for anymore.

// itemReadKey names the cached item read behind c, or reports false for
// requests that are never cached.
func itemReadKey(c echo.Context) (string, bool) {
	if c.Request().Method != http.MethodGet {
		return "", false
	}
	switch c.Path() {
	case "/items":
		return "list", true
	case "/items/search":
		// search ignores case, so "ONE" and "one" share an entry
		name := strings.ToLower(c.QueryParam("name"))
		if name == "" {
			return "", false
		}
		return fmt.Sprintf("search:%x", sha1.Sum([]byte(name))), true
	case "/items/:id":
		return "get:" + c.Param("id"), true
	}
	return "", false
}

func generationKey(cfg config.CacheConfig) string { return cfg.Prefix + ":gen" }

// generation reads the current write generation; a missing counter is 0.
func generation(ctx context.Context, cfg config.CacheConfig, rdb *redis.Client) (int64, error) {
	gen, err := rdb.Get(ctx, generationKey(cfg)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// cachedRead is what a HIT replays.  Item reads are always JSON with 200,
// so only the content type and body are kept.
type cachedRead struct {
	ContentType string `json:"type"`
	Body        []byte `json:"body"`
}

// teeWriter forwards the response and keeps a copy of the body until it
// grows past limit.
type teeWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (w *teeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// NewRedisCache caches successful item reads (list, search, get) in Redis and
// marks responses with X-Cache: HIT or MISS.  Any Redis failure serves the
// request uncached.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			read, ok := itemReadKey(c)
			if !ok {
				return next(c)
			}
			ctx := c.Request().Context()
			gen, err := generation(ctx, cfg, rdb)
			if err != nil {
				c.Logger().Debugf("item cache: read generation: %v", err)
				return next(c)
			}
			key := fmt.Sprintf("%s:%d:%s", cfg.Prefix, gen, read)

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var hit cachedRead
				if json.Unmarshal(raw, &hit) == nil {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(http.StatusOK, hit.ContentType, hit.Body)
				}
			}

			c.Response().Header().Set("X-Cache", "MISS")
			orig := c.Response().Writer
			tee := &teeWriter{ResponseWriter: orig, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = tee
			defer func() { c.Response().Writer = orig }()

			if err := next(c); err != nil {
				return err
			}
			if tee.status != http.StatusOK || tee.overflow {
				return nil
			}
			payload, err := json.Marshal(cachedRead{
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        tee.buf.Bytes(),
			})
			if err == nil {
				if err := rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
					c.Logger().Debugf("item cache: store %s: %v", key, err)
				}
			}
			return nil
		}
	}
}

// InvalidateCache starts a new generation so every cached item read is
// refetched.  Entries of older generations expire on their own TTL.
func InvalidateCache(ctx context.Context, cfg config.CacheConfig, rdb *redis.Client) error {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return rdb.Incr(ctx, generationKey(cfg)).Err()
}
