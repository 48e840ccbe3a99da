package router

import (
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/item-registry/internal/config"
	"github.com/iliyamo/item-registry/internal/handler"
	"github.com/iliyamo/item-registry/internal/middleware"
	"github.com/iliyamo/item-registry/internal/repository"
)

// Deps collects everything NewServer wires together.  Only Items is
// required; a nil Redis disables caching and rate limiting, a nil Events
// disables publishing.
type Deps struct {
	Config    config.Config
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Items     *repository.ItemRepo
	Redis     *redis.Client
	Events    handler.EventPublisher
}

// NewServer builds a fully wired Echo instance.
func NewServer(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(ParseLogLevel(d.Config.LogLevel))

	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			c.Logger().Infof("method=%s uri=%s status=%d dur=%dms", v.Method, v.URI, v.Status, v.Latency.Milliseconds())
			return nil
		},
	}))

	items := handler.NewItemHandler(d.Items)
	items.CacheCfg = d.Cache
	items.Redis = d.Redis
	items.Events = d.Events

	welcome := d.Config.WelcomeMessage
	if welcome == "" {
		welcome = config.DefaultWelcomeMessage
	}
	RegisterRoutes(e, welcome)
	RegisterItems(e, items,
		middleware.NewRedisCache(d.Cache, d.Redis),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
	)
	return e
}

// ParseLogLevel maps LOG_LEVEL values onto gommon levels; unknown values
// mean info.
func ParseLogLevel(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off", "none":
		return log.OFF
	default:
		return log.INFO
	}
}
