package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/item-registry/internal/handler" // import the handlers that implement the item routes
)

// RegisterRoutes registers the service-level routes on the provided Echo
// instance: a health check for load balancers and the welcome route.
func RegisterRoutes(e *echo.Echo, welcome string) {
	e.GET("/health", handler.Health)
	e.GET("/", handler.Welcome(welcome))
}

// RegisterItems registers the item routes under /items.  limit wraps every
// item route (rate limiting) and cache wraps the read-only ones.  Either may
// be nil.  /items/search is a static route, so Echo matches it before the
// /items/:id parameter route.
func RegisterItems(e *echo.Echo, h *handler.ItemHandler, cache, limit echo.MiddlewareFunc) {
	var groupMW, readMW []echo.MiddlewareFunc
	if limit != nil {
		groupMW = append(groupMW, limit)
	}
	if cache != nil {
		readMW = append(readMW, cache)
	}

	g := e.Group("/items", groupMW...)
	// Reads: list, search by name, fetch by id.
	g.GET("", h.List, readMW...)
	g.GET("/search", h.Search, readMW...)
	g.GET("/:id", h.Get, readMW...)
	// Writes: create and rename.  Both invalidate cached reads.
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
}
