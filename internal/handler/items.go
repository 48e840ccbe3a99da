// Package handler exposes HTTP handlers for the item registry.
// This file defines the item routes: list, search, get, create and update.
// Every failure is answered with {"error": "..."} and a 4xx status; nothing
// is returned to Echo's error handler for documented inputs.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/item-registry/internal/config"
	"github.com/iliyamo/item-registry/internal/middleware"
	"github.com/iliyamo/item-registry/internal/queue"
	"github.com/iliyamo/item-registry/internal/repository"
)

// Error messages returned by the item routes.
const (
	msgInvalidID       = "Invalid ID format"
	msgNotFound        = "Item not found"
	msgNameRequired    = "Name is required"
	msgQueryRequired   = "Name query parameter is required"
	msgInvalidBody     = "Invalid request body"
	msgInternalFailure = "Internal server error"
)

// publishTimeout bounds a single background event publish.
const publishTimeout = 5 * time.Second

// EventPublisher delivers item change events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ItemChangedEvent) error
}

// ItemHandler bundles the item store with the optional collaborators that
// react to mutations.
type ItemHandler struct {
	Items    *repository.ItemRepo // Items owns the collection
	Events   EventPublisher       // Events is nil when publishing is disabled
	CacheCfg config.CacheConfig   // CacheCfg locates cached responses to drop after a mutation
	Redis    *redis.Client        // Redis is nil when caching is unavailable
}

// NewItemHandler constructs an ItemHandler and panics if the store is nil.
func NewItemHandler(items *repository.ItemRepo) *ItemHandler {
	if items == nil {
		panic("nil repository passed to NewItemHandler")
	}
	return &ItemHandler{Items: items}
}

// itemReq is the body accepted by create and update.
type itemReq struct {
	Name string `json:"name"`
}

// List returns every item wrapped as {"items": [...]}.
func (h *ItemHandler) List(c echo.Context) error {
	items := h.Items.List(c.Request().Context())
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Search returns the items whose name contains the name query parameter,
// ignoring case.
func (h *ItemHandler) Search(c echo.Context) error {
	q := c.QueryParam("name")
	if q == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgQueryRequired})
	}
	items := h.Items.Search(c.Request().Context(), q)
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get returns a single item, unwrapped.
func (h *ItemHandler) Get(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidID})
	}
	it, err := h.Items.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, it)
}

// Create appends a new item and answers 201 with it.
func (h *ItemHandler) Create(c echo.Context) error {
	req, ok, err := bindItemReq(c)
	if !ok {
		return err
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgNameRequired})
	}
	ctx := c.Request().Context()
	it, err := h.Items.Create(ctx, req.Name)
	if err != nil {
		return h.storeError(c, err)
	}
	h.changed(c, queue.ActionCreated, it.ID, it.Name)
	return c.JSON(http.StatusCreated, it)
}

// Update renames an existing item.  The id is validated and looked up before
// the body is checked, so an unknown id wins over a missing name.
func (h *ItemHandler) Update(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidID})
	}
	ctx := c.Request().Context()
	if _, err := h.Items.GetByID(ctx, id); err != nil {
		return h.storeError(c, err)
	}
	req, ok, err := bindItemReq(c)
	if !ok {
		return err
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgNameRequired})
	}
	it, err := h.Items.UpdateName(ctx, id, req.Name)
	if err != nil {
		return h.storeError(c, err)
	}
	h.changed(c, queue.ActionUpdated, it.ID, it.Name)
	return c.JSON(http.StatusOK, it)
}

// bindItemReq decodes the request body.  A missing or empty body is the
// same as {}.  When ok is false the error response has been written and err
// is what the handler must return.
func bindItemReq(c echo.Context) (itemReq, bool, error) {
	var req itemReq
	if err := c.Bind(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, false, c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidBody})
	}
	return req, true, nil
}

// storeError maps repository errors to HTTP responses.
func (h *ItemHandler) storeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrItemNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": msgNotFound})
	case errors.Is(err, repository.ErrEmptyName):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgNameRequired})
	}
	c.Logger().Errorf("item store: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msgInternalFailure})
}

// changed drops cached reads and publishes the change event.  Neither step
// can fail the request.
func (h *ItemHandler) changed(c echo.Context, action string, id int, name string) {
	if err := middleware.InvalidateCache(c.Request().Context(), h.CacheCfg, h.Redis); err != nil {
		c.Logger().Warnf("cache invalidation failed: %v", err)
	}
	if h.Events == nil {
		return
	}
	ev := queue.ItemChangedEvent{
		Action:     action,
		ItemID:     id,
		Name:       name,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	logger := c.Logger()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := h.Events.Publish(ctx, ev); err != nil {
			logger.Warnf("publish %s event for item %d: %v", ev.Action, ev.ItemID, err)
		}
	}()
}
