package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/item-registry/internal/config"
	"github.com/iliyamo/item-registry/internal/queue"
	"github.com/iliyamo/item-registry/internal/repository"
)

type fakePublisher struct {
	events chan queue.ItemChangedEvent
	err    error
}

func newFakePublisher(err error) *fakePublisher {
	return &fakePublisher{events: make(chan queue.ItemChangedEvent, 8), err: err}
}

func (p *fakePublisher) Publish(ctx context.Context, ev queue.ItemChangedEvent) error {
	p.events <- ev
	return p.err
}

func (p *fakePublisher) next(t *testing.T) queue.ItemChangedEvent {
	t.Helper()
	select {
	case ev := <-p.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
	return queue.ItemChangedEvent{}
}

// syncBuffer collects log output written from the publish goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newItemServer(h *ItemHandler) *echo.Echo {
	e := echo.New()
	e.GET("/items", h.List)
	e.GET("/items/search", h.Search)
	e.GET("/items/:id", h.Get)
	e.POST("/items", h.Create)
	e.PUT("/items/:id", h.Update)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndWelcome(t *testing.T) {
	e := echo.New()
	e.GET("/health", Health)
	e.GET("/", Welcome("hello"))

	rec := do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"hello"}`, rec.Body.String())
}

func TestNewItemHandlerPanicsOnNilStore(t *testing.T) {
	assert.Panics(t, func() { NewItemHandler(nil) })
}

func TestGetRejectsNumericPrefix(t *testing.T) {
	e := newItemServer(NewItemHandler(repository.NewItemRepo(repository.FixedID)))
	for _, id := range []string{"abc", "12abc", "1.5", "%20"} {
		rec := do(e, http.MethodGet, "/items/"+id, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "id %q", id)
		assert.JSONEq(t, `{"error":"Invalid ID format"}`, rec.Body.String())
	}
	rec := do(e, http.MethodGet, "/items/-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBodyHandling(t *testing.T) {
	e := newItemServer(NewItemHandler(repository.NewItemRepo(repository.FixedID)))
	cases := []struct {
		body   string
		status int
		want   string
	}{
		{"", http.StatusBadRequest, `{"error":"Name is required"}`},
		{`{}`, http.StatusBadRequest, `{"error":"Name is required"}`},
		{`{"name":""}`, http.StatusBadRequest, `{"error":"Name is required"}`},
		{`{"name":null}`, http.StatusBadRequest, `{"error":"Name is required"}`},
		{`{"name":`, http.StatusBadRequest, `{"error":"Invalid request body"}`},
		{`{"name":42}`, http.StatusBadRequest, `{"error":"Invalid request body"}`},
		{`{"name":"Widget","extra":true}`, http.StatusCreated, `{"id":4,"name":"Widget"}`},
	}
	for _, tc := range cases {
		rec := do(e, http.MethodPost, "/items", tc.body)
		assert.Equal(t, tc.status, rec.Code, "body %q", tc.body)
		assert.JSONEq(t, tc.want, rec.Body.String(), "body %q", tc.body)
	}
}

// Echo only decodes bodies it has a Content-Type for; anything else is an
// unsupported media type, which surfaces as an undecodable body.
func TestBodyWithoutJSONContentType(t *testing.T) {
	e := newItemServer(NewItemHandler(repository.NewItemRepo(repository.FixedID)))
	for _, ctype := range []string{"", echo.MIMETextPlain} {
		req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"name":"Widget"}`))
		if ctype != "" {
			req.Header.Set(echo.HeaderContentType, ctype)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "content type %q", ctype)
		assert.JSONEq(t, `{"error":"Invalid request body"}`, rec.Body.String())
	}

	// An empty body never reaches the decoder, so no Content-Type is needed.
	rec := do(e, http.MethodPost, "/items", "")
	assert.JSONEq(t, `{"error":"Name is required"}`, rec.Body.String())
}

func TestUpdateValidationOrder(t *testing.T) {
	e := newItemServer(NewItemHandler(repository.NewItemRepo(repository.FixedID)))

	rec := do(e, http.MethodPut, "/items/abc", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid ID format"}`, rec.Body.String())

	rec = do(e, http.MethodPut, "/items/999", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Item not found"}`, rec.Body.String())

	rec = do(e, http.MethodPut, "/items/1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Name is required"}`, rec.Body.String())
}

func TestSearchRequiresName(t *testing.T) {
	e := newItemServer(NewItemHandler(repository.NewItemRepo(repository.FixedID)))
	for _, target := range []string{"/items/search", "/items/search?name=", "/items/search?other=x"} {
		rec := do(e, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.JSONEq(t, `{"error":"Name query parameter is required"}`, rec.Body.String())
	}
	rec := do(e, http.MethodGet, "/items/search?name=nothing", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestMutationsPublishEvents(t *testing.T) {
	pub := newFakePublisher(nil)
	h := NewItemHandler(repository.NewItemRepo(repository.FixedID))
	h.Events = pub
	e := newItemServer(h)

	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/items", `{"name":"New Item"}`).Code)
	ev := pub.next(t)
	assert.Equal(t, queue.ActionCreated, ev.Action)
	assert.Equal(t, 4, ev.ItemID)
	assert.Equal(t, "New Item", ev.Name)
	_, err := time.Parse(time.RFC3339, ev.OccurredAt)
	assert.NoError(t, err)

	require.Equal(t, http.StatusOK, do(e, http.MethodPut, "/items/2", `{"name":"Second"}`).Code)
	ev = pub.next(t)
	assert.Equal(t, queue.ActionUpdated, ev.Action)
	assert.Equal(t, 2, ev.ItemID)

	// failed requests publish nothing
	do(e, http.MethodPost, "/items", `{}`)
	do(e, http.MethodPut, "/items/999", `{"name":"x"}`)
	select {
	case ev := <-pub.events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishFailureDoesNotChangeResponse(t *testing.T) {
	pub := newFakePublisher(errors.New("broker down"))
	h := NewItemHandler(repository.NewItemRepo(repository.FixedID))
	h.Events = pub
	e := newItemServer(h)

	var logs syncBuffer
	e.Logger.SetOutput(&logs)
	e.Logger.SetLevel(log.WARN)

	rec := do(e, http.MethodPost, "/items", `{"name":"New Item"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":4,"name":"New Item"}`, rec.Body.String())
	pub.next(t)

	// The handler is the only place a failed publish is reported.
	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "broker down")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, strings.Count(logs.String(), "publish created event for item 4"))
}

func TestMutationsInvalidateCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := NewItemHandler(repository.NewItemRepo(repository.FixedID))
	h.CacheCfg = config.CacheConfig{Enabled: true, Prefix: "cache"}
	h.Redis = rdb
	e := newItemServer(h)

	do(e, http.MethodPut, "/items/1", `{"name":"Renamed"}`)
	gen, err := mr.Get("cache:gen")
	require.NoError(t, err)
	assert.Equal(t, "1", gen)

	do(e, http.MethodPost, "/items", `{}`)
	gen, err = mr.Get("cache:gen")
	require.NoError(t, err)
	assert.Equal(t, "1", gen, "rejected create must not invalidate")

	do(e, http.MethodPost, "/items", `{"name":"New Item"}`)
	gen, err = mr.Get("cache:gen")
	require.NoError(t, err)
	assert.Equal(t, "2", gen)
}
