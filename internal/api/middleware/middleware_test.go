package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/widgetfeedback/internal/api/middleware"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/observability"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  map[string]int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte), ttl: make(map[string]int)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, assert.AnError
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), value...)
	c.ttl[key] = expirationSeconds
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	return nil
}

func countingHandler(status int, body string, calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func TestCacheMiddleware_CachesSuccessfulWidgetReads(t *testing.T) {
	cache := newMemoryCache()
	calls := 0
	handler := middleware.NewCacheMiddleware(cache, 60, nil).Middleware(countingHandler(http.StatusOK, `{"average":4}`, &calls))

	for i, want := range []string{"MISS", "HIT"} {
		req := httptest.NewRequest(http.MethodGet, "/api/widgets/w1/star", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, want, w.Header().Get("X-Cache"), "request %d", i)
		assert.JSONEq(t, `{"average":4}`, w.Body.String())
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, 60, cache.ttl["http:cache:GET:/api/widgets/w1/star"])
}

func TestCacheMiddleware_SkipsNonCacheable(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "post", method: http.MethodPost, path: "/api/widgets/w1/feedback", status: http.StatusCreated},
		{name: "not found", method: http.MethodGet, path: "/api/widgets/w1/star", status: http.StatusNotFound},
		{name: "other route", method: http.MethodGet, path: "/health", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := newMemoryCache()
			calls := 0
			handler := middleware.NewCacheMiddleware(cache, 60, nil).Middleware(countingHandler(tt.status, `{}`, &calls))

			for i := 0; i < 2; i++ {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
				assert.Equal(t, tt.status, w.Code)
			}

			assert.Equal(t, 2, calls)
			assert.Empty(t, cache.data)
		})
	}
}

func TestCacheKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/widgets/w1/feedback?x=1", nil)
	assert.Equal(t, "http:cache:GET:/api/widgets/w1/feedback?x=1", middleware.CacheKey(req))
}

func TestCORSMiddleware(t *testing.T) {
	calls := 0
	handler := middleware.CORSMiddleware([]string{"https://app.example.com"})(countingHandler(http.StatusOK, "", &calls))

	req := httptest.NewRequest(http.MethodGet, "/api/widgets/w1/star", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Account-ID")

	req = httptest.NewRequest(http.MethodGet, "/api/widgets/w1/star", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/widgets/w1/feedback", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, calls)
}

func TestCORSMiddleware_DefaultsToWildcard(t *testing.T) {
	calls := 0
	handler := middleware.CORSMiddleware(nil)(countingHandler(http.StatusOK, "", &calls))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestETag_NotModified(t *testing.T) {
	calls := 0
	handler := middleware.ResponseOptimization(countingHandler(http.StatusOK, `{"average":4}`, &calls))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/widgets/w1/star", nil))
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, "private, no-cache", w.Header().Get("Cache-Control"))

	req := httptest.NewRequest(http.MethodGet, "/api/widgets/w1/star", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestETag_SkipsStreamsAndErrors(t *testing.T) {
	calls := 0
	handler := middleware.ResponseOptimization(countingHandler(http.StatusNotFound, `{"error":"x"}`, &calls))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/widgets/w1/star", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("ETag"))
	assert.JSONEq(t, `{"error":"x"}`, w.Body.String())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stream/widgets/w1", nil))
	assert.Empty(t, w.Header().Get("ETag"))
	assert.Empty(t, w.Header().Get("Cache-Control"))
}

func TestLoggingMiddleware_RequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	var seenRequestID string
	handler := middleware.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observability.LoggerFromContext(r.Context()).Info().Msg("inside")
		seenRequestID = w.Header().Get(middleware.RequestIDHeader)
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req = req.WithContext(base.WithContext(req.Context()))
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "req-1", seenRequestID)
	assert.Equal(t, "req-1", w.Header().Get(middleware.RequestIDHeader))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inner, access map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &inner))
	require.NoError(t, json.Unmarshal(lines[1], &access))
	assert.Equal(t, "req-1", inner["request_id"])
	assert.Equal(t, "inside", inner["message"])
	assert.Equal(t, "http request", access["message"])
	assert.Equal(t, float64(http.StatusTeapot), access["status"])
}

func TestObservabilityMiddleware_UsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	var seen string
	mux.HandleFunc("GET /api/widgets/{id}/star", func(w http.ResponseWriter, r *http.Request) {
		seen = r.Pattern
		w.WriteHeader(http.StatusOK)
	})

	handler := middleware.ObservabilityMiddleware(nil)(mux)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/widgets/w1/star", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "GET /api/widgets/{id}/star", seen)
}
