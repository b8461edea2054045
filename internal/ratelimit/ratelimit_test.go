package ratelimit_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aims/internal/clock"
	"aims/internal/ratelimit"
	"aims/pkg/platform/middleware/auth"
	"aims/pkg/platform/middleware/metadata"
)

func TestMemoryStoreAdmitsUpToLimit(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := ratelimit.NewMemoryStore(clock.NewFixed(now))

	for i := 0; i < 3; i++ {
		result, err := store.Allow(context.Background(), "ip:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 2-i, result.Remaining)
	}

	result, err := store.Allow(context.Background(), "ip:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, now.Add(time.Minute), result.ResetAt)
}

func TestMemoryStoreWindowSlides(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ticker := &tickingClock{now: base}
	store := ratelimit.NewMemoryStore(ticker)

	result, err := store.Allow(context.Background(), "k", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(context.Background(), "k", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	ticker.now = base.Add(61 * time.Second)
	result, err = store.Allow(context.Background(), "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "expired entries free the window")
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	store := ratelimit.NewMemoryStore(clock.NewFixed(time.Now()))

	result, err := store.Allow(context.Background(), "ip:10.0.0.1", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(context.Background(), "ip:10.0.0.2", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	mw := ratelimit.NewMiddleware(ratelimit.NewMemoryStore(clk), slog.New(slog.DiscardHandler), nil, clk, 2, time.Minute)

	handler := mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestFromIP("10.0.0.1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFromIP("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// A different client is untouched.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFromIP("10.0.0.2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareKeysAuthenticatedClientsByActor(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	mw := ratelimit.NewMiddleware(ratelimit.NewMemoryStore(clk), slog.New(slog.DiscardHandler), nil, clk, 1, time.Minute)

	handler := mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	asActor := func(actorID int64) *http.Request {
		r := requestFromIP("10.0.0.1")
		return r.WithContext(auth.WithActorID(r.Context(), actorID))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, asActor(7))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, asActor(7))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Same IP, different actor: separate window.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, asActor(8))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareAdmitsOnStoreFailure(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	mw := ratelimit.NewMiddleware(failingStore{}, slog.New(slog.DiscardHandler), nil, clk, 1, time.Minute)

	handler := mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFromIP("10.0.0.1"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type tickingClock struct {
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	return c.now
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("store down")
}

func requestFromIP(ip string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/audit/events", nil)
	return r.WithContext(metadata.WithClientIP(r.Context(), ip))
}
