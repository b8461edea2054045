package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"aims/internal/clock"
	"aims/internal/platform/metrics"
	dErrors "aims/pkg/domain-errors"
	"aims/pkg/platform/httputil"
	"aims/pkg/platform/middleware/auth"
	"aims/pkg/platform/middleware/metadata"
)

// Middleware gates an endpoint behind a per-client sliding window.
// Identified actors are limited per actor id, anonymous callers per client
// IP. A store failure admits the request; throttling is protection, not a
// correctness gate.
type Middleware struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   clock.Clock
	limit   int
	window  time.Duration
}

func NewMiddleware(store Store, logger *slog.Logger, m *metrics.Metrics, clk clock.Clock, limit int, window time.Duration) *Middleware {
	return &Middleware{
		store:   store,
		logger:  logger,
		metrics: m,
		clock:   clk,
		limit:   limit,
		window:  window,
	}
}

func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := clientKey(r)

		result, err := m.store.Allow(ctx, key, m.limit, m.window)
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed; admitting request",
				"key", key,
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if m.metrics != nil {
				m.metrics.RateLimitRejections.Inc()
			}
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(m.clock.Now())))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited,
				"too many catch-up requests, slow down and retry later"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if actorID := auth.GetActorID(r.Context()); actorID != 0 {
		return "actor:" + strconv.FormatInt(actorID, 10)
	}
	return "ip:" + metadata.GetClientIP(r.Context())
}
