// Package httptransport assembles the public HTTP surface: the assignment
// endpoints, the audit ledger endpoints, and the operational routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	assignmenthandler "aims/internal/assignment/handler"
	audithandler "aims/internal/audit/handler"
	"aims/internal/ratelimit"
	"aims/pkg/platform/middleware/metadata"
	"aims/pkg/platform/middleware/request"
)

// Deps carries the wired handlers and the optional cross-cutting middleware.
// Auth is nil when token checks are disabled; RateLimit is nil only in tests.
type Deps struct {
	Assignments *assignmenthandler.Handler
	Audit       *audithandler.Handler
	RateLimit   *ratelimit.Middleware
	Auth        func(http.Handler) http.Handler
	Logger      *slog.Logger
	Ready       func() error
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(deps.Logger))

	// Mutations. Optionally token-gated; never rate limited, the engine's
	// own concurrency control is the backstop.
	r.Group(func(r chi.Router) {
		if deps.Auth != nil {
			r.Use(deps.Auth)
		}
		deps.Assignments.Register(r)
		deps.Audit.RegisterMutations(r)
	})

	// Reads. Throttled per client so catch-up polling cannot starve the
	// ledger.
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}
		deps.Audit.RegisterQueries(r)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"request_id", request.GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(started).Milliseconds(),
			)
		})
	}
}
