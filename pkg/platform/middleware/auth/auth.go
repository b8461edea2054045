// Package auth guards mutating endpoints with bearer-token actor identity.
// Token issuance lives outside this service; this middleware only validates
// and extracts the acting user.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "aims/pkg/domain-errors"
	"aims/pkg/platform/httputil"
	request "aims/pkg/platform/middleware/request"
)

// ActorClaims is the validated identity of the caller.
type ActorClaims struct {
	ActorID int64
}

// Validator validates a bearer token and returns the actor claims.
type Validator interface {
	ValidateActor(tokenString string) (*ActorClaims, error)
}

type contextKeyActorID struct{}

// GetActorID retrieves the authenticated actor from the context; zero when
// the request was not authenticated (auth disabled).
func GetActorID(ctx context.Context) int64 {
	if id, ok := ctx.Value(contextKeyActorID{}).(int64); ok {
		return id
	}
	return 0
}

// WithActorID injects an actor into a context for tests.
func WithActorID(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, contextKeyActorID{}, actorID)
}

// RequireActor rejects requests without a valid bearer token. Unauthorized
// callers get 403 so the endpoint does not reveal whether the resource exists.
func RequireActor(validator Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := validator.ValidateActor(token)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected token",
					"error", err,
					"request_id", request.GetRequestID(r.Context()),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid bearer token"))
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyActorID{}, claims.ActorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
