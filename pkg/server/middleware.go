package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowmatic/console/pkg/domain"
)

// Identity headers a fronting proxy injects after authenticating the caller.
const (
	SubjectHeader   = "X-Console-Subject"
	RolesHeader     = "X-Console-Roles"
	RequestIDHeader = "X-Request-ID"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	principalContextKey contextKey = "principal"
	requestIDContextKey contextKey = "requestID"
)

// PrincipalFromRequest reads the injected identity headers. An absent
// subject yields an anonymous principal, which the policy resolves to no
// grants; authentication failures are not this service's concern.
func PrincipalFromRequest(r *http.Request) domain.Principal {
	principal := domain.Principal{
		Subject: strings.TrimSpace(r.Header.Get(SubjectHeader)),
	}

	if raw := r.Header.Get(RolesHeader); raw != "" {
		for _, role := range strings.Split(raw, ",") {
			if role = strings.TrimSpace(role); role != "" {
				principal.Roles = append(principal.Roles, role)
			}
		}
	}

	return principal
}

// PrincipalFromContext returns the principal stored by IdentityMiddleware.
func PrincipalFromContext(ctx context.Context) domain.Principal {
	if p, ok := ctx.Value(principalContextKey).(domain.Principal); ok {
		return p
	}
	return domain.Principal{}
}

// RequestIDFromContext returns the request ID assigned by AccessLogMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// IdentityMiddleware extracts the caller identity once per request and
// stores it in the context for handlers.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), principalContextKey, PrincipalFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLogMiddleware assigns a request ID (honouring one supplied by the
// fronting proxy) and logs each request with its outcome.
func AccessLogMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		logger.Info("Request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"subject", PrincipalFromRequest(r).Subject,
		)
	})
}
