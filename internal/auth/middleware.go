package auth

import (
	"context"
	"log"
	"net/http"

	"serp-similarity/pkg/logging"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// AnalystNameKey is the context key for the resolved analyst name
	AnalystNameKey contextKey = "analyst_name"
	// ClientIPKey is the context key for the client IP address
	ClientIPKey contextKey = "client_ip"
)

// Middleware resolves the analyst behind each request. Attach runs on every
// route and only annotates the context; RequireAnalyst additionally gates
// mutating routes when the deployment demands attribution.
type Middleware struct {
	resolver           *AnalystResolver
	require            bool
	renderUnauthorized func(w http.ResponseWriter, ip string)
}

// NewMiddleware creates the analyst middleware. require mirrors the
// REQUIRE_ANALYST config flag.
func NewMiddleware(resolver *AnalystResolver, require bool, renderUnauthorized func(w http.ResponseWriter, ip string)) *Middleware {
	return &Middleware{
		resolver:           resolver,
		require:            require,
		renderUnauthorized: renderUnauthorized,
	}
}

// Attach resolves the client IP and analyst name into the request context.
// Unresolved visitors pass through anonymous. The analyst name is also set
// under the logging key so context-aware log lines carry it.
func (m *Middleware) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := m.resolver.GetClientIP(r)
		ctx := context.WithValue(r.Context(), ClientIPKey, clientIP)

		if name, found := m.resolver.GetAnalyst(r); found {
			ctx = context.WithValue(ctx, AnalystNameKey, name)
			ctx = context.WithValue(ctx, logging.AnalystKey, name)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAnalyst wraps mutating handlers. When attribution is required and
// the request carries no resolved analyst, it renders the unauthorized page
// instead of calling next.
func (m *Middleware) RequireAnalyst(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.require {
			next.ServeHTTP(w, r)
			return
		}

		if _, ok := AnalystFromContext(r.Context()); !ok {
			ip, _ := ClientIPFromContext(r.Context())
			if ip == "" {
				ip = m.resolver.GetClientIP(r)
			}
			log.Printf("Blocked submission from unresolved IP: %s", ip)
			m.renderUnauthorized(w, ip)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AnalystFromContext retrieves the analyst name from the request context.
func AnalystFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(AnalystNameKey).(string)
	return name, ok
}

// ClientIPFromContext retrieves the client IP from the request context.
func ClientIPFromContext(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(ClientIPKey).(string)
	return ip, ok
}
