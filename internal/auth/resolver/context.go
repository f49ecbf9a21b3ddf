// Package resolver turns request credentials into a per-request
// authentication verdict and provides the access-control guards built on it.
//
// Exactly one credential wins per request, in fixed priority order: bearer
// token, then API key, then legacy session cookie. A request with no
// credentials resolves to the anonymous context, which is not an error;
// guards decide whether anonymous is acceptable for a route.
package resolver

import (
	"context"

	"github.com/tabwatch/fleetwatch/internal/auth/domain"
)

type contextKey struct{}

// WithAuthContext attaches the verdict to the request context.
func WithAuthContext(ctx context.Context, ac domain.AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the request's verdict, or the anonymous context when
// the resolver middleware did not run.
func FromContext(ctx context.Context) domain.AuthContext {
	if ac, ok := ctx.Value(contextKey{}).(domain.AuthContext); ok {
		return ac
	}
	return domain.Anonymous()
}
