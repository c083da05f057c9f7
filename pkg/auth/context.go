package auth

import (
	"context"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying the caller's claims.
func WithClaims(ctx context.Context, claims *model.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims, if any.
func ClaimsFromContext(ctx context.Context) (*model.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*model.Claims)
	return claims, ok && claims != nil
}

// ActorID is the subject of the claims on ctx, or "system" when the call did
// not come through an authenticated request.
func ActorID(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok && claims.Subject != "" {
		return claims.Subject
	}
	return "system"
}
