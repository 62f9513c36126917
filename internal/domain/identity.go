package domain

import "context"

// Identity is the request-scoped caller identity resolved by the auth
// middleware. Role and TenantID come from the live user record, not from
// token claims, except when the store is unreachable and the middleware
// degrades to claims (Stale is then true).
type Identity struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role"`
	TenantID  string `json:"tenant_id"`
	Stale     bool   `json:"-"`
}

type identityKeyType struct{}

var identityKey identityKeyType

// NewIdentityContext returns a context carrying the caller identity.
func NewIdentityContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the caller identity from the context.
// Returns nil if the request was not authenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey).(*Identity); ok {
		return id
	}
	return nil
}
