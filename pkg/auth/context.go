package auth

import "context"

// userContextKey is the key used to store an AuthenticatedUser in a
// request context. Using an empty struct as the key prevents
// collisions with other packages' context keys.
type userContextKey struct{}

// WithUser stores an AuthenticatedUser in the context. Used by every
// dispatcher (pkg/jsonrpc, pkg/rest, pkg/bidi) after a successful
// authentication so handlers can retrieve it.
func WithUser(ctx context.Context, user AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthenticatedUser set by WithUser.
// Returns the zero value and false if no user is present (the
// "anonymous" case for Unauthorized methods or optional-auth WS
// connections).
func UserFromContext(ctx context.Context) (AuthenticatedUser, bool) {
	user, ok := ctx.Value(userContextKey{}).(AuthenticatedUser)
	return user, ok
}
