// ABOUTME: Request-scoped identity storage for authenticated management calls
// ABOUTME: Typed context key prevents collisions with other packages

package auth

import "context"

type contextKey struct{}

// AuthContext is the authenticated identity attached to a request.
type AuthContext struct {
	Subject string
	Role    string
}

// WithAuth returns a context carrying the authenticated identity.
func WithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext extracts the authenticated identity, if any.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(*AuthContext)
	return ac, ok
}

// IsAdmin reports whether the request is authenticated with the admin role.
func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	return ok && ac.Role == RoleAdmin
}
