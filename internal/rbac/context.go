package rbac

import "context"

type contextKey struct{}

// ContextWithUserID stores the authenticated user id in the context. The host
// application's authentication layer installs it before reaching the
// authorization middleware.
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext extracts the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok
}
