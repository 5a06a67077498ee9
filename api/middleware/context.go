package middleware

import (
	"context"

	"github.com/google/uuid"
)

type userIDKey struct{}

// WithUserID stores the authenticated user id for downstream handlers.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// ActorID is UserIDFromContext parsed as a UUID. ok is false for anonymous
// requests.
func ActorID(ctx context.Context) (id uuid.UUID, ok bool) {
	parsed, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, false
	}
	return parsed, true
}
