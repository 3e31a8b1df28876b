package middleware

import (
	"context"

	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
	ctxUser   contextKey = "user"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// UserFromContext returns the synced profile attached by Auth.
func UserFromContext(ctx context.Context) *models.User {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxUser).(*models.User); ok {
		return v
	}
	return nil
}

// WithUser injects the profile, its id and role into the context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if user == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, ctxUser, user)
	ctx = context.WithValue(ctx, ctxUserID, user.ID)
	return context.WithValue(ctx, ctxRole, user.Role.String())
}
