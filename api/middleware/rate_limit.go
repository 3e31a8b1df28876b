package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/angelmondragon/smartpark-backend/api/responses"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

// IPRateLimit throttles every caller by client IP with an in-process sliding
// window. A non-positive limit disables it.
func IPRateLimit(limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if limit <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if logg != nil {
				logg.Warn(r.Context(), "rate_limit.ip.blocked")
			}
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
		}),
	)
}

// WindowCounter is the fixed-window counter pkg/redis provides.
type WindowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// BookingRateLimit caps booking creations per authenticated user across all
// API replicas using a Redis fixed window. It must run after Auth.
func BookingRateLimit(store WindowCounter, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := UserIDFromContext(ctx)
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, count, err := store.FixedWindowAllow(ctx, "booking:"+userID, int64(limit), window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"attempts":       count,
						"limit":          limit,
						"window_seconds": int(window.Seconds()),
					}), "rate_limit.booking.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many booking attempts"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
