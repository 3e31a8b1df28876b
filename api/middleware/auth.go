package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/smartpark-backend/api/responses"
	pkgAuth "github.com/angelmondragon/smartpark-backend/pkg/auth"
	"github.com/angelmondragon/smartpark-backend/pkg/config"
	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

// UserSyncer resolves the local profile for verified claims, creating it on
// first sight.
type UserSyncer interface {
	Sync(ctx context.Context, claims *pkgAuth.AccessTokenClaims) (*models.User, error)
}

const accessTokenQueryParam = "access_token"

// Auth validates the provider bearer token, syncs the profile and seeds the
// request context with it. Websocket upgrades may pass the token as the
// access_token query parameter since browsers cannot set headers there.
func Auth(cfg config.AuthConfig, users UserSyncer, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			user, err := users.Sync(r.Context(), claims)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithUser(r.Context(), user)
			if logg != nil {
				ctx = logg.WithUserID(ctx, user.ID)
				ctx = logg.WithActorRole(ctx, user.Role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw != "" {
		if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
			return strings.TrimSpace(raw[7:])
		}
		return raw
	}
	if isWebsocketUpgrade(r) {
		return strings.TrimSpace(r.URL.Query().Get(accessTokenQueryParam))
	}
	return ""
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
