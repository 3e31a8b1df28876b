package controllers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/angelmondragon/smartpark-backend/api/middleware"
	"github.com/angelmondragon/smartpark-backend/api/responses"
	"github.com/angelmondragon/smartpark-backend/api/validators"
	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

// ParkResolver checks that a park exists and, for owners, that they own it.
type ParkResolver interface {
	Get(ctx context.Context, parkID uuid.UUID) (*models.Park, error)
	OwnedPark(ctx context.Context, ownerID string, parkID uuid.UUID) (*models.Park, error)
}

// RoomAttacher registers an upgraded connection in a park room.
type RoomAttacher interface {
	Attach(ctx context.Context, conn *websocket.Conn, parkID string)
}

// NewUpgrader accepts browser origins from the CORS allow-list; requests
// without an Origin header (native clients) are always accepted.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	wildcard := false
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			wildcard = true
		}
		allowed[strings.ToLower(o)] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || wildcard {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			_, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
			return ok
		},
	}
}

// ParkSocket upgrades to a websocket subscribed to a park's realtime room.
func ParkSocket(parks ParkResolver, hub RoomAttacher, upgrader *websocket.Upgrader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parkID, err := validators.ParseUUIDParam(r, "parkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if middleware.RoleFromContext(ctx) == enums.UserRoleOwner.String() {
			_, err = parks.OwnedPark(ctx, middleware.UserIDFromContext(ctx), parkID)
		} else {
			_, err = parks.Get(ctx, parkID)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			if logg != nil {
				logg.Warn(logg.WithParkID(ctx, parkID.String()), "realtime.upgrade_failed")
			}
			return
		}
		// The request context ends when the handler returns; the connection
		// outlives it.
		hub.Attach(context.WithoutCancel(ctx), conn, parkID.String())
	}
}
