package controllers

import (
	"net/http"

	"github.com/angelmondragon/smartpark-backend/api/middleware"
	"github.com/angelmondragon/smartpark-backend/api/responses"
	"github.com/angelmondragon/smartpark-backend/internal/users"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

// AuthMe returns the caller's synced profile.
func AuthMe(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		responses.WriteSuccess(w, users.FromModel(user))
	}
}
