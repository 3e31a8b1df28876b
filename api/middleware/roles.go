package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/smartpark-backend/api/responses"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

// RequireRole rejects callers whose synced profile does not carry role.
func RequireRole(role enums.UserRole, logg *logger.Logger) func(http.Handler) http.Handler {
	message := "Not authorized as " + titleCase(role.String())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != role.String() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, message))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
