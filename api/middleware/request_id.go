package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/angelmondragon/smartpark-backend/api/responses"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

// Inbound ids from proxies are reused only when they look like ids.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{8,128}$`)

func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(responses.RequestIDHeader)
			if !requestIDPattern.MatchString(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(responses.RequestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
