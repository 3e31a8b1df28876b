package middleware

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/smartpark-backend/api/responses"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

// Recoverer turns handler panics into a 500 envelope. http.ErrAbortHandler is
// re-raised so net/http can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic":  fmt.Sprint(rec),
						"method": r.Method,
						"path":   r.URL.Path,
					})
					logg.Error(ctx, "panic.recovered", err)
				}
				// upgraded websocket connections have no response to write
				if r.Header.Get("Upgrade") == "websocket" {
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
