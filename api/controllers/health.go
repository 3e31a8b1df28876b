package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/smartpark-backend/api/responses"
	"github.com/angelmondragon/smartpark-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is any dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SmartPark-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and redis; any failure answers 503.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SmartPark-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		var failed error
		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				checks["database"] = "unavailable"
				failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database not ready")
			}
		}
		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				checks["redis"] = "unavailable"
				if failed == nil {
					failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis not ready")
				}
			}
		}
		if failed != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.As(failed).WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
