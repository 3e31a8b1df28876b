package controllers

import (
	"net/http"

	"github.com/angelmondragon/smartpark-backend/api/middleware"
	"github.com/angelmondragon/smartpark-backend/api/responses"
	"github.com/angelmondragon/smartpark-backend/api/validators"
	"github.com/angelmondragon/smartpark-backend/internal/dashboard"
	"github.com/angelmondragon/smartpark-backend/internal/eventlog"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

func OwnerDashboard(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parkID, err := validators.ParseUUIDParam(r, "parkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		overview, err := svc.Dashboard(r.Context(), middleware.UserIDFromContext(r.Context()), parkID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

func OwnerAnalytics(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parkID, err := validators.ParseUUIDParam(r, "parkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		days, err := validators.ParseQueryInt(r, "days", dashboard.DefaultDays, 1, dashboard.MaxDays)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Analytics(r.Context(), middleware.UserIDFromContext(r.Context()), parkID, days)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// OwnerLogs returns the most recent entry/exit events of a park.
func OwnerLogs(svc eventlog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parkID, err := validators.ParseUUIDParam(r, "parkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", eventlog.DefaultLimit, 1, eventlog.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.Recent(r.Context(), middleware.UserIDFromContext(r.Context()), parkID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}
