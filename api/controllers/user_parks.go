package controllers

import (
	"net/http"

	"github.com/angelmondragon/smartpark-backend/api/responses"
	"github.com/angelmondragon/smartpark-backend/api/validators"
	"github.com/angelmondragon/smartpark-backend/internal/parks"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

// UserNearbyParks lists parks within radius km of (lat, lon), nearest first.
func UserNearbyParks(svc parks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, err := validators.ParseQueryFloat(r, "lat")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lon, err := validators.ParseQueryFloat(r, "lon")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		radius, err := validators.ParseOptionalQueryFloat(r, "radius", parks.DefaultRadiusKm)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.Nearby(r.Context(), parks.NearbyQuery{Lat: lat, Lon: lon, RadiusKm: radius})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

func UserParkDetail(svc parks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parkID, err := validators.ParseUUIDParam(r, "parkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Detail(r.Context(), parkID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
