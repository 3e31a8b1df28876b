package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smartpark-backend/api/middleware"
	"github.com/angelmondragon/smartpark-backend/api/responses"
	"github.com/angelmondragon/smartpark-backend/api/validators"
	"github.com/angelmondragon/smartpark-backend/internal/parks"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

const maxParkTextLen = 200

type createParkRequest struct {
	Name          string           `json:"name" validate:"required,max=200"`
	Location      string           `json:"location" validate:"required,max=200"`
	Latitude      *float64         `json:"latitude" validate:"required,latitude"`
	Longitude     *float64         `json:"longitude" validate:"required,longitude"`
	TotalSlots    int              `json:"total_slots" validate:"required,min=1,max=500"`
	HourlyRate    *decimal.Decimal `json:"hourly_rate" validate:"required"`
	CameraRTSPURL *string          `json:"camera_rtsp_url,omitempty" validate:"omitempty,max=2048"`
	PaymentLink   *string          `json:"payment_link,omitempty" validate:"omitempty,url,max=2048"`
}

type updateParkRequest struct {
	Name          *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Location      *string          `json:"location,omitempty" validate:"omitempty,min=1,max=200"`
	Latitude      *float64         `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude     *float64         `json:"longitude,omitempty" validate:"omitempty,longitude"`
	HourlyRate    *decimal.Decimal `json:"hourly_rate,omitempty"`
	CameraRTSPURL *string          `json:"camera_rtsp_url,omitempty" validate:"omitempty,max=2048"`
	PaymentLink   *string          `json:"payment_link,omitempty" validate:"omitempty,max=2048"`
}

// OwnerCreatePark creates a park with its slot grid.
func OwnerCreatePark(svc parks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createParkRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Create(r.Context(), middleware.UserIDFromContext(r.Context()), parks.CreateInput{
			Name:          validators.SanitizeString(body.Name, maxParkTextLen),
			Location:      validators.SanitizeString(body.Location, maxParkTextLen),
			Latitude:      *body.Latitude,
			Longitude:     *body.Longitude,
			TotalSlots:    body.TotalSlots,
			HourlyRate:    *body.HourlyRate,
			CameraRTSPURL: body.CameraRTSPURL,
			PaymentLink:   body.PaymentLink,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// OwnerListParks lists the caller's parks with live availability.
func OwnerListParks(svc parks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := svc.ListOwned(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// OwnerUpdatePark patches park fields. An empty camera_rtsp_url removes the
// camera and stops detection.
func OwnerUpdatePark(svc parks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parkID, err := validators.ParseUUIDParam(r, "parkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateParkRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := parks.UpdateInput{
			Latitude:      body.Latitude,
			Longitude:     body.Longitude,
			HourlyRate:    body.HourlyRate,
			CameraRTSPURL: body.CameraRTSPURL,
			PaymentLink:   body.PaymentLink,
		}
		if body.Name != nil {
			name := validators.SanitizeString(*body.Name, maxParkTextLen)
			input.Name = &name
		}
		if body.Location != nil {
			location := validators.SanitizeString(*body.Location, maxParkTextLen)
			input.Location = &location
		}

		view, err := svc.Update(r.Context(), middleware.UserIDFromContext(r.Context()), parkID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
