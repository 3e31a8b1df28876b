package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/smartpark-backend/api/middleware"
	"github.com/angelmondragon/smartpark-backend/api/responses"
	"github.com/angelmondragon/smartpark-backend/api/validators"
	"github.com/angelmondragon/smartpark-backend/internal/bookings"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
	"github.com/angelmondragon/smartpark-backend/pkg/pagination"
)

type createBookingRequest struct {
	ParkID        uuid.UUID `json:"park_id" validate:"required"`
	DurationHours int       `json:"duration_hours" validate:"required,min=1,max=24"`
}

// UserCreateBooking reserves the first free slot of a park.
func UserCreateBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createBookingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithParkID(ctx, body.ParkID.String())
		}

		view, err := svc.Create(ctx, middleware.UserIDFromContext(ctx), bookings.CreateInput{
			ParkID:        body.ParkID,
			DurationHours: body.DurationHours,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// UserListBookings pages through the caller's bookings, newest first.
func UserListBookings(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

type bookingCloser func(ctx context.Context, userID string, bookingID uuid.UUID) (*bookings.View, error)

func closeBooking(fn bookingCloser, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := fn(r.Context(), middleware.UserIDFromContext(r.Context()), bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func UserCompleteBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return closeBooking(svc.Complete, logg)
}

func UserCancelBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return closeBooking(svc.Cancel, logg)
}
