package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/smartpark-backend/api/middleware"
	"github.com/angelmondragon/smartpark-backend/api/responses"
	"github.com/angelmondragon/smartpark-backend/api/validators"
	"github.com/angelmondragon/smartpark-backend/internal/occupancy"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

// SlotOverrider applies owner slot overrides.
type SlotOverrider interface {
	SetSlot(ctx context.Context, ownerID string, slotID uuid.UUID, occupied bool) (*occupancy.Transition, error)
}

type updateSlotRequest struct {
	IsOccupied *bool `json:"is_occupied" validate:"required"`
}

// OwnerUpdateSlot sets a slot's occupancy by hand. Repeating the current
// state only refreshes last_updated.
func OwnerUpdateSlot(svc SlotOverrider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, err := validators.ParseUUIDParam(r, "slotId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateSlotRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transition, err := svc.SetSlot(r.Context(), middleware.UserIDFromContext(r.Context()), slotID, *body.IsOccupied)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, occupancy.NewSlotView(transition.Slot))
	}
}
