package occupancy

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
)

// ParkAccess resolves a park for its owner, failing with NOT_FOUND or
// FORBIDDEN.
type ParkAccess interface {
	OwnedPark(ctx context.Context, ownerID string, parkID uuid.UUID) (*models.Park, error)
}

// ManualService lets park owners override slot state.
type ManualService struct {
	machine *Machine
	parks   ParkAccess
}

func NewManualService(machine *Machine, parks ParkAccess) (*ManualService, error) {
	if machine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "occupancy machine required")
	}
	if parks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "park access required")
	}
	return &ManualService{machine: machine, parks: parks}, nil
}

// SetSlot applies a manual override after checking the caller owns the slot's park.
func (s *ManualService) SetSlot(ctx context.Context, ownerID string, slotID uuid.UUID, occupied bool) (*Transition, error) {
	slot, err := s.machine.FindSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if _, err := s.parks.OwnedPark(ctx, ownerID, slot.ParkID); err != nil {
		return nil, err
	}
	return s.machine.UpdateSlotStatus(ctx, slotID, occupied, enums.TriggerManual)
}
