package eventlog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200

	noSlotNumber = "N/A"
)

// ParkAccess resolves a park for its owner, failing with NOT_FOUND or
// FORBIDDEN.
type ParkAccess interface {
	OwnedPark(ctx context.Context, ownerID string, parkID uuid.UUID) (*models.Park, error)
}

// Service exposes the owner-facing event log.
type Service interface {
	Recent(ctx context.Context, ownerID string, parkID uuid.UUID, limit int) ([]Entry, error)
}

// Entry is a log row shaped for API consumers.
type Entry struct {
	ID          uuid.UUID  `json:"id"`
	ParkID      uuid.UUID  `json:"park_id"`
	SlotID      *uuid.UUID `json:"slot_id,omitempty"`
	SlotNumber  string     `json:"slot_number"`
	Timestamp   time.Time  `json:"timestamp"`
	EventType   string     `json:"event_type"`
	Description string     `json:"description"`
	SnapshotURL *string    `json:"snapshot_url,omitempty"`
}

type service struct {
	repo  Repository
	parks ParkAccess
}

// NewService wires event log dependencies.
func NewService(repo Repository, parks ParkAccess) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "eventlog repository required")
	}
	if parks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "park access required")
	}
	return &service{repo: repo, parks: parks}, nil
}

// NormalizeLimit clamps limit to [1, MaxLimit], defaulting non-positive values.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func (s *service) Recent(ctx context.Context, ownerID string, parkID uuid.UUID, limit int) ([]Entry, error) {
	if _, err := s.parks.OwnedPark(ctx, ownerID, parkID); err != nil {
		return nil, err
	}

	rows, err := s.repo.Recent(ctx, parkID, NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list park logs")
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ToEntry(row))
	}
	return entries, nil
}

// ToEntry maps a stored log, with its optional preloaded slot, to an Entry.
func ToEntry(row models.Log) Entry {
	slotNumber := noSlotNumber
	if row.Slot != nil && row.Slot.SlotNumber != "" {
		slotNumber = row.Slot.SlotNumber
	}
	return Entry{
		ID:          row.ID,
		ParkID:      row.ParkID,
		SlotID:      row.SlotID,
		SlotNumber:  slotNumber,
		Timestamp:   row.Timestamp,
		EventType:   row.EventType.String(),
		Description: row.Description,
		SnapshotURL: row.SnapshotURL,
	}
}
