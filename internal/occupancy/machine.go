package occupancy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartpark-backend/internal/eventlog"
	"github.com/angelmondragon/smartpark-backend/internal/realtime"
	"github.com/angelmondragon/smartpark-backend/pkg/db"
	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
	"github.com/angelmondragon/smartpark-backend/pkg/metrics"
)

// Transition describes the outcome of applying an occupancy report to a slot.
type Transition struct {
	Slot           models.Slot
	Changed        bool
	Trigger        enums.OccupancyTrigger
	Log            *models.Log
	ClosedBookings []models.Booking
}

// txRunner is the transaction surface of pkg/db.Client.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MachineParams configure the slot state machine.
type MachineParams struct {
	Repo      Repository
	Logs      eventlog.Repository
	Tx        txRunner
	Publisher realtime.Publisher
	Metrics   *metrics.ParkingMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// Machine owns every slot transition. Each transition updates the slot, appends
// the matching log entry and, when a slot is freed by a report, closes its
// active booking, all in the caller's transaction.
type Machine struct {
	repo      Repository
	logs      eventlog.Repository
	tx        txRunner
	publisher realtime.Publisher
	metrics   *metrics.ParkingMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewMachine validates dependencies and builds a Machine.
func NewMachine(params MachineParams) (*Machine, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "occupancy repository required")
	}
	if params.Logs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "eventlog repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	publisher := params.Publisher
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Machine{
		repo:      params.Repo,
		logs:      params.Logs,
		tx:        params.Tx,
		publisher: publisher,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Now returns the machine clock.
func (m *Machine) Now() time.Time {
	return m.now()
}

// Claim occupies the first free slot of the park in position order. A lost
// compare-and-set moves on to the next candidate. When every candidate is taken
// it returns NO_SLOT_AVAILABLE without mutating anything.
func (m *Machine) Claim(ctx context.Context, tx *gorm.DB, parkID uuid.UUID, trigger enums.OccupancyTrigger) (*Transition, error) {
	repo := m.repo.WithTx(tx)
	candidates, err := repo.FreeSlots(ctx, parkID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list free slots")
	}

	now := m.now()
	for _, slot := range candidates {
		won, err := repo.CompareAndSetOccupied(ctx, slot.ID, false, true, now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim slot")
		}
		if !won {
			continue
		}
		slot.IsOccupied = true
		slot.LastUpdated = now

		entry, err := m.appendLog(ctx, tx, slot, enums.LogEventEntry, trigger, now)
		if err != nil {
			return nil, err
		}
		return &Transition{Slot: slot, Changed: true, Trigger: trigger, Log: entry}, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeNoSlot, "No slots available")
}

// Apply moves slot to the requested state inside tx. Same-state reports only
// refresh last_updated. When closeBookings is set, freeing the slot completes
// any active booking on it.
func (m *Machine) Apply(ctx context.Context, tx *gorm.DB, slot models.Slot, occupied bool, trigger enums.OccupancyTrigger, closeBookings bool) (*Transition, error) {
	repo := m.repo.WithTx(tx)
	now := m.now()

	changed, err := repo.CompareAndSetOccupied(ctx, slot.ID, !occupied, occupied, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update slot status")
	}

	slot.IsOccupied = occupied
	slot.LastUpdated = now
	result := &Transition{Slot: slot, Changed: changed, Trigger: trigger}

	if !changed {
		if err := repo.Touch(ctx, slot.ID, now); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch slot")
		}
		return result, nil
	}

	eventType := enums.LogEventEntry
	if !occupied {
		eventType = enums.LogEventExit
	}
	result.Log, err = m.appendLog(ctx, tx, slot, eventType, trigger, now)
	if err != nil {
		return nil, err
	}

	if !occupied && closeBookings {
		result.ClosedBookings, err = m.closeActiveBookings(ctx, repo, slot.ID, now)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// CloseBooking moves an active booking to status inside tx. It reports false
// when the booking was no longer active.
func (m *Machine) CloseBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, status enums.BookingStatus, now time.Time) (bool, error) {
	closed, err := m.repo.WithTx(tx).CloseBooking(ctx, bookingID, status, now)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close booking")
	}
	return closed, nil
}

// UpdateSlotStatus is the idempotent slot setter used by manual overrides.
func (m *Machine) UpdateSlotStatus(ctx context.Context, slotID uuid.UUID, occupied bool, trigger enums.OccupancyTrigger) (*Transition, error) {
	return m.update(ctx, uuid.Nil, slotID, occupied, trigger)
}

// ReportOccupancy applies a detector observation. The slot must belong to parkID.
func (m *Machine) ReportOccupancy(ctx context.Context, parkID, slotID uuid.UUID, occupied bool) (*Transition, error) {
	if parkID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "park id required")
	}
	return m.update(ctx, parkID, slotID, occupied, enums.TriggerDetector)
}

// ListSlots returns a park's slots in position order.
func (m *Machine) ListSlots(ctx context.Context, parkID uuid.UUID) ([]models.Slot, error) {
	slots, err := m.repo.ListSlots(ctx, parkID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list slots")
	}
	return slots, nil
}

// FindSlot loads a slot or fails with NOT_FOUND.
func (m *Machine) FindSlot(ctx context.Context, slotID uuid.UUID) (*models.Slot, error) {
	slot, err := m.repo.FindSlot(ctx, slotID)
	if err != nil {
		return nil, slotLookupError(err)
	}
	return slot, nil
}

func (m *Machine) update(ctx context.Context, parkID, slotID uuid.UUID, occupied bool, trigger enums.OccupancyTrigger) (*Transition, error) {
	if slotID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slot id required")
	}

	var result *Transition
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		slot, err := m.repo.WithTx(tx).FindSlot(ctx, slotID)
		if err != nil {
			return slotLookupError(err)
		}
		if parkID != uuid.Nil && slot.ParkID != parkID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "slot not found in park")
		}
		result, err = m.Apply(ctx, tx, *slot, occupied, trigger, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.Observe(ctx, result)
	m.Publish(ctx, result)
	return result, nil
}

// Observe records metrics and logs for a committed transition.
func (m *Machine) Observe(ctx context.Context, t *Transition) {
	if t == nil || !t.Changed {
		return
	}
	m.metrics.ObserveTransition(t.Trigger.String(), t.Slot.IsOccupied)
	ctx = m.logg.WithFields(m.logg.WithParkID(ctx, t.Slot.ParkID.String()), map[string]any{
		"slot_id":     t.Slot.ID.String(),
		"slot_number": t.Slot.SlotNumber,
		"is_occupied": t.Slot.IsOccupied,
		"trigger":     t.Trigger.String(),
	})
	m.logg.Info(ctx, "slot.transition")
	for _, b := range t.ClosedBookings {
		m.metrics.IncBooking(string(b.Status))
	}
}

// Publish announces a committed transition on the park channel.
func (m *Machine) Publish(ctx context.Context, t *Transition) {
	if t == nil {
		return
	}
	parkID := t.Slot.ParkID.String()
	msgs := []realtime.Message{realtime.NewMessage(realtime.MessageSlotUpdated, parkID, NewSlotView(t.Slot))}
	if t.Log != nil {
		msgs = append(msgs, realtime.NewMessage(realtime.MessageLogCreated, parkID, eventlog.ToEntry(*t.Log)))
	}
	for _, b := range t.ClosedBookings {
		msgs = append(msgs, realtime.NewMessage(realtime.MessageBookingClosed, parkID, map[string]any{
			"booking_id": b.ID,
			"slot_id":    b.SlotID,
			"status":     b.Status,
		}))
	}
	m.publisher.Publish(ctx, msgs...)
}

// SlotView is the public shape of a slot in responses and events.
type SlotView struct {
	ID          uuid.UUID `json:"id"`
	ParkID      uuid.UUID `json:"park_id"`
	SlotNumber  string    `json:"slot_number"`
	IsOccupied  bool      `json:"is_occupied"`
	LastUpdated time.Time `json:"last_updated"`
}

func NewSlotView(slot models.Slot) SlotView {
	return SlotView{
		ID:          slot.ID,
		ParkID:      slot.ParkID,
		SlotNumber:  slot.SlotNumber,
		IsOccupied:  slot.IsOccupied,
		LastUpdated: slot.LastUpdated,
	}
}

// NewSlotViews maps slots preserving order.
func NewSlotViews(slots []models.Slot) []SlotView {
	views := make([]SlotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, NewSlotView(slot))
	}
	return views
}

func (m *Machine) appendLog(ctx context.Context, tx *gorm.DB, slot models.Slot, eventType enums.LogEventType, trigger enums.OccupancyTrigger, now time.Time) (*models.Log, error) {
	slotID := slot.ID
	entry := &models.Log{
		ParkID:      slot.ParkID,
		SlotID:      &slotID,
		Timestamp:   now,
		EventType:   eventType,
		Description: describe(slot.SlotNumber, eventType, trigger),
	}
	if err := m.logs.WithTx(tx).Append(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append log")
	}
	slotCopy := slot
	entry.Slot = &slotCopy
	return entry, nil
}

func (m *Machine) closeActiveBookings(ctx context.Context, repo Repository, slotID uuid.UUID, now time.Time) ([]models.Booking, error) {
	active, err := repo.ActiveBookingsForSlot(ctx, slotID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active bookings")
	}
	closed := make([]models.Booking, 0, len(active))
	for _, b := range active {
		ok, err := repo.CloseBooking(ctx, b.ID, enums.BookingStatusCompleted, now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close booking")
		}
		if !ok {
			continue
		}
		b.Status = enums.BookingStatusCompleted
		closedAt := now
		b.ClosedAt = &closedAt
		closed = append(closed, b)
	}
	return closed, nil
}

func describe(slotNumber string, eventType enums.LogEventType, trigger enums.OccupancyTrigger) string {
	var verb string
	switch eventType {
	case enums.LogEventEntry:
		verb = "occupied"
	case enums.LogEventExit:
		verb = "vacated"
	default:
		verb = "flagged"
	}
	switch trigger {
	case enums.TriggerBooking:
		return fmt.Sprintf("Slot %s reserved by booking", slotNumber)
	case enums.TriggerDetector:
		return fmt.Sprintf("Vehicle detected: slot %s %s", slotNumber, verb)
	case enums.TriggerManual:
		return fmt.Sprintf("Slot %s manually marked %s", slotNumber, verb)
	case enums.TriggerComplete:
		return fmt.Sprintf("Slot %s released: booking completed", slotNumber)
	case enums.TriggerCancel:
		return fmt.Sprintf("Slot %s released: booking cancelled", slotNumber)
	case enums.TriggerExpiry:
		return fmt.Sprintf("Slot %s released: booking expired", slotNumber)
	default:
		return fmt.Sprintf("Slot %s %s", slotNumber, verb)
	}
}

func slotLookupError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "slot not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load slot")
}
