package bookings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartpark-backend/internal/occupancy"
	"github.com/angelmondragon/smartpark-backend/internal/realtime"
	"github.com/angelmondragon/smartpark-backend/pkg/db"
	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
	"github.com/angelmondragon/smartpark-backend/pkg/metrics"
	"github.com/angelmondragon/smartpark-backend/pkg/pagination"
)

const (
	MinDurationHours = 1
	MaxDurationHours = 24

	// DefaultExpiryBatch bounds how many due bookings one expiry run closes.
	DefaultExpiryBatch = 200
)

// ParkLookup resolves a park by id, failing with NOT_FOUND.
type ParkLookup interface {
	Get(ctx context.Context, parkID uuid.UUID) (*models.Park, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service creates and closes driver bookings.
type Service interface {
	Create(ctx context.Context, userID string, input CreateInput) (*View, error)
	List(ctx context.Context, userID string, params pagination.Params) (pagination.Page[View], error)
	Complete(ctx context.Context, userID string, bookingID uuid.UUID) (*View, error)
	Cancel(ctx context.Context, userID string, bookingID uuid.UUID) (*View, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type ServiceParams struct {
	Repo      Repository
	Machine   *occupancy.Machine
	Parks     ParkLookup
	Tx        txRunner
	Publisher realtime.Publisher
	Metrics   *metrics.ParkingMetrics
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	machine   *occupancy.Machine
	parks     ParkLookup
	tx        txRunner
	publisher realtime.Publisher
	metrics   *metrics.ParkingMetrics
	logg      *logger.Logger
}

// CreateInput requests a booking of DurationHours whole hours in any free slot of ParkID.
type CreateInput struct {
	ParkID        uuid.UUID
	DurationHours int
}

// View is the API shape of a booking.
type View struct {
	ID            uuid.UUID           `json:"id"`
	ParkID        uuid.UUID           `json:"park_id"`
	ParkName      string              `json:"park_name"`
	Address       string              `json:"address"`
	SlotID        uuid.UUID           `json:"slot_id"`
	SlotNumber    string              `json:"slot_number"`
	StartTime     time.Time           `json:"start_time"`
	EndTime       time.Time           `json:"end_time"`
	DurationHours int                 `json:"duration_hours"`
	Status        enums.BookingStatus `json:"status"`
	Amount        float64             `json:"amount"`
	PaymentLink   *string             `json:"payment_link,omitempty"`
	ClosedAt      *time.Time          `json:"closed_at,omitempty"`
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bookings repository required")
	}
	if params.Machine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "occupancy machine required")
	}
	if params.Parks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "park lookup required")
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
	return &service{
		repo:      params.Repo,
		machine:   params.Machine,
		parks:     params.Parks,
		tx:        params.Tx,
		publisher: publisher,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// Create claims the first free slot of the park and records an active booking
// priced at hourly_rate × duration. Nothing is written when the park is full.
func (s *service) Create(ctx context.Context, userID string, input CreateInput) (*View, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if input.DurationHours < MinDurationHours || input.DurationHours > MaxDurationHours {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duration_hours must be between %d and %d", MinDurationHours, MaxDurationHours))
	}
	park, err := s.parks.Get(ctx, input.ParkID)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithParkID(s.logg.WithUserID(ctx, userID), park.ID.String())

	var (
		transition *occupancy.Transition
		booking    *models.Booking
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		t, err := s.machine.Claim(ctx, tx, park.ID, enums.TriggerBooking)
		if err != nil {
			return err
		}
		start := t.Slot.LastUpdated
		b := &models.Booking{
			ID:        uuid.New(),
			UserID:    userID,
			SlotID:    t.Slot.ID,
			StartTime: start,
			EndTime:   start.Add(time.Duration(input.DurationHours) * time.Hour),
			Status:    enums.BookingStatusActive,
			Amount:    Price(park.HourlyRate, input.DurationHours),
		}
		if err := s.repo.WithTx(tx).Create(ctx, b); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create booking")
		}
		transition, booking = t, b
		return nil
	})
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNoSlot) {
			s.metrics.IncBooking("no_slot")
			s.logg.Warn(ctx, "booking.no_slot")
		}
		return nil, err
	}

	s.machine.Observe(ctx, transition)
	s.machine.Publish(ctx, transition)
	s.metrics.IncBooking("created")

	slot := transition.Slot
	booking.Slot = &slot
	view := newView(*booking, park)
	s.publisher.Publish(ctx, realtime.NewMessage(realtime.MessageBookingCreated, park.ID.String(), view))

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"booking_id":  booking.ID.String(),
		"slot_number": slot.SlotNumber,
		"amount":      booking.Amount.StringFixed(2),
	}), "booking.created")
	return &view, nil
}

func (s *service) List(ctx context.Context, userID string, params pagination.Params) (pagination.Page[View], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[View]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return pagination.Page[View]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}

	ids := make([]uuid.UUID, 0, len(rows))
	seen := map[uuid.UUID]struct{}{}
	for _, row := range rows {
		if row.Slot == nil {
			continue
		}
		if _, ok := seen[row.Slot.ParkID]; !ok {
			seen[row.Slot.ParkID] = struct{}{}
			ids = append(ids, row.Slot.ParkID)
		}
	}
	parks, err := s.repo.ParksByIDs(ctx, ids)
	if err != nil {
		return pagination.Page[View]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking parks")
	}

	views := make([]View, 0, len(rows))
	for _, row := range rows {
		var park *models.Park
		if row.Slot != nil {
			if p, ok := parks[row.Slot.ParkID]; ok {
				park = &p
			}
		}
		views = append(views, newView(row, park))
	}
	return pagination.Trim(views, params.Limit, func(v View) pagination.Cursor {
		return pagination.Cursor{At: v.StartTime, ID: v.ID}
	}), nil
}

func (s *service) Complete(ctx context.Context, userID string, bookingID uuid.UUID) (*View, error) {
	return s.close(ctx, userID, bookingID, enums.BookingStatusCompleted, enums.TriggerComplete)
}

func (s *service) Cancel(ctx context.Context, userID string, bookingID uuid.UUID) (*View, error) {
	return s.close(ctx, userID, bookingID, enums.BookingStatusCancelled, enums.TriggerCancel)
}

// ExpireDue completes every active booking whose end_time is at or before now
// and frees its slot. Each booking closes in its own transaction; failures are
// collected and the remaining bookings still run.
func (s *service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDue(ctx, now.UTC(), DefaultExpiryBatch)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due bookings")
	}

	expired := 0
	var errs error
	for _, booking := range due {
		_, err := s.finish(ctx, booking.ID, func(*models.Booking) error { return nil }, enums.BookingStatusCompleted, enums.TriggerExpiry)
		switch {
		case err == nil:
			expired++
		case pkgerrors.Is(err, pkgerrors.CodeStateConflict):
			// closed concurrently
		default:
			errs = multierr.Append(errs, fmt.Errorf("booking %s: %w", booking.ID, err))
		}
	}
	if expired > 0 {
		s.logg.Info(s.logg.WithField(ctx, "expired", expired), "booking.expired")
	}
	return expired, errs
}

func (s *service) close(ctx context.Context, userID string, bookingID uuid.UUID, status enums.BookingStatus, trigger enums.OccupancyTrigger) (*View, error) {
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	ctx = s.logg.WithUserID(ctx, userID)
	ownedBy := func(b *models.Booking) error {
		if b.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Booking not found")
		}
		return nil
	}
	booking, err := s.finish(ctx, bookingID, ownedBy, status, trigger)
	if err != nil {
		return nil, err
	}

	var park *models.Park
	if booking.Slot != nil {
		if park, err = s.parks.Get(ctx, booking.Slot.ParkID); err != nil {
			return nil, err
		}
	}
	view := newView(*booking, park)
	return &view, nil
}

// finish closes an active booking with status and frees its slot in one
// transaction, then announces the change.
func (s *service) finish(ctx context.Context, bookingID uuid.UUID, check func(*models.Booking) error, status enums.BookingStatus, trigger enums.OccupancyTrigger) (*models.Booking, error) {
	var (
		booking    *models.Booking
		transition *occupancy.Transition
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		b, err := repo.FindByID(ctx, bookingID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Booking not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
		}
		if err := check(b); err != nil {
			return err
		}
		if b.Status != enums.BookingStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Booking is not active").
				WithDetails(map[string]any{"status": b.Status})
		}

		now := s.machine.Now()
		closed, err := s.machine.CloseBooking(ctx, tx, b.ID, status, now)
		if err != nil {
			return err
		}
		if !closed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Booking is not active")
		}
		b.Status = status
		b.ClosedAt = &now

		if b.Slot != nil {
			t, err := s.machine.Apply(ctx, tx, *b.Slot, false, trigger, false)
			if err != nil {
				return err
			}
			t.ClosedBookings = append(t.ClosedBookings, *b)
			transition = t
			slot := t.Slot
			b.Slot = &slot
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transition != nil {
		s.machine.Observe(ctx, transition)
		s.machine.Publish(ctx, transition)
	} else {
		s.metrics.IncBooking(string(status))
	}
	return booking, nil
}

// Price is hourly_rate × hours rounded to cents.
func Price(hourlyRate decimal.Decimal, hours int) decimal.Decimal {
	return hourlyRate.Mul(decimal.NewFromInt(int64(hours))).Round(2)
}

func newView(b models.Booking, park *models.Park) View {
	view := View{
		ID:            b.ID,
		SlotID:        b.SlotID,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		DurationHours: int(b.EndTime.Sub(b.StartTime).Round(time.Hour) / time.Hour),
		Status:        b.Status,
		Amount:        b.Amount.Round(2).InexactFloat64(),
		ClosedAt:      b.ClosedAt,
	}
	if b.Slot != nil {
		view.SlotNumber = b.Slot.SlotNumber
		view.ParkID = b.Slot.ParkID
	}
	if park != nil {
		view.ParkID = park.ID
		view.ParkName = park.Name
		view.Address = park.Location
		view.PaymentLink = park.PaymentLink
	}
	return view
}
