package occupancy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
)

// Repository persists slot state and the bookings bound to it.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSlot(ctx context.Context, slotID uuid.UUID) (*models.Slot, error)
	ListSlots(ctx context.Context, parkID uuid.UUID) ([]models.Slot, error)
	FreeSlots(ctx context.Context, parkID uuid.UUID) ([]models.Slot, error)
	CompareAndSetOccupied(ctx context.Context, slotID uuid.UUID, from, to bool, now time.Time) (bool, error)
	Touch(ctx context.Context, slotID uuid.UUID, now time.Time) error
	ActiveBookingsForSlot(ctx context.Context, slotID uuid.UUID) ([]models.Booking, error)
	CloseBooking(ctx context.Context, bookingID uuid.UUID, status enums.BookingStatus, now time.Time) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an occupancy repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) FindSlot(ctx context.Context, slotID uuid.UUID) (*models.Slot, error) {
	var slot models.Slot
	if err := r.db.WithContext(ctx).Where("id = ?", slotID).First(&slot).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *repositoryImpl) ListSlots(ctx context.Context, parkID uuid.UUID) ([]models.Slot, error) {
	var slots []models.Slot
	err := r.db.WithContext(ctx).
		Where("park_id = ?", parkID).
		Order("position ASC").
		Find(&slots).Error
	return slots, err
}

func (r *repositoryImpl) FreeSlots(ctx context.Context, parkID uuid.UUID) ([]models.Slot, error) {
	var slots []models.Slot
	err := r.db.WithContext(ctx).
		Where("park_id = ? AND is_occupied = ?", parkID, false).
		Order("position ASC").
		Find(&slots).Error
	return slots, err
}

// CompareAndSetOccupied flips is_occupied from `from` to `to` only when the
// stored value still equals `from`. Under Postgres READ COMMITTED a concurrent
// writer blocks on the row lock, re-checks the predicate and affects no rows.
func (r *repositoryImpl) CompareAndSetOccupied(ctx context.Context, slotID uuid.UUID, from, to bool, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Slot{}).
		Where("id = ? AND is_occupied = ?", slotID, from).
		Updates(map[string]any{
			"is_occupied":  to,
			"last_updated": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repositoryImpl) Touch(ctx context.Context, slotID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Slot{}).
		Where("id = ?", slotID).
		Update("last_updated", now).Error
}

func (r *repositoryImpl) ActiveBookingsForSlot(ctx context.Context, slotID uuid.UUID) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("slot_id = ? AND status = ?", slotID, enums.BookingStatusActive).
		Order("start_time ASC").
		Find(&bookings).Error
	return bookings, err
}

func (r *repositoryImpl) CloseBooking(ctx context.Context, bookingID uuid.UUID, status enums.BookingStatus, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, enums.BookingStatusActive).
		Updates(map[string]any{
			"status":     status,
			"closed_at":  now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
