package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
)

// Repository reads aggregate booking and slot data for a park.
type Repository interface {
	ListSlots(ctx context.Context, parkID uuid.UUID) ([]models.Slot, error)
	Revenue(ctx context.Context, parkID uuid.UUID) (decimal.Decimal, error)
	ActiveBookings(ctx context.Context, parkID uuid.UUID) (int64, error)
	BookingsOverlapping(ctx context.Context, parkID uuid.UUID, from, to time.Time) ([]models.Booking, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) ListSlots(ctx context.Context, parkID uuid.UUID) ([]models.Slot, error) {
	var slots []models.Slot
	err := r.db.WithContext(ctx).
		Where("park_id = ?", parkID).
		Order("position ASC").
		Find(&slots).Error
	return slots, err
}

type revenueRow struct {
	Total decimal.Decimal
}

// Revenue sums every non-cancelled booking of the park.
func (r *repositoryImpl) Revenue(ctx context.Context, parkID uuid.UUID) (decimal.Decimal, error) {
	var row revenueRow
	err := r.parkBookings(ctx, parkID).
		Select("COALESCE(SUM(bookings.amount), 0) AS total").
		Where("bookings.status <> ?", enums.BookingStatusCancelled).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (r *repositoryImpl) ActiveBookings(ctx context.Context, parkID uuid.UUID) (int64, error) {
	var count int64
	err := r.parkBookings(ctx, parkID).
		Where("bookings.status = ?", enums.BookingStatusActive).
		Count(&count).Error
	return count, err
}

// BookingsOverlapping returns bookings of the park whose [start, end) range
// intersects [from, to), including cancelled ones.
func (r *repositoryImpl) BookingsOverlapping(ctx context.Context, parkID uuid.UUID, from, to time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.parkBookings(ctx, parkID).
		Preload("Slot").
		Where("bookings.end_time > ? AND bookings.start_time < ?", from, to).
		Order("bookings.start_time ASC").
		Find(&bookings).Error
	return bookings, err
}

func (r *repositoryImpl) parkBookings(ctx context.Context, parkID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Joins("JOIN slots ON slots.id = bookings.slot_id").
		Where("slots.park_id = ?", parkID)
}
