package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
	"github.com/angelmondragon/smartpark-backend/pkg/pagination"
)

// Repository persists bookings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	ListByUser(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) ([]models.Booking, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Booking, error)
	ParksByIDs(ctx context.Context, parkIDs []uuid.UUID) (map[uuid.UUID]models.Park, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Omit("Slot").Create(booking).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Preload("Slot").
		Where("id = ?", bookingID).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListByUser pages a user's bookings newest first. limit is passed through
// unchanged so callers can request a lookahead row.
func (r *repositoryImpl) ListByUser(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) ([]models.Booking, error) {
	query := r.db.WithContext(ctx).
		Preload("Slot").
		Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(start_time < ?) OR (start_time = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
	}

	var bookings []models.Booking
	err := query.
		Order("start_time DESC, id DESC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

// ListDue returns active bookings whose end_time has passed, oldest first.
func (r *repositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Preload("Slot").
		Where("status = ? AND end_time <= ?", enums.BookingStatusActive, now).
		Order("end_time ASC, id ASC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

func (r *repositoryImpl) ParksByIDs(ctx context.Context, parkIDs []uuid.UUID) (map[uuid.UUID]models.Park, error) {
	out := make(map[uuid.UUID]models.Park, len(parkIDs))
	if len(parkIDs) == 0 {
		return out, nil
	}
	var parks []models.Park
	if err := r.db.WithContext(ctx).Where("id IN ?", parkIDs).Find(&parks).Error; err != nil {
		return nil, err
	}
	for _, park := range parks {
		out[park.ID] = park
	}
	return out, nil
}
