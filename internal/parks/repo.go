package parks

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
)

// Repository persists parks and reads their slot availability.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, park *models.Park) error
	FindByID(ctx context.Context, parkID uuid.UUID) (*models.Park, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Park, error)
	ListLocated(ctx context.Context) ([]models.Park, error)
	ListWithCamera(ctx context.Context) ([]models.Park, error)
	Update(ctx context.Context, parkID uuid.UUID, fields map[string]any) error
	ListSlots(ctx context.Context, parkID uuid.UUID) ([]models.Slot, error)
	AvailableCounts(ctx context.Context, parkIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a parks repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// Create inserts the park together with its Slots association.
func (r *repositoryImpl) Create(ctx context.Context, park *models.Park) error {
	return r.db.WithContext(ctx).Create(park).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, parkID uuid.UUID) (*models.Park, error) {
	var park models.Park
	if err := r.db.WithContext(ctx).Where("id = ?", parkID).First(&park).Error; err != nil {
		return nil, err
	}
	return &park, nil
}

func (r *repositoryImpl) ListByOwner(ctx context.Context, ownerID string) ([]models.Park, error) {
	var parks []models.Park
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&parks).Error
	return parks, err
}

func (r *repositoryImpl) ListLocated(ctx context.Context) ([]models.Park, error) {
	var parks []models.Park
	err := r.db.WithContext(ctx).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Find(&parks).Error
	return parks, err
}

func (r *repositoryImpl) ListWithCamera(ctx context.Context) ([]models.Park, error) {
	var parks []models.Park
	err := r.db.WithContext(ctx).
		Where("camera_rtsp_url_encrypted IS NOT NULL AND camera_rtsp_url_encrypted <> ''").
		Find(&parks).Error
	return parks, err
}

func (r *repositoryImpl) Update(ctx context.Context, parkID uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Park{}).
		Where("id = ?", parkID).
		Updates(fields).Error
}

func (r *repositoryImpl) ListSlots(ctx context.Context, parkID uuid.UUID) ([]models.Slot, error) {
	var slots []models.Slot
	err := r.db.WithContext(ctx).
		Where("park_id = ?", parkID).
		Order("position ASC").
		Find(&slots).Error
	return slots, err
}

type availabilityRow struct {
	ParkID    uuid.UUID
	Available int
}

// AvailableCounts counts free slots per park. Parks without free slots are
// absent from the map.
func (r *repositoryImpl) AvailableCounts(ctx context.Context, parkIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(parkIDs))
	if len(parkIDs) == 0 {
		return counts, nil
	}
	var rows []availabilityRow
	err := r.db.WithContext(ctx).
		Model(&models.Slot{}).
		Select("park_id, COUNT(*) AS available").
		Where("park_id IN ? AND is_occupied = ?", parkIDs, false).
		Group("park_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ParkID] = row.Available
	}
	return counts, nil
}
