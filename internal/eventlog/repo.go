package eventlog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
)

// Repository persists park event logs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.Log) error
	Recent(ctx context.Context, parkID uuid.UUID, limit int) ([]models.Log, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an event log repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Append(ctx context.Context, entry *models.Log) error {
	return r.db.WithContext(ctx).Omit("Slot").Create(entry).Error
}

func (r *repositoryImpl) Recent(ctx context.Context, parkID uuid.UUID, limit int) ([]models.Log, error) {
	var rows []models.Log
	err := r.db.WithContext(ctx).
		Preload("Slot").
		Where("park_id = ?", parkID).
		Order(`"timestamp" DESC, id DESC`).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
