package users

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
)

// Repository exposes profile persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateIfAbsent inserts the profile unless any unique key already exists.
// It reports whether a row was written.
func (r *Repository) CreateIfAbsent(ctx context.Context, dto CreateUserDTO) (bool, error) {
	user := dto.ToModel()
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(user)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindByID loads a profile by its provider subject.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail retrieves the profile matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
