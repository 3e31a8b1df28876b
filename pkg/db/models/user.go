package models

import (
	"time"

	"github.com/angelmondragon/smartpark-backend/pkg/enums"
)

// User is the local profile mirrored from the identity provider. The ID is the
// provider's subject and is treated as opaque.
type User struct {
	ID        string         `gorm:"type:text;primaryKey"`
	Email     string         `gorm:"type:text;not null;uniqueIndex"`
	Role      enums.UserRole `gorm:"type:text;not null;default:user"`
	FullName  string         `gorm:"column:full_name;type:text;not null;default:''"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "profiles" }
