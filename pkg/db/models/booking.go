package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartpark-backend/pkg/enums"
)

// Booking reserves a slot for a fixed duration.
type Booking struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey"`
	UserID    string              `gorm:"column:user_id;type:text;not null;index"`
	SlotID    uuid.UUID           `gorm:"column:slot_id;type:uuid;not null;index"`
	StartTime time.Time           `gorm:"column:start_time;not null"`
	EndTime   time.Time           `gorm:"column:end_time;not null"`
	Status    enums.BookingStatus `gorm:"type:text;not null;default:active"`
	Amount    decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	PaymentID *string             `gorm:"column:payment_id;type:text"`
	ClosedAt  *time.Time          `gorm:"column:closed_at"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Slot *Slot `gorm:"foreignKey:SlotID"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
