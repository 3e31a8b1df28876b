package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Slot is a single parking space. Position is the 1-based creation order and
// drives slot selection for bookings.
type Slot struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ParkID      uuid.UUID `gorm:"column:park_id;type:uuid;not null;uniqueIndex:idx_slots_park_slot_number,priority:1;index:idx_slots_park_position,priority:1"`
	SlotNumber  string    `gorm:"column:slot_number;type:text;not null;uniqueIndex:idx_slots_park_slot_number,priority:2"`
	Position    int       `gorm:"column:position;not null;index:idx_slots_park_position,priority:2"`
	IsOccupied  bool      `gorm:"column:is_occupied;not null;default:false"`
	LastUpdated time.Time `gorm:"column:last_updated;not null"`
}

func (s *Slot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
