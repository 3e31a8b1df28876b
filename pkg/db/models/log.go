package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartpark-backend/pkg/enums"
)

// Log is an append-only park event.
type Log struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey"`
	ParkID      uuid.UUID          `gorm:"column:park_id;type:uuid;not null;index:idx_logs_park_timestamp,priority:1"`
	SlotID      *uuid.UUID         `gorm:"column:slot_id;type:uuid"`
	Timestamp   time.Time          `gorm:"column:timestamp;not null;index:idx_logs_park_timestamp,priority:2,sort:desc"`
	EventType   enums.LogEventType `gorm:"column:event_type;type:text;not null"`
	Description string             `gorm:"type:text;not null;default:''"`
	SnapshotURL *string            `gorm:"column:snapshot_url;type:text"`

	Slot *Slot `gorm:"foreignKey:SlotID"`
}

func (Log) TableName() string { return "logs" }

func (l *Log) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
