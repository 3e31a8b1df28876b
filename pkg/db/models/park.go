package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Park is a parking facility owned by a single owner profile.
type Park struct {
	ID                     uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OwnerID                string          `gorm:"column:owner_id;type:text;not null;index"`
	Name                   string          `gorm:"type:text;not null"`
	Location               string          `gorm:"type:text;not null"`
	Latitude               *float64        `gorm:"column:latitude"`
	Longitude              *float64        `gorm:"column:longitude"`
	TotalSlots             int             `gorm:"column:total_slots;not null"`
	HourlyRate             decimal.Decimal `gorm:"column:hourly_rate;type:numeric(12,2);not null"`
	CameraRTSPURLEncrypted *string         `gorm:"column:camera_rtsp_url_encrypted;type:text"`
	PaymentLink            *string         `gorm:"column:payment_link;type:text"`
	CreatedAt              time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	Slots []Slot `gorm:"foreignKey:ParkID"`
}

func (p *Park) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// HasCoordinates reports whether both coordinates are present.
func (p Park) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// HasCamera reports whether a sealed camera URL is stored.
func (p Park) HasCamera() bool {
	return p.CameraRTSPURLEncrypted != nil && *p.CameraRTSPURLEncrypted != ""
}
