package model

import (
	"time"

	"gorm.io/datatypes"
)

// events — журнал аудита: каждое событие переговоров, один раз.
type Event struct {
	ID string `gorm:"type:varchar(64);primaryKey"`

	EventType string `gorm:"type:varchar(64);not null;index"`

	IdempotencyKey string `gorm:"type:varchar(255);not null;uniqueIndex"`
	SchemaVersion  string `gorm:"type:varchar(16);not null"`
	Source         string `gorm:"type:varchar(64)"`

	NegotiationID string `gorm:"type:varchar(64);index"`
	BookingID     string `gorm:"type:varchar(64);index"`

	OccurredAt time.Time `gorm:"not null;index"`

	Payload datatypes.JSON

	CreatedAt time.Time `gorm:"not null"`
}
