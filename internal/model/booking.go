package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// bookings. Один слот — одна бронь, одни переговоры — одна бронь.
type Booking struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	NegotiationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	SlotID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	ProviderID    uuid.UUID `gorm:"type:uuid;not null;index"`
	BuyerID       string    `gorm:"type:varchar(64);not null;index"`

	PriceCents int64 `gorm:"not null"`

	Status      BookingStatus `gorm:"type:varchar(16);not null;index"`
	CancelledAt *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Slot        *TimeSlot    `gorm:"foreignKey:SlotID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Negotiation *Negotiation `gorm:"foreignKey:NegotiationID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}
