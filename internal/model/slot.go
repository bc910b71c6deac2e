package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Статус слота. Из OPEN ровно один переход: в BOOKED или в WITHDRAWN, обратно не возвращается.
type TimeSlotStatus string

const (
	TimeSlotStatusOpen      TimeSlotStatus = "OPEN"
	TimeSlotStatusBooked    TimeSlotStatus = "BOOKED"
	TimeSlotStatusWithdrawn TimeSlotStatus = "WITHDRAWN"
)

// time_slots
type TimeSlot struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ProviderID uuid.UUID `gorm:"type:uuid;not null;index"`
	ServiceID  uuid.UUID `gorm:"type:uuid;not null;index"`

	StartsAt time.Time `gorm:"not null;index"`
	EndsAt   time.Time `gorm:"not null"`

	Status TimeSlotStatus `gorm:"type:varchar(16);not null;default:'OPEN';index"`

	// Цены в центах.
	BasePriceCents      int64   `gorm:"not null"`
	MaxDiscountFraction float64 `gorm:"not null;default:0"`
	// 0 — пол равен максимальной скидочной цене.
	MinPriceCents int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Service  *Service  `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (s *TimeSlot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
