package model

import (
	"time"

	"github.com/google/uuid"
)

// negotiations. Строки никогда не удаляются, только переходят в терминальный статус.
type Negotiation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	SlotID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ProviderID uuid.UUID `gorm:"type:uuid;not null;index"`
	// Один ACTIVE на покупателя; частичный индекс страхует движок на уровне БД.
	BuyerID string `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_negotiations_active_buyer,where:status = 'ACTIVE'"`

	Status string `gorm:"type:varchar(16);not null;index"`

	MinPriceCents int64 `gorm:"not null"`
	MaxPriceCents int64 `gorm:"not null"`

	CutoffAt  time.Time `gorm:"not null"`
	ExpiresAt *time.Time

	CancelReason string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Offers []Offer   `gorm:"foreignKey:NegotiationID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Slot   *TimeSlot `gorm:"foreignKey:SlotID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// offers — append-only лог предложений внутри переговоров.
type Offer struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	NegotiationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_offers_negotiation_seq"`
	Seq           int       `gorm:"not null;uniqueIndex:idx_offers_negotiation_seq"`

	OfferedBy  string `gorm:"type:varchar(16);not null"`
	PriceCents int64  `gorm:"not null"`
	Status     string `gorm:"type:varchar(16);not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
