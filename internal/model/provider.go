package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provider — исполнитель услуг (салон, мастер).
type Provider struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Имя/отображаемое название в выдаче.
	DisplayName string `gorm:"type:varchar(255);not null"`

	// Рейтинг 0..5, только для сортировки и отображения.
	Rating float64 `gorm:"not null;default:0"`

	Address string `gorm:"type:varchar(255)"`
	City    string `gorm:"type:varchar(128);not null;index"`
	State   string `gorm:"type:varchar(64)"`
	ZipCode string `gorm:"type:varchar(16)"`

	// Координаты опциональны, без них расстояние считается по хешу.
	Latitude  *float64
	Longitude *float64

	IsActive bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Services []Service  `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Slots    []TimeSlot `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (p *Provider) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
