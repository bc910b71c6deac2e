package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Leganyst/openslots/internal/model"
	"github.com/Leganyst/openslots/internal/negotiation"
)

type SlotRepository interface {
	// Найти слот по ID.
	GetByID(ctx context.Context, id string) (*model.TimeSlot, error)
	// Создать слот.
	Create(ctx context.Context, slot *model.TimeSlot) error
	// Перевести слот OPEN -> BOOKED. Если слот уже не OPEN, вернёт
	// negotiation.ErrSlotNotOpen и ничего не изменит.
	MarkBooked(ctx context.Context, id string) error
	// Снять слот с продажи: OPEN -> WITHDRAWN. Повторный вызов не ошибка,
	// забронированный слот — negotiation.ErrSlotNotOpen.
	Withdraw(ctx context.Context, id string) error
}

type GormSlotRepository struct {
	db *gorm.DB
}

func NewGormSlotRepository(db *gorm.DB) *GormSlotRepository {
	return &GormSlotRepository{db: db}
}

func (r *GormSlotRepository) GetByID(ctx context.Context, id string) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	if err := r.db.WithContext(ctx).Preload("Provider").First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *GormSlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

func (r *GormSlotRepository) MarkBooked(ctx context.Context, id string) error {
	// условный UPDATE: выигрывает ровно одна транзакция, и только у активного провайдера
	activeProviders := r.db.Model(&model.Provider{}).Select("id").Where("is_active = ?", true)
	res := r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("id = ? AND status = ?", id, model.TimeSlotStatusOpen).
		Where("provider_id IN (?)", activeProviders).
		Updates(map[string]any{
			"status":     model.TimeSlotStatusBooked,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return negotiation.ErrSlotNotOpen
	}
	return nil
}

func (r *GormSlotRepository) Withdraw(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("id = ? AND status = ?", id, model.TimeSlotStatusOpen).
		Updates(map[string]any{
			"status":     model.TimeSlotStatusWithdrawn,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var slot model.TimeSlot
	if err := r.db.WithContext(ctx).Select("id", "status").First(&slot, "id = ?", id).Error; err != nil {
		return err
	}
	if slot.Status == model.TimeSlotStatusWithdrawn {
		return nil
	}
	return negotiation.ErrSlotNotOpen
}
