package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Leganyst/openslots/internal/model"
)

type BookingRepository interface {
	// Создать новое бронирование.
	Create(ctx context.Context, booking *model.Booking) error
	// Получить бронирование по ID.
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	// Отменить бронирование. Повторная отмена ничего не меняет.
	Cancel(ctx context.Context, id string, at time.Time) (*model.Booking, error)
	// Бронирования покупателя, новые сверху, с пагинацией.
	ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]model.Booking, int64, error)
}

// Реализация на GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) Cancel(ctx context.Context, id string, at time.Time) (*model.Booking, error) {
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ? AND status <> ?", id, model.BookingStatusCancelled).
		Updates(map[string]any{
			"status":       model.BookingStatusCancelled,
			"cancelled_at": at,
			"updated_at":   at,
		}).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *GormBookingRepository) ListByBuyer(
	ctx context.Context,
	buyerID string,
	limit, offset int,
) ([]model.Booking, int64, error) {
	var (
		bookings []model.Booking
		total    int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("buyer_id = ?", buyerID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("created_at DESC").Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}
