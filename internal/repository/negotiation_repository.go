package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/openslots/internal/model"
	"github.com/Leganyst/openslots/internal/negotiation"
)

type NegotiationRepository interface {
	// Upsert переговоров вместе с лентой предложений.
	Save(ctx context.Context, n *model.Negotiation) error
	GetByID(ctx context.Context, id string) (*model.Negotiation, error)
	ListActive(ctx context.Context) ([]model.Negotiation, error)
	// Все ACTIVE переговоры по слоту, кроме exceptID, -> CANCELLED.
	CancelActiveBySlot(ctx context.Context, slotID, exceptID, reason string) (int64, error)
	// Все ACTIVE переговоры провайдера -> CANCELLED.
	CancelActiveByProvider(ctx context.Context, providerID, reason string) (int64, error)
}

type GormNegotiationRepository struct {
	db *gorm.DB
}

func NewGormNegotiationRepository(db *gorm.DB) *GormNegotiationRepository {
	return &GormNegotiationRepository{db: db}
}

func withOffers(db *gorm.DB) *gorm.DB {
	return db.Preload("Offers", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("seq ASC")
	})
}

func (r *GormNegotiationRepository) Save(ctx context.Context, n *model.Negotiation) error {
	offers := n.Offers
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(n).Error; err != nil {
			return err
		}
		if len(offers) == 0 {
			return nil
		}
		// предложения append-only: меняется только статус
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).Create(&offers).Error
	})
}

func (r *GormNegotiationRepository) GetByID(ctx context.Context, id string) (*model.Negotiation, error) {
	var n model.Negotiation
	if err := withOffers(r.db.WithContext(ctx)).First(&n, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *GormNegotiationRepository) ListActive(ctx context.Context) ([]model.Negotiation, error) {
	var list []model.Negotiation
	err := withOffers(r.db.WithContext(ctx)).
		Where("status = ?", negotiation.StatusActive).
		Order("created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *GormNegotiationRepository) CancelActiveBySlot(ctx context.Context, slotID, exceptID, reason string) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Negotiation{}).
		Where("slot_id = ? AND status = ?", slotID, negotiation.StatusActive)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	return r.cancelActive(ctx, q, reason)
}

func (r *GormNegotiationRepository) CancelActiveByProvider(ctx context.Context, providerID, reason string) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Negotiation{}).
		Where("provider_id = ? AND status = ?", providerID, negotiation.StatusActive)
	return r.cancelActive(ctx, q, reason)
}

// cancelActive закрывает найденные q переговоры и гасит их PENDING-предложения.
func (r *GormNegotiationRepository) cancelActive(ctx context.Context, q *gorm.DB, reason string) (int64, error) {
	var ids []uuid.UUID
	if err := q.Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&model.Negotiation{}).
		Where("id IN ? AND status = ?", ids, negotiation.StatusActive).
		Updates(map[string]any{
			"status":        negotiation.StatusCancelled,
			"cancel_reason": reason,
			"updated_at":    now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	err := r.db.WithContext(ctx).
		Model(&model.Offer{}).
		Where("negotiation_id IN ? AND status = ?", ids, negotiation.OfferPending).
		Updates(map[string]any{"status": negotiation.OfferExpired, "updated_at": now}).Error
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
