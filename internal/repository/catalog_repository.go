package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/openslots/internal/catalog"
	"github.com/Leganyst/openslots/internal/model"
)

// GormCatalogRepository собирает read-model для discovery: активные
// провайдеры города, их услуги нужной категории и OPEN слоты.
type GormCatalogRepository struct {
	db *gorm.DB
}

func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

func (r *GormCatalogRepository) LoadCatalog(ctx context.Context, q catalog.Query) (catalog.Snapshot, error) {
	tx := r.db.WithContext(ctx).
		Where("is_active = ?", true)
	if city := strings.TrimSpace(q.City); city != "" {
		tx = tx.Where("LOWER(city) = ?", strings.ToLower(city))
	}

	tx = tx.
		Preload("Services", func(db *gorm.DB) *gorm.DB {
			db = db.Where("is_active = ?", true)
			if q.Category != "" {
				db = db.Where("category = ?", string(q.Category))
			}
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Services.Slots", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", model.TimeSlotStatusOpen).Order("starts_at ASC, id ASC")
		})

	var providers []model.Provider
	// порядок вставки = порядок итерации каталога
	if err := tx.Order("created_at ASC, id ASC").Find(&providers).Error; err != nil {
		return catalog.Snapshot{}, err
	}

	snap := catalog.Snapshot{Providers: make([]catalog.Provider, 0, len(providers))}
	for _, p := range providers {
		snap.Providers = append(snap.Providers, providerToCatalog(p))
	}
	return snap, nil
}

// Import записывает снапшот каталога одной транзакцией. Пустые ID
// генерируются, непустые должны быть UUID.
func (r *GormCatalogRepository) Import(ctx context.Context, snap catalog.Snapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		providers := NewGormProviderRepository(tx)
		services := NewGormServiceRepository(tx)
		slots := NewGormSlotRepository(tx)

		for _, p := range snap.Providers {
			pid, err := parseOrNew(p.ID)
			if err != nil {
				return fmt.Errorf("provider %q: %w", p.ID, err)
			}
			if err := providers.Create(ctx, &model.Provider{
				ID:          pid,
				DisplayName: p.Name,
				Rating:      p.Rating,
				Address:     p.Address,
				City:        p.City,
				State:       p.State,
				ZipCode:     p.ZipCode,
				Latitude:    p.Latitude,
				Longitude:   p.Longitude,
				IsActive:    true,
			}); err != nil {
				return fmt.Errorf("create provider %q: %w", p.Name, err)
			}

			for _, s := range p.Services {
				if _, err := catalog.ParseCategory(string(s.Category)); err != nil {
					return err
				}
				if err := s.Validate(); err != nil {
					return err
				}
				sid, err := parseOrNew(s.ID)
				if err != nil {
					return fmt.Errorf("service %q: %w", s.ID, err)
				}
				if err := services.Create(ctx, &model.Service{
					ID:          sid,
					ProviderID:  pid,
					Category:    string(s.Category),
					Name:        s.Name,
					DurationMin: s.DurationMin,
					IsActive:    true,
				}); err != nil {
					return fmt.Errorf("create service %q: %w", s.Name, err)
				}

				for _, sl := range s.Slots {
					slid, err := parseOrNew(sl.ID)
					if err != nil {
						return fmt.Errorf("slot %q: %w", sl.ID, err)
					}
					status := model.TimeSlotStatus(sl.Status)
					if status == "" {
						status = model.TimeSlotStatusOpen
					}
					if err := slots.Create(ctx, &model.TimeSlot{
						ID:                  slid,
						ProviderID:          pid,
						ServiceID:           sid,
						StartsAt:            sl.StartTime.UTC(),
						EndsAt:              sl.EndTime.UTC(),
						Status:              status,
						BasePriceCents:      sl.BasePriceCents,
						MaxDiscountFraction: sl.MaxDiscountFraction,
						MinPriceCents:       sl.MinPriceCents,
					}); err != nil {
						return fmt.Errorf("create slot: %w", err)
					}
				}
			}
		}
		return nil
	})
}

func parseOrNew(id string) (uuid.UUID, error) {
	if id == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(id)
}
