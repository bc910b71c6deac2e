// Package discovery фильтрует каталог по категории, городу и окну времени и
// ранжирует подходящих провайдеров и их слоты.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Leganyst/openslots/internal/apperror"
	"github.com/Leganyst/openslots/internal/calendar"
	"github.com/Leganyst/openslots/internal/catalog"
)

// Query — уже провалидированный поисковый запрос.
type Query struct {
	Category catalog.Category
	City     string
	Window   calendar.Window
	ZipCode  string
	// Reference задаёт локальную дату, от которой считается окно.
	Reference time.Time
}

type SlotResult struct {
	SlotID                  string
	ServiceID               string
	StartTime               time.Time
	EndTime                 time.Time
	BasePriceCents          int64
	MaxDiscountFraction     float64
	MaxDiscountedPriceCents int64
	MinPriceCents           int64
	MaxPriceCents           int64
	ServiceName             string
	DurationMin             int
}

type ProviderResult struct {
	ProviderID       string
	Name             string
	Rating           float64
	Distance         float64
	Address          string
	City             string
	LowestPriceCents int64
	Slots            []SlotResult
}

// CatalogLoader отдаёт снимок каталога под запрос.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, q catalog.Query) (catalog.Snapshot, error)
}

// Engine связывает загрузчик каталога и оценку расстояния вокруг Rank.
type Engine struct {
	loader   CatalogLoader
	distance DistanceFunc
	now      func() time.Time
}

type Option func(*Engine)

// WithDistance заменяет оценку расстояния по хэшу.
func WithDistance(fn DistanceFunc) Option {
	return func(e *Engine) { e.distance = fn }
}

// WithClock задаёт часы для запросов без Reference.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(loader CatalogLoader, opts ...Option) *Engine {
	e := &Engine{
		loader:   loader,
		distance: HashDistance,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search проверяет q, загружает снимок и ранжирует его.
func (e *Engine) Search(ctx context.Context, q Query) ([]ProviderResult, error) {
	if q.Category == "" {
		return nil, apperror.Validation("discovery", "serviceCategory is required")
	}
	if strings.TrimSpace(q.City) == "" {
		return nil, apperror.Validation("discovery", "city is required")
	}
	if q.Window == "" {
		q.Window = calendar.WindowCustom
	}
	if q.Reference.IsZero() {
		q.Reference = e.now()
	}

	snap, err := e.loader.LoadCatalog(ctx, catalog.Query{Category: q.Category, City: q.City})
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return Rank(snap, q, e.distance), nil
}

// Rank — чистая функция снимка, запроса и оценки расстояния.
func Rank(snap catalog.Snapshot, q Query, distance DistanceFunc) []ProviderResult {
	if distance == nil {
		distance = HashDistance
	}
	window := calendar.ResolveWindow(q.City, q.Window, q.Reference)
	city := normalize(q.City)

	results := make([]ProviderResult, 0, len(snap.Providers))
	for _, p := range snap.Providers {
		if normalize(p.City) != city {
			continue
		}

		var slots []SlotResult
		for _, svc := range p.Services {
			if svc.Category != q.Category {
				continue
			}
			for _, s := range svc.Slots {
				if s.Status != catalog.SlotOpen || !window.Contains(s.StartTime) {
					continue
				}
				slots = append(slots, toSlotResult(svc, s))
			}
		}
		if len(slots) == 0 {
			continue
		}

		sort.SliceStable(slots, func(i, j int) bool {
			if slots[i].MaxDiscountedPriceCents != slots[j].MaxDiscountedPriceCents {
				return slots[i].MaxDiscountedPriceCents < slots[j].MaxDiscountedPriceCents
			}
			return slots[i].StartTime.Before(slots[j].StartTime)
		})

		results = append(results, ProviderResult{
			ProviderID:       p.ID,
			Name:             p.Name,
			Rating:           p.Rating,
			Distance:         distance(p, q.ZipCode),
			Address:          p.Address,
			City:             p.City,
			LowestPriceCents: slots[0].MaxDiscountedPriceCents,
			Slots:            slots,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.LowestPriceCents != b.LowestPriceCents {
			return a.LowestPriceCents < b.LowestPriceCents
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return a.Distance < b.Distance
	})
	return results
}

func toSlotResult(svc catalog.Service, s catalog.Slot) SlotResult {
	return SlotResult{
		SlotID:                  s.ID,
		ServiceID:               svc.ID,
		StartTime:               s.StartTime.UTC(),
		EndTime:                 s.EndTime.UTC(),
		BasePriceCents:          s.BasePriceCents,
		MaxDiscountFraction:     s.MaxDiscountFraction,
		MaxDiscountedPriceCents: s.MaxDiscountedPriceCents(),
		MinPriceCents:           s.FloorPriceCents(),
		MaxPriceCents:           s.MaxPriceCents(),
		ServiceName:             svc.Name,
		DurationMin:             svc.DurationMin,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
