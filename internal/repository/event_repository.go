package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/openslots/internal/events"
	"github.com/Leganyst/openslots/internal/model"
)

type EventRepository interface {
	// Записать событие; дубликат по id или idempotency key игнорируется.
	Append(ctx context.Context, e *model.Event) error
	ListByNegotiation(ctx context.Context, negotiationID string) ([]model.Event, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Append(ctx context.Context, e *model.Event) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(e).Error
}

func (r *GormEventRepository) ListByNegotiation(ctx context.Context, negotiationID string) ([]model.Event, error) {
	var list []model.Event
	err := r.db.WithContext(ctx).
		Where("negotiation_id = ?", negotiationID).
		Order("occurred_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// AuditSink пишет каждое событие движка в таблицу events.
type AuditSink struct {
	repo EventRepository
}

func NewAuditSink(repo EventRepository) *AuditSink {
	return &AuditSink{repo: repo}
}

func (s *AuditSink) Name() string { return "audit" }

func (s *AuditSink) Write(ctx context.Context, env events.Envelope) error {
	payload, err := json.Marshal(env.Data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return s.repo.Append(ctx, &model.Event{
		ID:             env.EventID,
		EventType:      string(env.Type),
		IdempotencyKey: env.IdempotencyKey,
		SchemaVersion:  env.SchemaVersion,
		Source:         env.Source,
		NegotiationID:  env.NegotiationID,
		BookingID:      env.BookingID,
		OccurredAt:     env.Timestamp,
		Payload:        datatypes.JSON(payload),
	})
}
