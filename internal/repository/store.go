package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/openslots/internal/catalog"
	"github.com/Leganyst/openslots/internal/model"
	"github.com/Leganyst/openslots/internal/negotiation"
)

// GormStore — хранилище движка переговоров поверх репозиториев.
type GormStore struct {
	db           *gorm.DB
	slots        *GormSlotRepository
	negotiations *GormNegotiationRepository
	bookings     *GormBookingRepository
	events       *GormEventRepository
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:           db,
		slots:        NewGormSlotRepository(db),
		negotiations: NewGormNegotiationRepository(db),
		bookings:     NewGormBookingRepository(db),
		events:       NewGormEventRepository(db),
	}
}

var _ negotiation.Store = (*GormStore)(nil)

// validID отсекает не-UUID до похода в Postgres, где это была бы ошибка типа.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *GormStore) LoadSlot(ctx context.Context, slotID string) (catalog.Slot, error) {
	if !validID(slotID) {
		return catalog.Slot{}, negotiation.ErrSlotNotFound
	}
	m, err := s.slots.GetByID(ctx, slotID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return catalog.Slot{}, negotiation.ErrSlotNotFound
	}
	if err != nil {
		return catalog.Slot{}, err
	}
	return slotToCatalog(*m), nil
}

func (s *GormStore) PersistNegotiation(ctx context.Context, n negotiation.Negotiation) error {
	m, err := negotiationToModel(n)
	if err != nil {
		return err
	}
	return s.negotiations.Save(ctx, &m)
}

func (s *GormStore) LoadNegotiation(ctx context.Context, id string) (negotiation.Negotiation, error) {
	if !validID(id) {
		return negotiation.Negotiation{}, negotiation.ErrNegotiationNotFound
	}
	m, err := s.negotiations.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return negotiation.Negotiation{}, negotiation.ErrNegotiationNotFound
	}
	if err != nil {
		return negotiation.Negotiation{}, err
	}
	return negotiationFromModel(*m), nil
}

func (s *GormStore) ListActive(ctx context.Context) ([]negotiation.Negotiation, error) {
	list, err := s.negotiations.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]negotiation.Negotiation, 0, len(list))
	for _, m := range list {
		out = append(out, negotiationFromModel(m))
	}
	return out, nil
}

// Finalize: слот OPEN -> BOOKED (только у активного провайдера), бронь, принятые переговоры и отмена
// соседей. Всё или ничего.
func (s *GormStore) Finalize(ctx context.Context, f negotiation.Finalization) error {
	neg, err := negotiationToModel(f.Negotiation)
	if err != nil {
		return err
	}
	booking, err := bookingToModel(f.Booking)
	if err != nil {
		return err
	}
	siblings := make([]model.Negotiation, 0, len(f.Siblings))
	for _, sib := range f.Siblings {
		m, err := negotiationToModel(sib)
		if err != nil {
			return err
		}
		siblings = append(siblings, m)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slots := NewGormSlotRepository(tx)
		negotiations := NewGormNegotiationRepository(tx)
		bookings := NewGormBookingRepository(tx)

		if err := slots.MarkBooked(ctx, f.Negotiation.SlotID); err != nil {
			return err
		}
		if err := bookings.Create(ctx, &booking); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		if err := negotiations.Save(ctx, &neg); err != nil {
			return fmt.Errorf("save negotiation: %w", err)
		}
		for i := range siblings {
			if err := negotiations.Save(ctx, &siblings[i]); err != nil {
				return fmt.Errorf("save sibling: %w", err)
			}
		}
		// соседи, которых движок не знает (например, с другого инстанса)
		if _, err := negotiations.CancelActiveBySlot(ctx, f.Negotiation.SlotID, f.Negotiation.ID, f.CancelReason); err != nil {
			return fmt.Errorf("cancel siblings: %w", err)
		}
		return nil
	})
}

func (s *GormStore) WithdrawSlot(ctx context.Context, slotID string) error {
	if !validID(slotID) {
		return negotiation.ErrSlotNotFound
	}
	err := s.slots.Withdraw(ctx, slotID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return negotiation.ErrSlotNotFound
	}
	return err
}

func (s *GormStore) CancelActiveBySlot(ctx context.Context, slotID, reason string) (int64, error) {
	if !validID(slotID) {
		return 0, nil
	}
	return s.negotiations.CancelActiveBySlot(ctx, slotID, "", reason)
}

func (s *GormStore) CancelActiveByProvider(ctx context.Context, providerID, reason string) (int64, error) {
	if !validID(providerID) {
		return 0, nil
	}
	return s.negotiations.CancelActiveByProvider(ctx, providerID, reason)
}

func (s *GormStore) CancelBooking(ctx context.Context, bookingID string) (negotiation.Booking, error) {
	if !validID(bookingID) {
		return negotiation.Booking{}, negotiation.ErrBookingNotFound
	}
	m, err := s.bookings.Cancel(ctx, bookingID, time.Now().UTC())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return negotiation.Booking{}, negotiation.ErrBookingNotFound
	}
	if err != nil {
		return negotiation.Booking{}, err
	}
	return bookingFromModel(*m), nil
}

// ListBookings — бронирования покупателя.
func (s *GormStore) ListBookings(ctx context.Context, buyerID string, limit, offset int) ([]negotiation.Booking, int64, error) {
	list, total, err := s.bookings.ListByBuyer(ctx, buyerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]negotiation.Booking, 0, len(list))
	for _, m := range list {
		out = append(out, bookingFromModel(m))
	}
	return out, total, nil
}

// History — журнал событий по переговорам.
func (s *GormStore) History(ctx context.Context, negotiationID string) ([]model.Event, error) {
	return s.events.ListByNegotiation(ctx, negotiationID)
}
