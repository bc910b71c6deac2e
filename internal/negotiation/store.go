package negotiation

import (
	"context"
	"errors"

	"github.com/Leganyst/openslots/internal/catalog"
)

var (
	ErrSlotNotFound        = errors.New("slot not found")
	ErrSlotNotOpen         = errors.New("slot is not open")
	ErrNegotiationNotFound = errors.New("negotiation not found")
	ErrBookingNotFound     = errors.New("booking not found")
)

// Finalization — всё, что Store.Finalize применяет одной единицей.
type Finalization struct {
	Negotiation Negotiation
	Booking     Booking
	// Остальные переговоры по слоту, известные движку, уже в CANCELLED.
	Siblings     []Negotiation
	CancelReason string
}

// Store — граница хранения. Finalize атомарен: слот OPEN -> BOOKED, бронь,
// принятые переговоры и соседи записаны, либо не меняется ничего. Если слот
// уже не OPEN или провайдер деактивирован, Finalize вернёт ErrSlotNotOpen.
type Store interface {
	LoadSlot(ctx context.Context, slotID string) (catalog.Slot, error)
	PersistNegotiation(ctx context.Context, n Negotiation) error
	LoadNegotiation(ctx context.Context, id string) (Negotiation, error)
	ListActive(ctx context.Context) ([]Negotiation, error)
	Finalize(ctx context.Context, f Finalization) error
	CancelBooking(ctx context.Context, bookingID string) (Booking, error)
	// OPEN -> WITHDRAWN. Уже снятый слот не ошибка, забронированный — ErrSlotNotOpen.
	WithdrawSlot(ctx context.Context, slotID string) error
	// Закрыть ACTIVE переговоры, которых нет в памяти этого инстанса.
	CancelActiveBySlot(ctx context.Context, slotID, reason string) (int64, error)
	CancelActiveByProvider(ctx context.Context, providerID, reason string) (int64, error)
}
