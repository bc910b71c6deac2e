package negotiation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Leganyst/openslots/internal/catalog"
)

// memStore is an in-memory Store with the same atomicity as the gorm one.
type memStore struct {
	mu       sync.Mutex
	slots    map[string]catalog.Slot
	negs     map[string]Negotiation
	bookings map[string]Booking

	persistErr    error
	finalizeCalls int
}

func newMemStore(slots ...catalog.Slot) *memStore {
	s := &memStore{
		slots:    map[string]catalog.Slot{},
		negs:     map[string]Negotiation{},
		bookings: map[string]Booking{},
	}
	for _, sl := range slots {
		s.slots[sl.ID] = sl
	}
	return s
}

func (s *memStore) LoadSlot(_ context.Context, id string) (catalog.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return catalog.Slot{}, ErrSlotNotFound
	}
	return sl, nil
}

func (s *memStore) PersistNegotiation(_ context.Context, n Negotiation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistErr != nil {
		return s.persistErr
	}
	s.negs[n.ID] = n.Clone()
	return nil
}

func (s *memStore) LoadNegotiation(_ context.Context, id string) (Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.negs[id]
	if !ok {
		return Negotiation{}, ErrNegotiationNotFound
	}
	return n.Clone(), nil
}

func (s *memStore) ListActive(context.Context) ([]Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Negotiation
	for _, n := range s.negs {
		if n.Status == StatusActive {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (s *memStore) Finalize(_ context.Context, f Finalization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeCalls++

	sl, ok := s.slots[f.Negotiation.SlotID]
	if !ok || sl.Status != catalog.SlotOpen || sl.ProviderInactive {
		return ErrSlotNotOpen
	}
	sl.Status = catalog.SlotBooked
	s.slots[sl.ID] = sl
	s.bookings[f.Booking.ID] = f.Booking
	s.negs[f.Negotiation.ID] = f.Negotiation.Clone()
	for _, sib := range f.Siblings {
		s.negs[sib.ID] = sib.Clone()
	}
	for id, n := range s.negs {
		if n.SlotID == sl.ID && n.Status == StatusActive {
			n.Status = StatusCancelled
			n.CancelReason = f.CancelReason
			s.negs[id] = n
		}
	}
	return nil
}

func (s *memStore) CancelBooking(_ context.Context, id string) (Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return Booking{}, ErrBookingNotFound
	}
	if b.Status != BookingCancelled {
		now := time.Now().UTC()
		b.Status = BookingCancelled
		b.CancelledAt = &now
		s.bookings[id] = b
	}
	return b, nil
}

func (s *memStore) WithdrawSlot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	switch {
	case !ok:
		return ErrSlotNotFound
	case sl.Status == catalog.SlotWithdrawn:
		return nil
	case sl.Status != catalog.SlotOpen:
		return ErrSlotNotOpen
	}
	sl.Status = catalog.SlotWithdrawn
	s.slots[id] = sl
	return nil
}

func (s *memStore) CancelActiveBySlot(_ context.Context, slotID, reason string) (int64, error) {
	return s.cancelActive(func(n Negotiation) bool { return n.SlotID == slotID }, reason)
}

func (s *memStore) CancelActiveByProvider(_ context.Context, providerID, reason string) (int64, error) {
	return s.cancelActive(func(n Negotiation) bool { return n.ProviderID == providerID }, reason)
}

func (s *memStore) cancelActive(match func(Negotiation) bool, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistErr != nil {
		return 0, s.persistErr
	}
	var n int64
	for id, neg := range s.negs {
		if neg.Status == StatusActive && match(neg) {
			neg.Status = StatusCancelled
			neg.CancelReason = reason
			s.negs[id] = neg
			n++
		}
	}
	return n, nil
}

// putNegotiation пишет строку мимо движка, как это сделал бы другой инстанс.
func (s *memStore) putNegotiation(n Negotiation) {
	s.mu.Lock()
	s.negs[n.ID] = n.Clone()
	s.mu.Unlock()
}

func (s *memStore) negotiation(id string) Negotiation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negs[id]
}

func (s *memStore) setProviderInactive(slotID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slots[slotID]
	sl.ProviderInactive = true
	s.slots[slotID] = sl
}

func (s *memStore) slot(id string) catalog.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[id]
}

func (s *memStore) setSlotStatus(id string, st catalog.SlotStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slots[id]
	sl.Status = st
	s.slots[id] = sl
}

func (s *memStore) bookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func (s *memStore) failPersist(err error) {
	s.mu.Lock()
	s.persistErr = err
	s.mu.Unlock()
}

var errDown = errors.New("store down")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
