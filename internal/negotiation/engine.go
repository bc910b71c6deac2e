package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/openslots/internal/apperror"
	"github.com/Leganyst/openslots/internal/catalog"
	"github.com/Leganyst/openslots/internal/events"
)

const (
	DefaultCounterWindow = 60 * time.Second
	DefaultBidCutoff     = 30 * time.Minute
)

// Причины отмены, которые движок ставит сам.
const (
	ReasonSlotBooked          = "slot booked through another negotiation"
	ReasonSlotNotOpen         = "slot no longer open"
	ReasonSlotWithdrawn       = "slot withdrawn"
	ReasonProviderDeactivated = "provider deactivated"
)

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithCounterWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.counterWindow = d
		}
	}
}

func WithBidCutoff(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.bidCutoff = d
		}
	}
}

type entry struct {
	slotID string // неизменяем, читается без mu
	mu     sync.Mutex
	n      Negotiation
}

// Engine — владелец живого состояния переговоров. Каждые переговоры
// блокируются отдельно. Порядок захвата: ключ слота, ключ покупателя,
// переговоры; e.mu берётся только последним.
type Engine struct {
	store         Store
	pub           events.Publisher
	now           func() time.Time
	counterWindow time.Duration
	bidCutoff     time.Duration

	slotLocks  keyedMutex
	buyerLocks keyedMutex

	mu      sync.RWMutex
	entries map[string]*entry
	bySlot  map[string]map[string]struct{} // только ACTIVE
	byBuyer map[string]string              // только ACTIVE
}

func NewEngine(store Store, pub events.Publisher, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		pub:           pub,
		now:           func() time.Time { return time.Now().UTC() },
		counterWindow: DefaultCounterWindow,
		bidCutoff:     DefaultBidCutoff,
		entries:       make(map[string]*entry),
		bySlot:        make(map[string]map[string]struct{}),
		byBuyer:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type CreateRequest struct {
	BuyerID    string
	SlotID     string
	PriceCents int64
}

// Create открывает переговоры первой ставкой покупателя.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (Negotiation, error) {
	n, err := e.create(ctx, req)
	if err != nil {
		return Negotiation{}, err
	}
	e.emit(ctx, e.envelope(events.NegotiationCreated, n, map[string]any{
		"priceCents": req.PriceCents,
	}))
	return n, nil
}

func (e *Engine) create(ctx context.Context, req CreateRequest) (Negotiation, error) {
	const op = "negotiation.Create"
	switch {
	case req.BuyerID == "":
		return Negotiation{}, apperror.Validation(op, "buyer id is required")
	case req.SlotID == "":
		return Negotiation{}, apperror.Validation(op, "slot id is required")
	case req.PriceCents <= 0:
		return Negotiation{}, apperror.Validation(op, "price must be positive").WithSlot(req.SlotID).WithPrice(req.PriceCents, 0, 0)
	}

	unlockSlot := e.slotLocks.Lock(req.SlotID)
	defer unlockSlot()

	slot, err := e.store.LoadSlot(ctx, req.SlotID)
	if errors.Is(err, ErrSlotNotFound) {
		return Negotiation{}, apperror.NotFound(op, "slot not found").WithSlot(req.SlotID)
	}
	if err != nil {
		return Negotiation{}, fmt.Errorf("%s: load slot: %w", op, err)
	}
	if slot.Status != catalog.SlotOpen {
		return Negotiation{}, apperror.Conflict(op, "slot is not open").WithSlot(req.SlotID)
	}
	if slot.ProviderInactive {
		return Negotiation{}, apperror.Conflict(op, "provider is not active").WithSlot(req.SlotID)
	}
	now := e.now()
	cutoff := slot.StartTime.Add(-e.bidCutoff)
	if !now.Before(cutoff) {
		return Negotiation{}, apperror.Conflict(op, "bidding closed for this slot").WithSlot(req.SlotID)
	}

	// check-and-insert под ключом покупателя
	unlockBuyer := e.buyerLocks.Lock(req.BuyerID)
	defer unlockBuyer()

	if id, ok := e.activeIDForBuyer(req.BuyerID); ok {
		return Negotiation{}, apperror.Conflict(op, "buyer already has an active negotiation").
			WithNegotiation(id).WithSlot(req.SlotID)
	}

	n := Negotiation{
		ID:            uuid.NewString(),
		SlotID:        slot.ID,
		BuyerID:       req.BuyerID,
		ProviderID:    slot.ProviderID,
		Status:        StatusActive,
		MinPriceCents: slot.FloorPriceCents(),
		MaxPriceCents: slot.MaxPriceCents(),
		CutoffAt:      cutoff,
		Offers: []Offer{{
			ID:         uuid.NewString(),
			Seq:        1,
			OfferedBy:  PartyBuyer,
			PriceCents: req.PriceCents,
			Status:     OfferPending,
			CreatedAt:  now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.PersistNegotiation(ctx, n); err != nil {
		return Negotiation{}, fmt.Errorf("%s: persist: %w", op, err)
	}
	e.register(n, true)
	return n.Clone(), nil
}

// Counter добавляет встречное предложение стороны by. Живое предложение должно
// принадлежать другой стороне. Встречное провайдера вне ценового диапазона
// слота отклоняется и ничего не записывается.
func (e *Engine) Counter(ctx context.Context, id string, by Party, priceCents int64) (Negotiation, error) {
	const op = "negotiation.Counter"
	if _, err := ParseParty(string(by)); err != nil {
		return Negotiation{}, apperror.Validation(op, err.Error()).WithNegotiation(id)
	}
	if priceCents <= 0 {
		return Negotiation{}, apperror.Validation(op, "price must be positive").WithNegotiation(id).WithPrice(priceCents, 0, 0)
	}

	return e.mutate(ctx, op, id, func(n *Negotiation, now time.Time) ([]events.Envelope, bool, error) {
		if evs, changed, err := e.guard(op, n, now); err != nil {
			return evs, changed, err
		}
		live := n.Live()
		if live < 0 || n.Offers[live].OfferedBy == by {
			return nil, false, apperror.Conflict(op, "waiting for the other party").WithNegotiation(n.ID).WithSlot(n.SlotID)
		}
		if by == PartyProvider && (priceCents < n.MinPriceCents || priceCents > n.MaxPriceCents) {
			return nil, false, apperror.Conflict(op, "counter-offer outside allowed range").
				WithNegotiation(n.ID).WithSlot(n.SlotID).WithPrice(priceCents, n.MinPriceCents, n.MaxPriceCents)
		}

		n.Offers[live].Status = OfferCountered
		n.Offers = append(n.Offers, Offer{
			ID:         uuid.NewString(),
			Seq:        len(n.Offers) + 1,
			OfferedBy:  by,
			PriceCents: priceCents,
			Status:     OfferPending,
			CreatedAt:  now,
		})
		// Таймер ставится один раз, первым встречным предложением провайдера.
		if by == PartyProvider && n.ExpiresAt == nil {
			exp := now.Add(e.counterWindow)
			if n.CutoffAt.Before(exp) {
				exp = n.CutoffAt
			}
			n.ExpiresAt = &exp
		}

		return []events.Envelope{e.envelope(events.NegotiationCountered, *n, map[string]any{
			"by":         string(by),
			"priceCents": priceCents,
			"expiresAt":  n.ExpiresAt,
		})}, true, nil
	})
}

// Accept принимает живое предложение другой стороны и бронирует слот. При
// успехе остальные переговоры по слоту отменяются в той же транзакции.
func (e *Engine) Accept(ctx context.Context, id string, by Party) (Booking, error) {
	const op = "negotiation.Accept"
	if _, err := ParseParty(string(by)); err != nil {
		return Booking{}, apperror.Validation(op, err.Error()).WithNegotiation(id)
	}
	ent, err := e.lookup(ctx, op, id)
	if err != nil {
		return Booking{}, err
	}

	unlockSlot := e.slotLocks.Lock(ent.slotID)
	ent.mu.Lock()
	locked := []*entry{ent}
	unlockAll := func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].mu.Unlock()
		}
		unlockSlot()
	}

	now := e.now()
	next := ent.n.Clone()
	if evs, changed, gerr := e.guard(op, &next, now); gerr != nil {
		var out Negotiation
		if changed {
			if err := e.commit(ctx, ent, next); err != nil {
				unlockAll()
				return Booking{}, fmt.Errorf("%s: persist: %w", op, err)
			}
			out = next.Clone()
		}
		unlockAll()
		if changed {
			e.release(out)
			e.emit(ctx, evs...)
		}
		return Booking{}, gerr
	}

	live := next.Live()
	if live < 0 || next.Offers[live].OfferedBy == by {
		unlockAll()
		return Booking{}, apperror.Conflict(op, "no offer from the other party to accept").WithNegotiation(id).WithSlot(next.SlotID)
	}
	offer := next.Offers[live]
	next.Offers[live].Status = OfferAccepted
	next.Status = StatusAccepted
	next.UpdatedAt = now

	booking := Booking{
		ID:            uuid.NewString(),
		NegotiationID: next.ID,
		SlotID:        next.SlotID,
		BuyerID:       next.BuyerID,
		ProviderID:    next.ProviderID,
		PriceCents:    offer.PriceCents,
		Status:        BookingConfirmed,
		CreatedAt:     now,
	}

	var (
		sibEntries []*entry
		sibNext    []Negotiation
	)
	for _, s := range e.siblings(ent.slotID, id) {
		s.mu.Lock()
		locked = append(locked, s)
		if s.n.Status != StatusActive {
			continue
		}
		c := s.n.Clone()
		markCancelled(&c, now, ReasonSlotBooked)
		sibEntries = append(sibEntries, s)
		sibNext = append(sibNext, c)
	}

	err = e.store.Finalize(ctx, Finalization{
		Negotiation:  next,
		Booking:      booking,
		Siblings:     sibNext,
		CancelReason: ReasonSlotBooked,
	})
	if errors.Is(err, ErrSlotNotOpen) {
		failed := ent.n.Clone()
		markCancelled(&failed, now, ReasonSlotNotOpen)
		perr := e.commit(ctx, ent, failed)
		unlockAll()
		if perr != nil {
			return Booking{}, fmt.Errorf("%s: persist: %w", op, perr)
		}
		e.release(failed)
		e.emit(ctx, e.envelope(events.NegotiationCancelled, failed, map[string]any{"reason": ReasonSlotNotOpen}))
		return Booking{}, apperror.Conflict(op, "slot is no longer open").WithNegotiation(id).WithSlot(failed.SlotID).Wrap(err)
	}
	if err != nil {
		unlockAll()
		return Booking{}, fmt.Errorf("%s: finalize: %w", op, err)
	}

	ent.n = next
	for i, s := range sibEntries {
		s.n = sibNext[i]
	}
	unlockAll()

	e.release(next)
	evs := []events.Envelope{
		e.envelope(events.NegotiationAccepted, next, map[string]any{
			"priceCents": offer.PriceCents,
			"acceptedBy": string(by),
		}),
		e.bookingEnvelope(events.BookingCreated, booking),
	}
	for _, s := range sibNext {
		e.release(s)
		evs = append(evs, e.envelope(events.NegotiationCancelled, s, map[string]any{"reason": ReasonSlotBooked}))
	}
	e.emit(ctx, evs...)
	return booking, nil
}

// Cancel переводит ACTIVE переговоры в CANCELLED. Терминальные возвращаются
// без изменений.
func (e *Engine) Cancel(ctx context.Context, id, reason string) (Negotiation, error) {
	const op = "negotiation.Cancel"
	return e.mutate(ctx, op, id, func(n *Negotiation, now time.Time) ([]events.Envelope, bool, error) {
		if n.Status.Terminal() {
			return nil, false, nil
		}
		markCancelled(n, now, reason)
		return []events.Envelope{e.envelope(events.NegotiationCancelled, *n, map[string]any{"reason": reason})}, true, nil
	})
}

// Expire переводит переговоры в EXPIRED, если срок вышел. Второй результат —
// сделал ли переход именно этот вызов.
func (e *Engine) Expire(ctx context.Context, id string) (Negotiation, bool, error) {
	const op = "negotiation.Expire"
	var expired bool
	n, err := e.mutate(ctx, op, id, func(n *Negotiation, now time.Time) ([]events.Envelope, bool, error) {
		if n.Status.Terminal() || now.Before(n.Deadline()) {
			return nil, false, nil
		}
		markExpired(n, now)
		expired = true
		return []events.Envelope{e.envelope(events.NegotiationExpired, *n, nil)}, true, nil
	})
	return n, expired, err
}

// tryExpire — Expire для чистильщика: занятые другим действием переговоры
// пропускаются до следующего тика.
func (e *Engine) tryExpire(ctx context.Context, ent *entry) (bool, error) {
	if !ent.mu.TryLock() {
		return false, nil
	}
	now := e.now()
	if ent.n.Status.Terminal() || now.Before(ent.n.Deadline()) {
		ent.mu.Unlock()
		return false, nil
	}
	next := ent.n.Clone()
	markExpired(&next, now)
	if err := e.commit(ctx, ent, next); err != nil {
		ent.mu.Unlock()
		return false, err
	}
	ent.mu.Unlock()

	e.release(next)
	e.emit(ctx, e.envelope(events.NegotiationExpired, next, nil))
	return true, nil
}

// CancelSlot закрывает все ACTIVE переговоры по слоту, в том числе строки
// других инстансов. Статус слота не меняется.
func (e *Engine) CancelSlot(ctx context.Context, slotID, reason string) ([]Negotiation, error) {
	const op = "negotiation.CancelSlot"
	if slotID == "" {
		return nil, apperror.Validation(op, "slot id is required")
	}
	if reason == "" {
		reason = ReasonSlotWithdrawn
	}

	unlockSlot := e.slotLocks.Lock(slotID)
	out, evs, err := e.cancelSlotLocked(ctx, op, slotID, reason)
	unlockSlot()

	e.finishCancel(ctx, out, evs)
	return out, err
}

// WithdrawSlot снимает слот с продажи (OPEN -> WITHDRAWN) и закрывает
// переговоры по нему. Новые ставки и бронь на снятый слот невозможны.
func (e *Engine) WithdrawSlot(ctx context.Context, slotID, reason string) ([]Negotiation, error) {
	const op = "negotiation.WithdrawSlot"
	if slotID == "" {
		return nil, apperror.Validation(op, "slot id is required")
	}
	if reason == "" {
		reason = ReasonSlotWithdrawn
	}

	unlockSlot := e.slotLocks.Lock(slotID)
	err := e.store.WithdrawSlot(ctx, slotID)
	switch {
	case errors.Is(err, ErrSlotNotFound):
		unlockSlot()
		return nil, apperror.NotFound(op, "slot not found").WithSlot(slotID)
	case errors.Is(err, ErrSlotNotOpen):
		unlockSlot()
		return nil, apperror.Conflict(op, "slot is already booked").WithSlot(slotID)
	case err != nil:
		unlockSlot()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, evs, err := e.cancelSlotLocked(ctx, op, slotID, reason)
	unlockSlot()

	e.finishCancel(ctx, out, evs)
	return out, err
}

// cancelSlotLocked — общая часть CancelSlot и WithdrawSlot. Вызывающий держит
// ключ слота.
func (e *Engine) cancelSlotLocked(ctx context.Context, op, slotID, reason string) ([]Negotiation, []events.Envelope, error) {
	var (
		out  []Negotiation
		evs  []events.Envelope
		errs []error
	)
	for _, ent := range e.siblings(slotID, "") {
		ent.mu.Lock()
		if ent.n.Status.Terminal() {
			ent.mu.Unlock()
			continue
		}
		next := ent.n.Clone()
		markCancelled(&next, e.now(), reason)
		if err := e.commit(ctx, ent, next); err != nil {
			ent.mu.Unlock()
			errs = append(errs, fmt.Errorf("%s: negotiation %s: %w", op, next.ID, err))
			continue
		}
		ent.mu.Unlock()
		out = append(out, next.Clone())
		evs = append(evs, e.envelope(events.NegotiationCancelled, next, map[string]any{"reason": reason}))
	}
	// строки, которых нет в памяти этого инстанса
	if _, err := e.store.CancelActiveBySlot(ctx, slotID, reason); err != nil {
		errs = append(errs, fmt.Errorf("%s: cancel stored: %w", op, err))
	}
	return out, evs, errors.Join(errs...)
}

func (e *Engine) finishCancel(ctx context.Context, out []Negotiation, evs []events.Envelope) {
	for _, n := range out {
		e.release(n)
	}
	e.emit(ctx, evs...)
}

// CancelProvider закрывает все ACTIVE переговоры провайдера, включая строки
// других инстансов.
func (e *Engine) CancelProvider(ctx context.Context, providerID, reason string) ([]Negotiation, error) {
	const op = "negotiation.CancelProvider"
	if providerID == "" {
		return nil, apperror.Validation(op, "provider id is required")
	}
	if reason == "" {
		reason = ReasonProviderDeactivated
	}

	slots := map[string]struct{}{}
	for _, ent := range e.activeEntries() {
		ent.mu.Lock()
		if ent.n.ProviderID == providerID && ent.n.Status == StatusActive {
			slots[ent.slotID] = struct{}{}
		}
		ent.mu.Unlock()
	}
	ids := make([]string, 0, len(slots))
	for id := range slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		out  []Negotiation
		errs []error
	)
	for _, slotID := range ids {
		cancelled, err := e.CancelSlot(ctx, slotID, reason)
		out = append(out, cancelled...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := e.store.CancelActiveByProvider(ctx, providerID, reason); err != nil {
		errs = append(errs, fmt.Errorf("%s: cancel stored: %w", op, err))
	}
	return out, errors.Join(errs...)
}

// CancelBooking фиксирует внешнюю отмену брони. Слот остаётся BOOKED.
func (e *Engine) CancelBooking(ctx context.Context, bookingID string) (Booking, error) {
	const op = "negotiation.CancelBooking"
	if bookingID == "" {
		return Booking{}, apperror.Validation(op, "booking id is required")
	}
	b, err := e.store.CancelBooking(ctx, bookingID)
	if errors.Is(err, ErrBookingNotFound) {
		return Booking{}, apperror.NotFound(op, "booking not found")
	}
	if err != nil {
		return Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	e.emit(ctx, e.bookingEnvelope(events.BookingCancelled, b))
	return b, nil
}

func (e *Engine) Get(ctx context.Context, id string) (Negotiation, error) {
	ent, err := e.lookup(ctx, "negotiation.Get", id)
	if err != nil {
		return Negotiation{}, err
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.n.Clone(), nil
}

// ActiveForBuyer возвращает ACTIVE переговоры покупателя, если они есть.
func (e *Engine) ActiveForBuyer(buyerID string) (Negotiation, bool) {
	e.mu.RLock()
	ent := e.entries[e.byBuyer[buyerID]]
	e.mu.RUnlock()
	if ent == nil {
		return Negotiation{}, false
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	if ent.n.Status != StatusActive {
		return Negotiation{}, false
	}
	return ent.n.Clone(), true
}

// Restore поднимает ACTIVE переговоры из хранилища. Вызывать один раз до старта.
// На покупателя закрепляется первая найденная строка.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	list, err := e.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("negotiation.Restore: %w", err)
	}
	restored := 0
	for _, n := range list {
		if n.Status != StatusActive {
			continue
		}
		unlockBuyer := e.buyerLocks.Lock(n.BuyerID)
		if _, ok := e.activeIDForBuyer(n.BuyerID); !ok {
			e.register(n, true)
			restored++
		}
		unlockBuyer()
	}
	return restored, nil
}

// Prune забывает терминальные переговоры, не менявшиеся с before. Они
// остаются доступны через хранилище.
func (e *Engine) Prune(before time.Time) int {
	e.mu.RLock()
	all := make([]*entry, 0, len(e.entries))
	for _, ent := range e.entries {
		all = append(all, ent)
	}
	e.mu.RUnlock()

	pruned := 0
	for _, ent := range all {
		if !ent.mu.TryLock() {
			continue
		}
		if ent.n.Status.Terminal() && ent.n.UpdatedAt.Before(before) {
			e.mu.Lock()
			delete(e.entries, ent.n.ID)
			e.mu.Unlock()
			pruned++
		}
		ent.mu.Unlock()
	}
	return pruned
}

// --- внутреннее ---

type step func(n *Negotiation, now time.Time) (evs []events.Envelope, changed bool, err error)

// mutate выполняет fn над копией переговоров под их блокировкой. Копия
// сохраняется и подменяет оригинал, только если fn сообщил об изменении.
// События уходят после снятия блокировки.
func (e *Engine) mutate(ctx context.Context, op, id string, fn step) (Negotiation, error) {
	ent, err := e.lookup(ctx, op, id)
	if err != nil {
		return Negotiation{}, err
	}

	ent.mu.Lock()
	now := e.now()
	next := ent.n.Clone()
	evs, changed, opErr := fn(&next, now)
	if !changed {
		cur := ent.n.Clone()
		ent.mu.Unlock()
		return cur, opErr
	}
	next.UpdatedAt = now
	if err := e.commit(ctx, ent, next); err != nil {
		ent.mu.Unlock()
		return Negotiation{}, fmt.Errorf("%s: persist: %w", op, err)
	}
	out := next.Clone()
	ent.mu.Unlock()

	if out.Status.Terminal() {
		e.release(out)
	}
	e.emit(ctx, evs...)
	return out, opErr
}

// guard отклоняет действия над терминальными переговорами и на месте
// истекает просроченные.
func (e *Engine) guard(op string, n *Negotiation, now time.Time) ([]events.Envelope, bool, error) {
	if n.Status.Terminal() {
		return nil, false, apperror.State(op, "negotiation is "+string(n.Status)).WithNegotiation(n.ID).WithSlot(n.SlotID)
	}
	if !now.Before(n.Deadline()) {
		markExpired(n, now)
		return []events.Envelope{e.envelope(events.NegotiationExpired, *n, nil)}, true,
			apperror.State(op, "negotiation expired").WithNegotiation(n.ID).WithSlot(n.SlotID)
	}
	return nil, false, nil
}

// commit сохраняет next и подменяет им состояние. Вызывающий держит ent.mu.
func (e *Engine) commit(ctx context.Context, ent *entry, next Negotiation) error {
	if err := e.store.PersistNegotiation(ctx, next); err != nil {
		return err
	}
	ent.n = next
	return nil
}

func markExpired(n *Negotiation, now time.Time) {
	n.Status = StatusExpired
	if i := n.Live(); i >= 0 {
		n.Offers[i].Status = OfferExpired
	}
	n.UpdatedAt = now
}

func markCancelled(n *Negotiation, now time.Time, reason string) {
	n.Status = StatusCancelled
	n.CancelReason = reason
	if i := n.Live(); i >= 0 {
		n.Offers[i].Status = OfferExpired
	}
	n.UpdatedAt = now
}

func (e *Engine) lookup(ctx context.Context, op, id string) (*entry, error) {
	if id == "" {
		return nil, apperror.Validation(op, "negotiation id is required")
	}
	e.mu.RLock()
	ent := e.entries[id]
	e.mu.RUnlock()
	if ent != nil {
		return ent, nil
	}

	n, err := e.store.LoadNegotiation(ctx, id)
	if errors.Is(err, ErrNegotiationNotFound) {
		return nil, apperror.NotFound(op, "negotiation not found").WithNegotiation(id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: load negotiation: %w", op, err)
	}
	if n.Status == StatusActive {
		// покупатель закрепляется за переговорами, только если у него нет других ACTIVE
		unlockBuyer := e.buyerLocks.Lock(n.BuyerID)
		defer unlockBuyer()
		_, taken := e.activeIDForBuyer(n.BuyerID)
		return e.register(n, !taken), nil
	}
	// удалённые Prune терминальные переговоры, только чтение
	return &entry{slotID: n.SlotID, n: n}, nil
}

// register добавляет n или возвращает уже зарегистрированную запись с тем же id.
// claimBuyer — закрепить n за покупателем; вызывающий держит ключ покупателя.
func (e *Engine) register(n Negotiation, claimBuyer bool) *entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ent, ok := e.entries[n.ID]; ok {
		return ent
	}
	ent := &entry{slotID: n.SlotID, n: n}
	e.entries[n.ID] = ent
	if n.Status == StatusActive {
		set := e.bySlot[n.SlotID]
		if set == nil {
			set = make(map[string]struct{})
			e.bySlot[n.SlotID] = set
		}
		set[n.ID] = struct{}{}
		if claimBuyer {
			e.byBuyer[n.BuyerID] = n.ID
		}
	}
	return ent
}

// release убирает терминальные переговоры из ACTIVE-индексов.
func (e *Engine) release(n Negotiation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if set := e.bySlot[n.SlotID]; set != nil {
		delete(set, n.ID)
		if len(set) == 0 {
			delete(e.bySlot, n.SlotID)
		}
	}
	if e.byBuyer[n.BuyerID] == n.ID {
		delete(e.byBuyer, n.BuyerID)
	}
}

// activeIDForBuyer учитывает и короткое окно, когда переговоры покупателя
// уже терминальны, но ещё не освобождены.
func (e *Engine) activeIDForBuyer(buyerID string) (string, bool) {
	e.mu.RLock()
	id, ok := e.byBuyer[buyerID]
	ent := e.entries[id]
	e.mu.RUnlock()
	if !ok || ent == nil {
		return "", false
	}
	ent.mu.Lock()
	active := ent.n.Status == StatusActive
	ent.mu.Unlock()
	return id, active
}

// siblings — ACTIVE записи по slotID, кроме skip, по возрастанию id.
func (e *Engine) siblings(slotID, skip string) []*entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.bySlot[slotID]))
	for id := range e.bySlot[slotID] {
		if id != skip {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]*entry, 0, len(ids))
	for _, id := range ids {
		if ent := e.entries[id]; ent != nil {
			out = append(out, ent)
		}
	}
	return out
}

func (e *Engine) activeEntries() []*entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*entry, 0, len(e.byBuyer))
	for _, set := range e.bySlot {
		for id := range set {
			if ent := e.entries[id]; ent != nil {
				out = append(out, ent)
			}
		}
	}
	return out
}

func (e *Engine) envelope(t events.Type, n Negotiation, data map[string]any) events.Envelope {
	if data == nil {
		data = map[string]any{}
	}
	data["slotId"] = n.SlotID
	data["buyerId"] = n.BuyerID
	data["providerId"] = n.ProviderID
	data["status"] = string(n.Status)
	return events.Envelope{
		Type:           t,
		NegotiationID:  n.ID,
		IdempotencyKey: fmt.Sprintf("%s:%s:%d", t, n.ID, len(n.Offers)),
		Data:           data,
	}
}

func (e *Engine) bookingEnvelope(t events.Type, b Booking) events.Envelope {
	return events.Envelope{
		Type:           t,
		NegotiationID:  b.NegotiationID,
		BookingID:      b.ID,
		IdempotencyKey: fmt.Sprintf("%s:%s", t, b.ID),
		Data: map[string]any{
			"slotId":     b.SlotID,
			"buyerId":    b.BuyerID,
			"providerId": b.ProviderID,
			"priceCents": b.PriceCents,
			"status":     string(b.Status),
		},
	}
}

func (e *Engine) emit(ctx context.Context, evs ...events.Envelope) {
	if e.pub == nil {
		return
	}
	for _, env := range evs {
		e.pub.Publish(ctx, env)
	}
}
