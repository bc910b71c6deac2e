package repository

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Leganyst/openslots/internal/catalog"
	"github.com/Leganyst/openslots/internal/model"
	"github.com/Leganyst/openslots/internal/negotiation"
)

func slotToCatalog(s model.TimeSlot) catalog.Slot {
	return catalog.Slot{
		ID:                  s.ID.String(),
		ServiceID:           s.ServiceID.String(),
		ProviderID:          s.ProviderID.String(),
		StartTime:           s.StartsAt.UTC(),
		EndTime:             s.EndsAt.UTC(),
		Status:              catalog.SlotStatus(s.Status),
		BasePriceCents:      s.BasePriceCents,
		MaxDiscountFraction: s.MaxDiscountFraction,
		MinPriceCents:       s.MinPriceCents,
		ProviderInactive:    s.Provider != nil && !s.Provider.IsActive,
	}
}

func providerToCatalog(p model.Provider) catalog.Provider {
	out := catalog.Provider{
		ID:        p.ID.String(),
		Name:      p.DisplayName,
		Rating:    p.Rating,
		Address:   p.Address,
		City:      p.City,
		State:     p.State,
		ZipCode:   p.ZipCode,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
	}
	for _, s := range p.Services {
		svc := catalog.Service{
			ID:          s.ID.String(),
			ProviderID:  s.ProviderID.String(),
			Category:    catalog.Category(s.Category),
			Name:        s.Name,
			DurationMin: s.DurationMin,
		}
		for _, sl := range s.Slots {
			svc.Slots = append(svc.Slots, slotToCatalog(sl))
		}
		out.Services = append(out.Services, svc)
	}
	return out
}

func negotiationToModel(n negotiation.Negotiation) (model.Negotiation, error) {
	id, err := uuid.Parse(n.ID)
	if err != nil {
		return model.Negotiation{}, fmt.Errorf("negotiation id %q: %w", n.ID, err)
	}
	slotID, err := uuid.Parse(n.SlotID)
	if err != nil {
		return model.Negotiation{}, fmt.Errorf("slot id %q: %w", n.SlotID, err)
	}
	providerID, err := uuid.Parse(n.ProviderID)
	if err != nil {
		return model.Negotiation{}, fmt.Errorf("provider id %q: %w", n.ProviderID, err)
	}

	m := model.Negotiation{
		ID:            id,
		SlotID:        slotID,
		ProviderID:    providerID,
		BuyerID:       n.BuyerID,
		Status:        string(n.Status),
		MinPriceCents: n.MinPriceCents,
		MaxPriceCents: n.MaxPriceCents,
		CutoffAt:      n.CutoffAt,
		ExpiresAt:     n.ExpiresAt,
		CancelReason:  n.CancelReason,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}
	for _, o := range n.Offers {
		oid, err := uuid.Parse(o.ID)
		if err != nil {
			return model.Negotiation{}, fmt.Errorf("offer id %q: %w", o.ID, err)
		}
		m.Offers = append(m.Offers, model.Offer{
			ID:            oid,
			NegotiationID: id,
			Seq:           o.Seq,
			OfferedBy:     string(o.OfferedBy),
			PriceCents:    o.PriceCents,
			Status:        string(o.Status),
			CreatedAt:     o.CreatedAt,
			UpdatedAt:     n.UpdatedAt,
		})
	}
	return m, nil
}

func negotiationFromModel(m model.Negotiation) negotiation.Negotiation {
	n := negotiation.Negotiation{
		ID:            m.ID.String(),
		SlotID:        m.SlotID.String(),
		BuyerID:       m.BuyerID,
		ProviderID:    m.ProviderID.String(),
		Status:        negotiation.Status(m.Status),
		MinPriceCents: m.MinPriceCents,
		MaxPriceCents: m.MaxPriceCents,
		CutoffAt:      m.CutoffAt.UTC(),
		CancelReason:  m.CancelReason,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
	if m.ExpiresAt != nil {
		t := m.ExpiresAt.UTC()
		n.ExpiresAt = &t
	}
	for _, o := range m.Offers {
		n.Offers = append(n.Offers, negotiation.Offer{
			ID:         o.ID.String(),
			Seq:        o.Seq,
			OfferedBy:  negotiation.Party(o.OfferedBy),
			PriceCents: o.PriceCents,
			Status:     negotiation.OfferStatus(o.Status),
			CreatedAt:  o.CreatedAt.UTC(),
		})
	}
	return n
}

func bookingToModel(b negotiation.Booking) (model.Booking, error) {
	var (
		m   model.Booking
		err error
	)
	if m.ID, err = uuid.Parse(b.ID); err != nil {
		return model.Booking{}, fmt.Errorf("booking id %q: %w", b.ID, err)
	}
	if m.NegotiationID, err = uuid.Parse(b.NegotiationID); err != nil {
		return model.Booking{}, fmt.Errorf("negotiation id %q: %w", b.NegotiationID, err)
	}
	if m.SlotID, err = uuid.Parse(b.SlotID); err != nil {
		return model.Booking{}, fmt.Errorf("slot id %q: %w", b.SlotID, err)
	}
	if m.ProviderID, err = uuid.Parse(b.ProviderID); err != nil {
		return model.Booking{}, fmt.Errorf("provider id %q: %w", b.ProviderID, err)
	}
	m.BuyerID = b.BuyerID
	m.PriceCents = b.PriceCents
	m.Status = model.BookingStatus(b.Status)
	m.CancelledAt = b.CancelledAt
	m.CreatedAt = b.CreatedAt
	return m, nil
}

func bookingFromModel(m model.Booking) negotiation.Booking {
	b := negotiation.Booking{
		ID:            m.ID.String(),
		NegotiationID: m.NegotiationID.String(),
		SlotID:        m.SlotID.String(),
		BuyerID:       m.BuyerID,
		ProviderID:    m.ProviderID.String(),
		PriceCents:    m.PriceCents,
		Status:        negotiation.BookingStatus(m.Status),
		CreatedAt:     m.CreatedAt.UTC(),
	}
	if m.CancelledAt != nil {
		t := m.CancelledAt.UTC()
		b.CancelledAt = &t
	}
	return b
}
