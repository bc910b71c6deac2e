package service

import (
	"encoding/json"
	"time"

	"github.com/Leganyst/openslots/internal/calendar"
	"github.com/Leganyst/openslots/internal/discovery"
	"github.com/Leganyst/openslots/internal/matching"
	"github.com/Leganyst/openslots/internal/model"
	"github.com/Leganyst/openslots/internal/negotiation"
)

// Представления ответов: JSON-теги одинаковы для gRPC (Struct) и HTTP.

type SlotView struct {
	SlotID                  string    `json:"slotId"`
	ServiceID               string    `json:"serviceId"`
	ServiceName             string    `json:"serviceName"`
	DurationMin             int       `json:"durationMin"`
	StartTime               time.Time `json:"startTime"`
	EndTime                 time.Time `json:"endTime"`
	BasePriceCents          int64     `json:"basePriceCents"`
	MaxDiscountFraction     float64   `json:"maxDiscountFraction"`
	MaxDiscountedPriceCents int64     `json:"maxDiscountedPriceCents"`
	Likelihood              string    `json:"likelihood,omitempty"`
}

type ProviderView struct {
	ProviderID       string     `json:"providerId"`
	Name             string     `json:"name"`
	Rating           float64    `json:"rating"`
	Distance         float64    `json:"distance"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	LowestPriceCents int64      `json:"lowestPriceCents"`
	Slots            []SlotView `json:"slots"`
}

type BestOfferView struct {
	ProviderID string `json:"providerId"`
	SlotID     string `json:"slotId"`
	PriceCents int64  `json:"priceCents"`
}

type SearchView struct {
	Providers []ProviderView `json:"providers"`
	BestOffer *BestOfferView `json:"bestOffer,omitempty"`
	Page      int            `json:"page"`
	PageSize  int            `json:"pageSize"`
	Total     int            `json:"total"`
	HasNext   bool           `json:"hasNext"`
}

// BuildSearchView режет ранжированных провайдеров на страницы. Вероятность и
// лучшее предложение появляются только при положительной ставке; лучшее
// предложение ищется по всем страницам.
func BuildSearchView(results []discovery.ProviderResult, bid int64, page, pageSize int) SearchView {
	if pageSize <= 0 {
		pageSize = calendar.DefaultPageSize
	}
	p := calendar.Paginate(results, page, pageSize)

	view := SearchView{
		Providers: make([]ProviderView, 0, len(p.Items)),
		Page:      p.Page,
		PageSize:  p.PageSize,
		Total:     p.Total,
		HasNext:   p.HasNext,
	}
	for _, r := range p.Items {
		pv := ProviderView{
			ProviderID:       r.ProviderID,
			Name:             r.Name,
			Rating:           r.Rating,
			Distance:         r.Distance,
			Address:          r.Address,
			City:             r.City,
			LowestPriceCents: r.LowestPriceCents,
			Slots:            make([]SlotView, 0, len(r.Slots)),
		}
		for _, s := range r.Slots {
			sv := SlotView{
				SlotID:                  s.SlotID,
				ServiceID:               s.ServiceID,
				ServiceName:             s.ServiceName,
				DurationMin:             s.DurationMin,
				StartTime:               s.StartTime,
				EndTime:                 s.EndTime,
				BasePriceCents:          s.BasePriceCents,
				MaxDiscountFraction:     s.MaxDiscountFraction,
				MaxDiscountedPriceCents: s.MaxDiscountedPriceCents,
			}
			if bid > 0 {
				sv.Likelihood = string(matching.Likelihood(float64(bid), float64(s.MinPriceCents), float64(s.MaxPriceCents)))
			}
			pv.Slots = append(pv.Slots, sv)
		}
		view.Providers = append(view.Providers, pv)
	}

	if bid > 0 {
		if sel, ok := matching.BestOffer(results, float64(bid)); ok {
			view.BestOffer = &BestOfferView{ProviderID: sel.ProviderID, SlotID: sel.SlotID, PriceCents: sel.PriceCents}
		}
	}
	return view
}

type OfferView struct {
	ID         string    `json:"id"`
	Seq        int       `json:"seq"`
	OfferedBy  string    `json:"offeredBy"`
	PriceCents int64     `json:"priceCents"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

type NegotiationView struct {
	ID            string      `json:"id"`
	SlotID        string      `json:"slotId"`
	BuyerID       string      `json:"buyerId"`
	ProviderID    string      `json:"providerId"`
	Status        string      `json:"status"`
	MinPriceCents int64       `json:"minPriceCents"`
	MaxPriceCents int64       `json:"maxPriceCents"`
	CutoffAt      time.Time   `json:"cutoffAt"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
	CancelReason  string      `json:"cancelReason,omitempty"`
	Offers        []OfferView `json:"offers"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func negotiationView(n negotiation.Negotiation) NegotiationView {
	v := NegotiationView{
		ID:            n.ID,
		SlotID:        n.SlotID,
		BuyerID:       n.BuyerID,
		ProviderID:    n.ProviderID,
		Status:        string(n.Status),
		MinPriceCents: n.MinPriceCents,
		MaxPriceCents: n.MaxPriceCents,
		CutoffAt:      n.CutoffAt,
		ExpiresAt:     n.ExpiresAt,
		CancelReason:  n.CancelReason,
		Offers:        make([]OfferView, 0, len(n.Offers)),
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}
	for _, o := range n.Offers {
		v.Offers = append(v.Offers, OfferView{
			ID:         o.ID,
			Seq:        o.Seq,
			OfferedBy:  string(o.OfferedBy),
			PriceCents: o.PriceCents,
			Status:     string(o.Status),
			CreatedAt:  o.CreatedAt,
		})
	}
	return v
}

func negotiationViews(list []negotiation.Negotiation) []NegotiationView {
	out := make([]NegotiationView, 0, len(list))
	for _, n := range list {
		out = append(out, negotiationView(n))
	}
	return out
}

type BookingView struct {
	ID            string     `json:"id"`
	NegotiationID string     `json:"negotiationId"`
	SlotID        string     `json:"slotId"`
	BuyerID       string     `json:"buyerId"`
	ProviderID    string     `json:"providerId"`
	PriceCents    int64      `json:"priceCents"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
}

func bookingView(b negotiation.Booking) BookingView {
	return BookingView{
		ID:            b.ID,
		NegotiationID: b.NegotiationID,
		SlotID:        b.SlotID,
		BuyerID:       b.BuyerID,
		ProviderID:    b.ProviderID,
		PriceCents:    b.PriceCents,
		Status:        string(b.Status),
		CreatedAt:     b.CreatedAt,
		CancelledAt:   b.CancelledAt,
	}
}

type EventView struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	IdempotencyKey string          `json:"idempotencyKey"`
	NegotiationID  string          `json:"negotiationId,omitempty"`
	BookingID      string          `json:"bookingId,omitempty"`
	OccurredAt     time.Time       `json:"occurredAt"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

func eventView(m model.Event) EventView {
	v := EventView{
		ID:             m.ID,
		Type:           m.EventType,
		IdempotencyKey: m.IdempotencyKey,
		NegotiationID:  m.NegotiationID,
		BookingID:      m.BookingID,
		OccurredAt:     m.OccurredAt,
	}
	if len(m.Payload) > 0 {
		v.Payload = json.RawMessage(m.Payload)
	}
	return v
}
