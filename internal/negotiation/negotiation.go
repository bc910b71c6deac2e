// Package negotiation ведёт пошаговый торг о цене слота между покупателем и
// провайдером и превращает принятое предложение в эксклюзивную бронь.
package negotiation

import (
	"fmt"
	"strings"
	"time"
)

type Party string

const (
	PartyBuyer    Party = "BUYER"
	PartyProvider Party = "PROVIDER"
)

func ParseParty(s string) (Party, error) {
	p := Party(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PartyBuyer, PartyProvider:
		return p, nil
	}
	return "", fmt.Errorf("unknown party %q", s)
}

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusAccepted  Status = "ACCEPTED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal — дальнейших переходов нет.
func (s Status) Terminal() bool { return s != StatusActive }

type OfferStatus string

const (
	OfferPending   OfferStatus = "PENDING"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferCountered OfferStatus = "COUNTERED"
	OfferExpired   OfferStatus = "EXPIRED"
)

type Offer struct {
	ID         string
	Seq        int
	OfferedBy  Party
	PriceCents int64
	Status     OfferStatus
	CreatedAt  time.Time
}

// Negotiation — снимок по значению. Движок отдаёт копии, их изменение не
// затрагивает состояние движка.
type Negotiation struct {
	ID         string
	SlotID     string
	BuyerID    string
	ProviderID string
	Status     Status

	// Диапазон цены для встречных провайдера, фиксируется при создании.
	MinPriceCents int64
	MaxPriceCents int64

	// CutoffAt = начало слота минус отсечка ставок. С этого момента действий нет.
	CutoffAt time.Time
	// ExpiresAt ставит первое встречное провайдера, дальше он не сдвигается.
	ExpiresAt *time.Time

	CancelReason string
	Offers       []Offer

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Live — индекс PENDING-предложения или -1.
func (n *Negotiation) Live() int {
	for i := len(n.Offers) - 1; i >= 0; i-- {
		if n.Offers[i].Status == OfferPending {
			return i
		}
	}
	return -1
}

// LiveOffer возвращает PENDING-предложение, если оно есть.
func (n Negotiation) LiveOffer() (Offer, bool) {
	if i := n.Live(); i >= 0 {
		return n.Offers[i], true
	}
	return Offer{}, false
}

// Deadline — ExpiresAt после первого встречного, до него отсечка ставок.
func (n Negotiation) Deadline() time.Time {
	if n.ExpiresAt != nil {
		return *n.ExpiresAt
	}
	return n.CutoffAt
}

// Clone глубоко копирует предложения и указатель на срок.
func (n Negotiation) Clone() Negotiation {
	out := n
	if n.ExpiresAt != nil {
		t := *n.ExpiresAt
		out.ExpiresAt = &t
	}
	out.Offers = make([]Offer, len(n.Offers))
	copy(out.Offers, n.Offers)
	return out
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

type Booking struct {
	ID            string
	NegotiationID string
	SlotID        string
	BuyerID       string
	ProviderID    string
	PriceCents    int64
	Status        BookingStatus
	CreatedAt     time.Time
	CancelledAt   *time.Time
}
