// Package catalog is the read-only projection of providers, their services
// and open slots that discovery and negotiation work against.
package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Leganyst/openslots/internal/calendar"
)

// Category of a service.
type Category string

const (
	CategoryMassage        Category = "MASSAGE"
	CategoryAcupuncture    Category = "ACUPUNCTURE"
	CategoryNails          Category = "NAILS"
	CategoryHair           Category = "HAIR"
	CategoryFacialsAndSkin Category = "FACIALS_AND_SKIN"
	CategoryLashesAndBrows Category = "LASHES_AND_BROWS"
)

var categories = []Category{
	CategoryMassage,
	CategoryAcupuncture,
	CategoryNails,
	CategoryHair,
	CategoryFacialsAndSkin,
	CategoryLashesAndBrows,
}

// ParseCategory accepts the enum value in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown service category %q", s)
}

type SlotStatus string

const (
	SlotOpen      SlotStatus = "OPEN"
	SlotBooked    SlotStatus = "BOOKED"
	SlotWithdrawn SlotStatus = "WITHDRAWN"
)

type Provider struct {
	ID        string
	Name      string
	Rating    float64
	Address   string
	City      string
	State     string
	ZipCode   string
	Latitude  *float64
	Longitude *float64
	Services  []Service
}

type Service struct {
	ID          string
	ProviderID  string
	Category    Category
	Name        string
	DurationMin int
	Slots       []Slot
}

type Slot struct {
	ID                  string
	ServiceID           string
	ProviderID          string
	StartTime           time.Time
	EndTime             time.Time
	Status              SlotStatus
	BasePriceCents      int64
	MaxDiscountFraction float64
	// MinPriceCents is the provider's floor. Zero means the floor equals the
	// maximum discounted price.
	MinPriceCents int64
	// ProviderInactive is set when the owning provider was deactivated.
	// Such a slot takes no new bids and cannot be booked.
	ProviderInactive bool
}

// MaxDiscountedPriceCents = round(base * (1 - maxDiscount)), half away from zero.
func (s Slot) MaxDiscountedPriceCents() int64 {
	return DiscountedPrice(s.BasePriceCents, s.MaxDiscountFraction)
}

// FloorPriceCents is the lowest price the provider may counter with.
func (s Slot) FloorPriceCents() int64 {
	if s.MinPriceCents > 0 {
		return s.MinPriceCents
	}
	return s.MaxDiscountedPriceCents()
}

// MaxPriceCents is the undiscounted base price.
func (s Slot) MaxPriceCents() int64 { return s.BasePriceCents }

// Validate checks min <= maxDiscounted <= max and a well-formed time range.
func (s Slot) Validate() error {
	if _, err := calendar.NewTimeRange(s.StartTime, s.EndTime); err != nil {
		return fmt.Errorf("slot %s: %w", s.ID, err)
	}
	if s.BasePriceCents <= 0 {
		return fmt.Errorf("slot %s: base price must be positive", s.ID)
	}
	if s.MaxDiscountFraction < 0 || s.MaxDiscountFraction > 1 {
		return fmt.Errorf("slot %s: max discount %v outside [0,1]", s.ID, s.MaxDiscountFraction)
	}
	if discounted := s.MaxDiscountedPriceCents(); s.FloorPriceCents() > discounted {
		return fmt.Errorf("slot %s: floor %d above discounted price %d", s.ID, s.FloorPriceCents(), discounted)
	}
	return nil
}

// Validate checks every slot and rejects slots of the same service whose
// time ranges overlap.
func (svc Service) Validate() error {
	seen := make([]calendar.TimeRange, 0, len(svc.Slots))
	for _, s := range svc.Slots {
		if err := s.Validate(); err != nil {
			return err
		}
		tr, _ := calendar.NewTimeRange(s.StartTime, s.EndTime)
		if overlap, conflicts := calendar.HasOverlap(tr, seen); overlap {
			return fmt.Errorf("service %q: slot %s overlaps %s-%s", svc.Name, s.ID,
				conflicts[0].Start.Format(time.RFC3339), conflicts[0].End.Format(time.RFC3339))
		}
		seen = append(seen, tr)
	}
	return nil
}

// DiscountedPrice applies a fractional discount to a price in cents.
func DiscountedPrice(baseCents int64, fraction float64) int64 {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(fraction))
	return decimal.NewFromInt(baseCents).Mul(factor).Round(0).IntPart()
}

// Snapshot is an immutable view of the catalog for one query. Providers keep
// the iteration order of the underlying store.
type Snapshot struct {
	Providers []Provider
}

// Query narrows what a catalog loader needs to return. Loaders may return
// more than asked; discovery filters again.
type Query struct {
	Category Category
	City     string
}
