package catalog

import (
	"testing"
	"time"
)

func testSlot() Slot {
	start := time.Date(2025, 5, 1, 14, 0, 0, 0, time.UTC)
	return Slot{
		ID:                  "s1",
		StartTime:           start,
		EndTime:             start.Add(time.Hour),
		Status:              SlotOpen,
		BasePriceCents:      10000,
		MaxDiscountFraction: 0.2,
		MinPriceCents:       7000,
	}
}

func TestDiscountedPrice_Rounding(t *testing.T) {
	cases := []struct {
		base     int64
		fraction float64
		want     int64
	}{
		{10000, 0.2, 8000},
		{12000, 0.15, 10200},
		{999, 0.5, 500}, // 499.5 rounds half away from zero
		{5000, 0, 5000},
		{5000, 1, 0},
		{3333, 0.333, 2223}, // 2223.111
	}
	for _, tc := range cases {
		if got := DiscountedPrice(tc.base, tc.fraction); got != tc.want {
			t.Fatalf("DiscountedPrice(%d, %v) = %d, want %d", tc.base, tc.fraction, got, tc.want)
		}
	}
}

func TestSlot_Prices(t *testing.T) {
	s := testSlot()
	if got := s.MaxDiscountedPriceCents(); got != 8000 {
		t.Fatalf("MaxDiscountedPriceCents = %d, want 8000", got)
	}
	if got := s.FloorPriceCents(); got != 7000 {
		t.Fatalf("FloorPriceCents = %d, want 7000", got)
	}
	if got := s.MaxPriceCents(); got != 10000 {
		t.Fatalf("MaxPriceCents = %d, want 10000", got)
	}

	s.MinPriceCents = 0
	if got := s.FloorPriceCents(); got != 8000 {
		t.Fatalf("FloorPriceCents without explicit floor = %d, want 8000", got)
	}
}

func TestSlot_Validate(t *testing.T) {
	if err := testSlot().Validate(); err != nil {
		t.Fatalf("expected valid slot, got %v", err)
	}

	bad := testSlot()
	bad.MinPriceCents = 9000
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error when floor exceeds discounted price")
	}

	bad = testSlot()
	bad.EndTime = bad.StartTime
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for empty time range")
	}

	bad = testSlot()
	bad.MaxDiscountFraction = 1.5
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for discount above 1")
	}
}

func TestParseCategory(t *testing.T) {
	got, err := ParseCategory("facials_and_skin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != CategoryFacialsAndSkin {
		t.Fatalf("got %q", got)
	}
	if _, err := ParseCategory("tattoo"); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestService_ValidateRejectsOverlap(t *testing.T) {
	a := testSlot()
	b := testSlot()
	b.ID = "b"
	b.StartTime = a.EndTime
	b.EndTime = a.EndTime.Add(time.Hour)

	svc := Service{Name: "Swedish", Slots: []Slot{a, b}}
	if err := svc.Validate(); err != nil {
		t.Fatalf("back-to-back slots must be valid, got %v", err)
	}

	b.StartTime = a.EndTime.Add(-time.Minute)
	svc.Slots = []Slot{a, b}
	if err := svc.Validate(); err == nil {
		t.Fatalf("expected overlap error")
	}
}
