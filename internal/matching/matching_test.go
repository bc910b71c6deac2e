package matching

import (
	"math"
	"testing"

	"github.com/Leganyst/openslots/internal/discovery"
)

func TestLikelihood_Bands(t *testing.T) {
	cases := []struct {
		bid, min, max float64
		want          MatchLikelihood
	}{
		{100, 70, 100, VeryHigh},
		{150, 70, 100, VeryHigh},
		{85, 70, 100, High},
		{70, 70, 100, High}, // bid == min is High
		{65, 70, 100, Low},
		{63, 70, 100, Low}, // exactly 0.9 * min
		{62.999, 70, 100, VeryLow},
		{62, 70, 100, VeryLow},
		{8500, 7000, 10000, High},
		{69.5, 70, 100, Low},
		{99.99, 70, 100, High},
		// не-конечные значения
		{math.Inf(1), 70, 100, VeryHigh},
		{math.NaN(), 70, 100, VeryLow},
		{85, math.NaN(), 100, VeryLow},
		{85, 70, math.NaN(), VeryLow},
		{85, 70, math.Inf(1), High},
		{65, 70, math.Inf(1), Low},
		{85, math.Inf(-1), 100, High},
		{85, math.Inf(1), math.Inf(1), VeryLow},
		{math.Inf(1), math.Inf(1), math.Inf(1), VeryHigh},
		{85, 70, math.Inf(-1), VeryHigh},
		{85, math.Inf(-1), math.Inf(-1), VeryHigh},
		{math.Inf(-1), 70, 100, VeryLow},
	}
	for _, tc := range cases {
		if got := Likelihood(tc.bid, tc.min, tc.max); got != tc.want {
			t.Fatalf("Likelihood(%v, %v, %v) = %s, want %s", tc.bid, tc.min, tc.max, got, tc.want)
		}
	}
}

func TestLikelihood_NonPositiveBid(t *testing.T) {
	for _, bid := range []float64{0, -1, -100} {
		if got := Likelihood(bid, 0, 0); got != VeryLow {
			t.Fatalf("Likelihood(%v, 0, 0) = %s, want VeryLow", bid, got)
		}
	}
}

func TestLikelihood_InvertedRange(t *testing.T) {
	if got := Likelihood(100, 120, 100); got != VeryHigh {
		t.Fatalf("bid at max with inverted range = %s, want VeryHigh", got)
	}
	if got := Likelihood(10, 120, 100); got != High {
		t.Fatalf("bid below max with inverted range = %s, want High", got)
	}
}

func results() []discovery.ProviderResult {
	return []discovery.ProviderResult{
		{ProviderID: "p1", Slots: []discovery.SlotResult{
			{SlotID: "a", MaxDiscountedPriceCents: 9000},
			{SlotID: "b", MaxDiscountedPriceCents: 11000},
		}},
		{ProviderID: "p2", Slots: []discovery.SlotResult{
			{SlotID: "c", MaxDiscountedPriceCents: 10400},
		}},
	}
}

func TestBestOffer_Closest(t *testing.T) {
	sel, ok := BestOffer(results(), 10500)
	if !ok {
		t.Fatalf("expected a selection")
	}
	if sel.ProviderID != "p2" || sel.SlotID != "c" {
		t.Fatalf("got %+v, want p2/c", sel)
	}
}

func TestBestOffer_TieGoesToLowerPrice(t *testing.T) {
	// 10000 is 1000 away from both 9000 and 11000; drop c (10400) first.
	rs := results()
	rs[1].Slots = nil
	sel, _ := BestOffer(rs, 10000)
	if sel.SlotID != "a" || sel.PriceCents != 9000 {
		t.Fatalf("tie must pick the lower price, got %+v", sel)
	}

	// Reversed order must not change the choice.
	reversed := []discovery.ProviderResult{
		{ProviderID: "p1", Slots: []discovery.SlotResult{rs[0].Slots[1], rs[0].Slots[0]}},
	}
	sel, _ = BestOffer(reversed, 10000)
	if sel.SlotID != "a" {
		t.Fatalf("tie must pick the lower price regardless of order, got %+v", sel)
	}
}

func TestBestOffer_Empty(t *testing.T) {
	if _, ok := BestOffer(nil, 100); ok {
		t.Fatalf("expected no selection for empty results")
	}
	if _, ok := BestOffer([]discovery.ProviderResult{{ProviderID: "p"}}, 100); ok {
		t.Fatalf("expected no selection when providers have no slots")
	}
}

func TestBestOffer_Unique(t *testing.T) {
	rs := results()
	first, _ := BestOffer(rs, 9999)
	for i := 0; i < 10; i++ {
		again, _ := BestOffer(rs, 9999)
		if again != first {
			t.Fatalf("selection changed between runs: %+v vs %+v", first, again)
		}
	}
}
