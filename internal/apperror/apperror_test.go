package apperror

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf_ThroughWrapping(t *testing.T) {
	base := Conflict("counter", "price out of range").WithNegotiation("n1").WithPrice(6000, 7000, 10000)
	wrapped := fmt.Errorf("adapter: %w", base)

	if got := KindOf(wrapped); got != KindConflict {
		t.Fatalf("KindOf = %q, want %q", got, KindConflict)
	}
	if !Is(wrapped, KindConflict) {
		t.Fatalf("expected Is(conflict) to be true")
	}
	if Is(wrapped, KindState) {
		t.Fatalf("expected Is(state) to be false")
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != "" {
		t.Fatalf("KindOf = %q, want empty", got)
	}
	if Is(nil, KindNotFound) {
		t.Fatalf("nil error must not match any kind")
	}
}

func TestError_MessageCarriesDetails(t *testing.T) {
	err := Conflict("counter", "price out of range").
		WithNegotiation("n1").
		WithSlot("s1").
		WithPrice(6000, 7000, 10000)

	msg := err.Error()
	for _, want := range []string{"counter:", "negotiation=n1", "slot=s1", "price=6000", "range=[7000,10000]"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q does not contain %q", msg, want)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("db down")
	err := NotFound("load slot", "slot not found").Wrap(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach the cause")
	}
}
