package calendar

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

//
// TimeRange
//

func TestNewTimeRange_Invalid(t *testing.T) {
	if _, err := NewTimeRange(time.Time{}, time.Time{}); err != ErrInvalidTimeRange {
		t.Fatalf("expected ErrInvalidTimeRange for zero times, got %v", err)
	}
	start := mustTime(t, 2025, 1, 1, 10, 0)
	if _, err := NewTimeRange(start, start); err != ErrInvalidTimeRange {
		t.Fatalf("expected ErrInvalidTimeRange for empty range, got %v", err)
	}
}

func TestTimeRange_ContainsHalfOpen(t *testing.T) {
	tr, err := NewTimeRange(mustTime(t, 2025, 1, 1, 9, 0), mustTime(t, 2025, 1, 1, 12, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tr.Contains(mustTime(t, 2025, 1, 1, 9, 0)) {
		t.Fatalf("start boundary must be included")
	}
	if tr.Contains(mustTime(t, 2025, 1, 1, 12, 0)) {
		t.Fatalf("end boundary must be excluded")
	}
	if tr.Contains(mustTime(t, 2025, 1, 1, 8, 59)) {
		t.Fatalf("instant before start must be excluded")
	}
}

func TestTimeRange_Unbounded(t *testing.T) {
	tr := Unbounded()
	if !tr.IsUnbounded() {
		t.Fatalf("expected unbounded")
	}
	for _, ts := range []time.Time{
		mustTime(t, 1970, 1, 1, 0, 0),
		mustTime(t, 2999, 12, 31, 23, 59),
	} {
		if !tr.Contains(ts) {
			t.Fatalf("unbounded range must contain %v", ts)
		}
	}
}

//
// Windows
//

func TestParseWindow(t *testing.T) {
	cases := map[string]Window{
		"":          WindowCustom,
		"custom":    WindowCustom,
		"Morning":   WindowMorning,
		"AFTERNOON": WindowAfternoon,
		" evening ": WindowEvening,
	}
	for in, want := range cases {
		got, err := ParseWindow(in)
		if err != nil {
			t.Fatalf("ParseWindow(%q): unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseWindow(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseWindow("night"); err == nil {
		t.Fatalf("expected error for unknown window")
	}
}

func TestCityOffset(t *testing.T) {
	if got := CityOffset("  New   York "); got != -5*time.Hour {
		t.Fatalf("New York offset = %v, want -5h", got)
	}
	if got := CityOffset("SAN FRANCISCO"); got != -8*time.Hour {
		t.Fatalf("San Francisco offset = %v, want -8h", got)
	}
	if got := CityOffset("Atlantis"); got != 0 {
		t.Fatalf("unknown city offset = %v, want 0", got)
	}
}

func TestResolveWindow_NewYorkMorning(t *testing.T) {
	// 2025-03-10 15:00 UTC is 10:00 local in New York (UTC-5).
	ref := mustTime(t, 2025, 3, 10, 15, 0)
	tr := ResolveWindow("new york", WindowMorning, ref)

	if !tr.Start.Equal(mustTime(t, 2025, 3, 10, 14, 0)) {
		t.Fatalf("start = %v, want 14:00 UTC", tr.Start)
	}
	if !tr.End.Equal(mustTime(t, 2025, 3, 10, 17, 0)) {
		t.Fatalf("end = %v, want 17:00 UTC", tr.End)
	}
}

func TestResolveWindow_UsesLocalDate(t *testing.T) {
	// 03:00 UTC on the 11th is still the 10th in San Francisco (UTC-8).
	ref := mustTime(t, 2025, 3, 11, 3, 0)
	tr := ResolveWindow("San Francisco", WindowEvening, ref)

	if !tr.Start.Equal(mustTime(t, 2025, 3, 11, 0, 0)) {
		t.Fatalf("start = %v, want 2025-03-11 00:00 UTC (16:00 local on the 10th)", tr.Start)
	}
	if !tr.End.Equal(mustTime(t, 2025, 3, 11, 4, 0)) {
		t.Fatalf("end = %v, want 2025-03-11 04:00 UTC", tr.End)
	}
}

func TestResolveWindow_BoundaryBelongsToLaterWindow(t *testing.T) {
	ref := mustTime(t, 2025, 3, 10, 0, 0)
	noon := mustTime(t, 2025, 3, 10, 12, 0) // unknown city -> UTC

	morning := ResolveWindow("Nowhere", WindowMorning, ref)
	afternoon := ResolveWindow("Nowhere", WindowAfternoon, ref)

	if morning.Contains(noon) {
		t.Fatalf("12:00 must not belong to Morning")
	}
	if !afternoon.Contains(noon) {
		t.Fatalf("12:00 must belong to Afternoon")
	}
}

func TestResolveWindow_Custom(t *testing.T) {
	tr := ResolveWindow("chicago", WindowCustom, mustTime(t, 2025, 1, 1, 0, 0))
	if !tr.IsUnbounded() {
		t.Fatalf("custom window must be unbounded, got %+v", tr)
	}
}

func TestHasOverlap(t *testing.T) {
	r := func(h1, h2 int) TimeRange {
		tr, err := NewTimeRange(mustTime(t, 2025, 1, 1, h1, 0), mustTime(t, 2025, 1, 1, h2, 0))
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		return tr
	}
	existing := []TimeRange{r(9, 10), r(12, 13)}

	if has, _ := HasOverlap(r(10, 12), existing); has {
		t.Fatalf("touching ranges must not overlap")
	}
	has, conflicts := HasOverlap(r(9, 13), existing)
	if !has || len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %v", conflicts)
	}
}

//
// Paginate
//

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	p := Paginate(items, 2, 2)
	if len(p.Items) != 2 || p.Items[0] != 3 || !p.HasNext || p.Total != 5 {
		t.Fatalf("unexpected page: %+v", p)
	}

	last := Paginate(items, 3, 2)
	if len(last.Items) != 1 || last.HasNext {
		t.Fatalf("unexpected last page: %+v", last)
	}

	beyond := Paginate(items, 10, 2)
	if len(beyond.Items) != 0 {
		t.Fatalf("expected empty page beyond the end, got %+v", beyond)
	}

	all := Paginate(items, 0, 0)
	if len(all.Items) != 5 || all.HasNext {
		t.Fatalf("expected single page with everything, got %+v", all)
	}
}
