package calendar

import (
	"errors"
	"time"
)

var ErrInvalidTimeRange = errors.New("invalid time range")

// TimeRange представляет временной интервал [Start, End).
// Нулевая граница означает открытую сторону: TimeRange{} покрывает всю ось.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange создаёт ограниченный интервал и проверяет, что End > Start.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() {
		return TimeRange{}, ErrInvalidTimeRange
	}
	if !end.After(start) {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Start: start.UTC(), End: end.UTC()}, nil
}

// Unbounded возвращает интервал (-inf, +inf).
func Unbounded() TimeRange { return TimeRange{} }

// IsUnbounded — ни одна сторона не ограничена.
func (tr TimeRange) IsUnbounded() bool {
	return tr.Start.IsZero() && tr.End.IsZero()
}

// Contains включает Start и исключает End: момент ровно на границе
// принадлежит интервалу, который с неё начинается.
func (tr TimeRange) Contains(t time.Time) bool {
	if !tr.Start.IsZero() && t.Before(tr.Start) {
		return false
	}
	if !tr.End.IsZero() && !t.Before(tr.End) {
		return false
	}
	return true
}

// Overlaps — пересечение полуоткрытых интервалов; касание концами не считается.
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return tr.Start.Before(other.End) && other.Start.Before(tr.End)
}

// HasOverlap проверяет, пересекается ли newRange с existing, и возвращает
// все конфликтующие интервалы.
func HasOverlap(newRange TimeRange, existing []TimeRange) (bool, []TimeRange) {
	var conflicts []TimeRange
	for _, tr := range existing {
		if newRange.Overlaps(tr) {
			conflicts = append(conflicts, tr)
		}
	}
	return len(conflicts) > 0, conflicts
}
