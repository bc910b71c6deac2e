package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Window — именованный интервал суток для фильтрации слотов.
type Window string

const (
	WindowMorning   Window = "Morning"
	WindowAfternoon Window = "Afternoon"
	WindowEvening   Window = "Evening"
	WindowCustom    Window = "Custom"
)

// Границы окон по местному времени, часы.
const (
	morningStartHour   = 9
	afternoonStartHour = 12
	eveningStartHour   = 16
	eveningEndHour     = 20
)

// ParseWindow принимает название окна без учёта регистра; пустая строка — Custom.
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "custom":
		return WindowCustom, nil
	case "morning":
		return WindowMorning, nil
	case "afternoon":
		return WindowAfternoon, nil
	case "evening":
		return WindowEvening, nil
	default:
		return "", fmt.Errorf("unknown time window %q", s)
	}
}

// Фиксированные смещения от UTC в часах. Летнее время не учитывается.
var cityOffsets = map[string]int{
	"new york":      -5,
	"brooklyn":      -5,
	"boston":        -5,
	"miami":         -5,
	"atlanta":       -5,
	"washington":    -5,
	"philadelphia":  -5,
	"chicago":       -6,
	"austin":        -6,
	"houston":       -6,
	"dallas":        -6,
	"denver":        -7,
	"phoenix":       -7,
	"los angeles":   -8,
	"san francisco": -8,
	"san diego":     -8,
	"seattle":       -8,
	"portland":      -8,
	"honolulu":      -10,
	"london":        0,
	"berlin":        1,
	"moscow":        3,
}

// CityOffset возвращает смещение от UTC для города; неизвестный город — UTC+0.
func CityOffset(city string) time.Duration {
	h, ok := cityOffsets[normalizeCity(city)]
	if !ok {
		return 0
	}
	return time.Duration(h) * time.Hour
}

// CityLocation возвращает фиксированную зону по смещению города.
func CityLocation(city string) *time.Location {
	off := CityOffset(city)
	return time.FixedZone(normalizeCity(city), int(off/time.Second))
}

// ResolveWindow переводит именованное окно в абсолютный интервал UTC для
// локальной даты ref в часовом поясе города. Custom не ограничивает выборку.
func ResolveWindow(city string, w Window, ref time.Time) TimeRange {
	var startHour, endHour int
	switch w {
	case WindowMorning:
		startHour, endHour = morningStartHour, afternoonStartHour
	case WindowAfternoon:
		startHour, endHour = afternoonStartHour, eveningStartHour
	case WindowEvening:
		startHour, endHour = eveningStartHour, eveningEndHour
	default:
		return Unbounded()
	}

	loc := CityLocation(city)
	y, m, d := ref.In(loc).Date()
	return TimeRange{
		Start: time.Date(y, m, d, startHour, 0, 0, 0, loc).UTC(),
		End:   time.Date(y, m, d, endHour, 0, 0, 0, loc).UTC(),
	}
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.Join(strings.Fields(city), " "))
}
