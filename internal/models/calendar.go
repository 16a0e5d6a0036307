package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// AcademicYears lists the school years offered in forms and reports.
var AcademicYears = []string{"2023-2024", "2024-2025", "2025-2026"}

// SchoolDay maps a date to the Vietnamese weekday number: Monday is 2,
// Saturday is 7 and Sunday is 8.
func SchoolDay(t time.Time) int {
	wd := t.Weekday()
	if wd == time.Sunday {
		return 8
	}
	return int(wd) + 1
}

// DayLabel returns "Thứ 2".."Thứ 7" or "Chủ nhật".
func DayLabel(day int) string {
	if day == 8 {
		return "Chủ nhật"
	}
	return fmt.Sprintf("Thứ %d", day)
}

// ParseDate parses YYYY-MM-DD in loc. Timestamps with a time part are
// accepted and truncated to their date.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			ts = ts.In(loc)
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc), nil
		}
		s = s[:len(DateLayout)]
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Session is the half-day a period belongs to.
type Session string

const (
	SessionMorning   Session = "Morning"
	SessionAfternoon Session = "Afternoon"
	// SessionAllDay is only valid when selecting slots.
	SessionAllDay Session = "AllDay"
)

// Valid reports whether s names a concrete half-day.
func (s Session) Valid() bool {
	return s == SessionMorning || s == SessionAfternoon
}

// Includes reports whether a selector matches a concrete session.
func (s Session) Includes(other Session) bool {
	return s == SessionAllDay || s == other
}

// Order sorts Morning before Afternoon.
func (s Session) Order() int {
	if s == SessionAfternoon {
		return 1
	}
	return 0
}

// SessionForPeriod guesses the session of legacy records that never stored
// one: periods up to 5 are morning.
func SessionForPeriod(period int) Session {
	if period <= 5 {
		return SessionMorning
	}
	return SessionAfternoon
}
