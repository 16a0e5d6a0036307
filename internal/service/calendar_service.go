package service

import (
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

// DefaultTimezone is the school time zone.
const DefaultTimezone = "Asia/Ho_Chi_Minh"

// Calendar resolves school dates in one time zone. Every service that turns
// a date into a weekday goes through it.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar loads the named zone, falling back to UTC+7 when it is unknown.
func NewCalendar(timezone string) *Calendar {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.FixedZone("ICT", 7*60*60)
	}
	return &Calendar{loc: loc, now: time.Now}
}

// Location returns the calendar's zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// Now returns the current instant in the school zone.
func (c *Calendar) Now() time.Time { return c.now().In(c.loc) }

// Today returns the current school date as YYYY-MM-DD.
func (c *Calendar) Today() string { return c.Now().Format(models.DateLayout) }

// Timestamp formats the current instant for record fields.
func (c *Calendar) Timestamp() string { return c.Now().Format(time.RFC3339) }

// Parse reads a YYYY-MM-DD date. Failures are validation errors.
func (c *Calendar) Parse(date string) (time.Time, error) {
	t, err := models.ParseDate(date, c.loc)
	if err != nil {
		return time.Time{}, appErrors.Validation(err, "date must be YYYY-MM-DD")
	}
	return t, nil
}

// Normalize rewrites a stored date, which may come back as a UTC timestamp,
// to YYYY-MM-DD in the school zone. Unparsable input is returned trimmed.
func (c *Calendar) Normalize(date string) string {
	t, err := models.ParseDate(date, c.loc)
	if err != nil {
		return strings.TrimSpace(date)
	}
	return t.Format(models.DateLayout)
}

// SchoolDay returns the Vietnamese weekday number of a date.
func (c *Calendar) SchoolDay(date string) (int, error) {
	t, err := c.Parse(date)
	if err != nil {
		return 0, err
	}
	return models.SchoolDay(t), nil
}

// Week returns the Monday and Sunday bounding t.
func (c *Calendar) Week(t time.Time) (time.Time, time.Time) {
	t = t.In(c.loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// InRange reports whether date falls within [from, to]. Empty bounds are open.
func (c *Calendar) InRange(date, from, to string) bool {
	d := c.Normalize(date)
	if from != "" && d < c.Normalize(from) {
		return false
	}
	if to != "" && d > c.Normalize(to) {
		return false
	}
	return true
}
