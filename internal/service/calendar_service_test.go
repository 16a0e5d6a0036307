package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

func TestCalendarSchoolDay(t *testing.T) {
	cal := NewCalendar(DefaultTimezone)
	cases := map[string]int{
		"2024-09-09": 2,
		"2024-09-14": 7,
		"2024-09-15": 8,
	}
	for date, want := range cases {
		got, err := cal.SchoolDay(date)
		require.NoError(t, err, date)
		assert.Equal(t, want, got, date)
	}

	_, err := cal.SchoolDay("15/09/2024")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCalendarNormalizeAndRange(t *testing.T) {
	cal := NewCalendar(DefaultTimezone)

	// Sheets hands dates back as UTC midnight of the previous day.
	assert.Equal(t, "2024-09-10", cal.Normalize("2024-09-09T17:00:00.000Z"))
	assert.Equal(t, "2024-09-10", cal.Normalize(" 2024-09-10 "))
	assert.Equal(t, "garbage", cal.Normalize("garbage "))

	assert.True(t, cal.InRange("2024-09-10", "", ""))
	assert.True(t, cal.InRange("2024-09-10", "2024-09-10", "2024-09-10"))
	assert.False(t, cal.InRange("2024-09-10", "2024-09-11", ""))
	assert.False(t, cal.InRange("2024-09-10", "", "2024-09-09"))
}

func TestCalendarWeekAndFallbackZone(t *testing.T) {
	cal := fixedCalendar(t, "2024-09-15T23:00:00+07:00")
	start, end := cal.Week(cal.Now())
	assert.Equal(t, "2024-09-09", start.Format("2006-01-02"))
	assert.Equal(t, "2024-09-15", end.Format("2006-01-02"))
	assert.Equal(t, "2024-09-15", cal.Today())

	unknown := NewCalendar("Mars/Olympus")
	_, offset := unknown.Now().Zone()
	assert.Equal(t, 7*3600, offset)
}
