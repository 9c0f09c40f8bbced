package domain

import (
	"fmt"
	"time"
)

// CalendarDay is the UTC calendar-day key shared by occurrence generation,
// reconciliation and the merge step.
type CalendarDay struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the UTC calendar day containing t
func DayOf(t time.Time) CalendarDay {
	y, m, d := t.UTC().Date()
	return CalendarDay{Year: y, Month: m, Day: d}
}

func (d CalendarDay) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Start returns midnight UTC of the day
func (d CalendarDay) Start() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// MonthBounds returns the first and last instant of a UTC calendar month
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}
