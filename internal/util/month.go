package util

import "time"

// CurrentPeriod returns the UTC month and year containing now
func CurrentPeriod(now time.Time) (month, year int) {
	now = now.UTC()
	return int(now.Month()), now.Year()
}

// PreviousPeriod returns the month and year before the given one
func PreviousPeriod(month, year int) (int, int) {
	if month == 1 {
		return 12, year - 1
	}
	return month - 1, year
}

// IsPastPeriod reports whether month/year ends before the UTC month containing now
func IsPastPeriod(month, year int, now time.Time) bool {
	curMonth, curYear := CurrentPeriod(now)
	if year != curYear {
		return year < curYear
	}
	return month < curMonth
}
