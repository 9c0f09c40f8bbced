package recurrence

import (
	"fmt"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/teambition/rrule-go"
)

// Window is a closed time interval; both ends are inclusive
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthWindow returns the window covering a UTC calendar month
func MonthWindow(year int, month time.Month) Window {
	start, end := domain.MonthBounds(year, month)
	return Window{Start: start, End: end}
}

// DaysWindow returns [from, from+days]
func DaysWindow(from time.Time, days int) Window {
	from = from.UTC()
	return Window{Start: from, End: from.AddDate(0, 0, days)}
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Generate expands ruleStr anchored at anchor into the occurrences that fall in
// window. COUNT is always counted from anchor, never from the window start.
// endDate, when set, caps the series like UNTIL does. At most one occurrence
// per UTC calendar day is returned, in ascending order.
func Generate(ruleStr string, anchor time.Time, endDate *time.Time, window Window) ([]time.Time, error) {
	opt, err := parseOption(ruleStr)
	if err != nil {
		return nil, err
	}
	if _, ok := fromRRuleFreq[opt.Freq]; !ok {
		return nil, fmt.Errorf("%w: frequency %s", domain.ErrInvalidRule, opt.Freq)
	}

	anchor = anchor.UTC()
	if anchor.After(window.End) {
		return []time.Time{}, nil
	}

	upper := window.End
	if !opt.Until.IsZero() && opt.Until.Before(upper) {
		upper = opt.Until
	}
	if endDate != nil && endDate.Before(upper) {
		upper = *endDate
	}
	if upper.Before(window.Start) {
		return []time.Time{}, nil
	}

	opt.Dtstart = anchor
	if opt.Interval <= 0 {
		opt.Interval = 1
	}
	clampToMonthEnd(opt, anchor)

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRule, err)
	}

	seen := make(map[domain.CalendarDay]struct{})
	occurrences := []time.Time{}
	for _, t := range rule.Between(window.Start, upper, true) {
		t = t.UTC()
		day := domain.DayOf(t)
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		occurrences = append(occurrences, t)
	}
	return occurrences, nil
}

// clampToMonthEnd makes monthly and yearly series anchored on the 29th-31st
// fall on the last day of shorter months instead of skipping them. Rules that
// already carry explicit BY* parts are left alone.
func clampToMonthEnd(opt *rrule.ROption, anchor time.Time) {
	if opt.Freq != rrule.MONTHLY && opt.Freq != rrule.YEARLY {
		return
	}
	if len(opt.Bymonthday) > 0 || len(opt.Byweekday) > 0 || len(opt.Bysetpos) > 0 ||
		len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 || len(opt.Bymonth) > 0 {
		return
	}
	day := anchor.Day()
	if day <= 28 {
		return
	}
	for d := 28; d <= day; d++ {
		opt.Bymonthday = append(opt.Bymonthday, d)
	}
	opt.Bysetpos = []int{-1}
	if opt.Freq == rrule.YEARLY {
		opt.Bymonth = []int{int(anchor.Month())}
	}
}
