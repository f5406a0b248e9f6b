package stats

import (
	"fmt"
	"strings"
	"time"
)

// Period is the span shown by the progress view.
type Period int

const (
	Week Period = iota
	Month
)

func (p Period) String() string {
	if p == Month {
		return "month"
	}
	return "week"
}

func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "week", "w":
		return Week, nil
	case "month", "m":
		return Month, nil
	}
	return Week, fmt.Errorf("invalid period %q: expected week or month", s)
}

// PeriodDates lists the calendar days of the period containing anchor. A
// week runs Sunday to Saturday; a month covers every day of the month.
func PeriodDates(p Period, anchor time.Time) []time.Time {
	day := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, anchor.Location())

	var start time.Time
	var n int
	switch p {
	case Month:
		start = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		n = start.AddDate(0, 1, -1).Day()
	default:
		start = day.AddDate(0, 0, -int(day.Weekday()))
		n = 7
	}

	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// Shift moves anchor by n periods. Month shifts pin to the first of the
// month so that Jan 31 + 1 month lands in February.
func Shift(p Period, anchor time.Time, n int) time.Time {
	if p == Month {
		first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
		return first.AddDate(0, n, 0)
	}
	return anchor.AddDate(0, 0, 7*n)
}

// Label renders a heading such as "Oct 11 - Oct 17, 2026" or "October 2026".
func Label(p Period, anchor time.Time) string {
	if p == Month {
		return anchor.Format("January 2006")
	}
	dates := PeriodDates(Week, anchor)
	first, last := dates[0], dates[len(dates)-1]
	return fmt.Sprintf("%s - %s", first.Format("Jan 2"), last.Format("Jan 2, 2006"))
}
