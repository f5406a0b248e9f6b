package stats

import (
	"testing"
	"time"
)

func TestPeriodDatesWeekStartsSunday(t *testing.T) {
	wednesday := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)
	dates := PeriodDates(Week, wednesday)

	if len(dates) != 7 {
		t.Fatalf("len = %d, want 7", len(dates))
	}
	if dates[0].Weekday() != time.Sunday || dates[0].Day() != 11 {
		t.Errorf("week starts %s %d, want Sunday 11", dates[0].Weekday(), dates[0].Day())
	}
	if dates[6].Weekday() != time.Saturday || dates[6].Day() != 17 {
		t.Errorf("week ends %s %d, want Saturday 17", dates[6].Weekday(), dates[6].Day())
	}

	sunday := time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC)
	if got := PeriodDates(Week, sunday)[0]; !got.Equal(sunday) {
		t.Errorf("Sunday anchor should start its own week, got %v", got)
	}
}

func TestPeriodDatesMonth(t *testing.T) {
	tests := []struct {
		anchor time.Time
		days   int
	}{
		{time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), 31},
		{time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), 28},
		{time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), 29},
		{time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), 30},
	}

	for _, tt := range tests {
		dates := PeriodDates(Month, tt.anchor)
		if len(dates) != tt.days {
			t.Errorf("%s: len = %d, want %d", tt.anchor.Format("2006-01"), len(dates), tt.days)
			continue
		}
		if dates[0].Day() != 1 || dates[len(dates)-1].Month() != tt.anchor.Month() {
			t.Errorf("%s: wrong bounds %v..%v", tt.anchor.Format("2006-01"), dates[0], dates[len(dates)-1])
		}
	}
}

func TestShift(t *testing.T) {
	jan31 := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	if got := Shift(Month, jan31, 1); got.Month() != time.February {
		t.Errorf("Shift(Month, Jan 31, 1) = %v, want February", got)
	}
	if got := Shift(Month, jan31, -1); got.Month() != time.December || got.Year() != 2025 {
		t.Errorf("Shift(Month, Jan 31, -1) = %v, want December 2025", got)
	}
	if got := Shift(Week, jan31, -2); got.Day() != 17 {
		t.Errorf("Shift(Week, Jan 31, -2) = %v, want Jan 17", got)
	}
}

func TestParsePeriodAndLabel(t *testing.T) {
	if p, err := ParsePeriod("Month"); err != nil || p != Month {
		t.Errorf("ParsePeriod(Month) = %v, %v", p, err)
	}
	if _, err := ParsePeriod("year"); err == nil {
		t.Error("expected error for year")
	}

	anchor := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	if got := Label(Week, anchor); got != "Oct 11 - Oct 17, 2026" {
		t.Errorf("Label(Week) = %q", got)
	}
	if got := Label(Month, anchor); got != "October 2026" {
		t.Errorf("Label(Month) = %q", got)
	}
}
