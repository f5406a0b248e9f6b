package stats

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/julianstephens/habitual/internal/models"
)

const today = "2026-10-14"

func habits(ids ...string) []models.Habit {
	out := make([]models.Habit, len(ids))
	for i, id := range ids {
		out[i] = models.Habit{ID: id}
	}
	return out
}

func TestCurrentRate(t *testing.T) {
	tests := []struct {
		name string
		due  []models.Habit
		logs []models.CompletionLog
		want int
	}{
		{
			name: "nothing due is zero",
			due:  nil,
			logs: []models.CompletionLog{{HabitID: "h1", Date: today, Completed: true}},
			want: 0,
		},
		{
			name: "two due none completed",
			due:  habits("h1", "h2"),
			logs: []models.CompletionLog{{HabitID: "h1", Date: today}, {HabitID: "h2", Date: today}},
			want: 0,
		},
		{
			name: "one of two",
			due:  habits("h1", "h2"),
			logs: []models.CompletionLog{{HabitID: "h1", Date: today, Completed: true}, {HabitID: "h2", Date: today}},
			want: 50,
		},
		{
			name: "one of three rounds down",
			due:  habits("h1", "h2", "h3"),
			logs: []models.CompletionLog{{HabitID: "h1", Date: today, Completed: true}},
			want: 33,
		},
		{
			name: "two of three rounds up",
			due:  habits("h1", "h2", "h3"),
			logs: []models.CompletionLog{
				{HabitID: "h1", Date: today, Completed: true},
				{HabitID: "h2", Date: today, Completed: true},
			},
			want: 67,
		},
		{
			name: "completed log for a habit no longer due does not count",
			due:  habits("h1"),
			logs: []models.CompletionLog{{HabitID: "gone", Date: today, Completed: true}},
			want: 0,
		},
		{
			name: "yesterday's completion does not count",
			due:  habits("h1"),
			logs: []models.CompletionLog{{HabitID: "h1", Date: "2026-10-13", Completed: true}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CurrentRate(tt.due, tt.logs, today)
			if got != tt.want {
				t.Errorf("CurrentRate() = %d, want %d", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("CurrentRate() = %d out of range", got)
			}
		})
	}
}

func TestHistoricalRate(t *testing.T) {
	logs := []models.CompletionLog{
		{HabitID: "h1", Date: today, Completed: true},
		{HabitID: "h2", Date: today, Completed: true},
		{HabitID: "h3", Date: today, Completed: true},
		{HabitID: "h4", Date: today},
		{HabitID: "h1", Date: "2026-10-13"},
	}

	if got := HistoricalRate(logs, today); got != 75 {
		t.Errorf("HistoricalRate(today) = %d, want 75", got)
	}
	if got := HistoricalRate(logs, "2026-10-13"); got != 0 {
		t.Errorf("HistoricalRate(yesterday) = %d, want 0", got)
	}
	if got := HistoricalRate(logs, "2026-01-01"); got != 0 {
		t.Errorf("HistoricalRate(no logs) = %d, want 0", got)
	}
}

func TestHeatMap(t *testing.T) {
	logs := []models.CompletionLog{
		{HabitID: "h1", Date: "2026-10-12", Completed: true},
		{HabitID: "h2", Date: "2026-10-12"},
		{HabitID: "h1", Date: "2026-10-13", Completed: true},
	}
	dates := []time.Time{
		time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
	}

	want := []DayCell{
		{Date: "2026-10-12", Rate: 50, Logs: 2},
		{Date: "2026-10-13", Rate: 100, Logs: 1},
		{Date: "2026-10-14", Rate: 0, Logs: 0},
	}
	if diff := cmp.Diff(want, HeatMap(logs, dates)); diff != "" {
		t.Errorf("HeatMap() mismatch (-want +got):\n%s", diff)
	}
}

func TestIntensity(t *testing.T) {
	tests := map[int]float64{-5: 0, 0: 0, 25: 0.25, 100: 1, 120: 1}
	for rate, want := range tests {
		if got := Intensity(rate); got != want {
			t.Errorf("Intensity(%d) = %v, want %v", rate, got, want)
		}
	}
}
