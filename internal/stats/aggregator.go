// Package stats derives completion percentages and heat-map periods from
// completion logs. Everything here is pure.
package stats

import (
	"math"
	"time"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
)

// CurrentRate is the share of today's due habits whose log is completed.
// No habits due is 0, not 100.
func CurrentRate(due []models.Habit, logs []models.CompletionLog, today string) int {
	if len(due) == 0 {
		return 0
	}
	completed := make(map[string]bool, len(logs))
	for _, l := range logs {
		if l.Date == today && l.Completed {
			completed[l.HabitID] = true
		}
	}
	k := 0
	for _, h := range due {
		if completed[h.ID] {
			k++
		}
	}
	return percent(k, len(due))
}

// HistoricalRate is the share of completed logs among all logs dated date.
// The denominator is the logs that exist, not the habits that were due.
func HistoricalRate(logs []models.CompletionLog, date string) int {
	total, completed := 0, 0
	for _, l := range logs {
		if l.Date != date {
			continue
		}
		total++
		if l.Completed {
			completed++
		}
	}
	if total == 0 {
		return 0
	}
	return percent(completed, total)
}

func percent(k, n int) int {
	return int(math.Round(100 * float64(k) / float64(n)))
}

// DayCell is one square of the heat map.
type DayCell struct {
	Date string
	Rate int
	Logs int
}

// HeatMap computes HistoricalRate for each date.
func HeatMap(logs []models.CompletionLog, dates []time.Time) []DayCell {
	byDate := make(map[string][]models.CompletionLog)
	for _, l := range logs {
		byDate[l.Date] = append(byDate[l.Date], l)
	}

	cells := make([]DayCell, 0, len(dates))
	for _, d := range dates {
		key := d.Format(constants.DateFormat)
		day := byDate[key]
		cells = append(cells, DayCell{
			Date: key,
			Rate: HistoricalRate(day, key),
			Logs: len(day),
		})
	}
	return cells
}

// Intensity maps a rate to 0..1 for shading.
func Intensity(rate int) float64 {
	switch {
	case rate <= 0:
		return 0
	case rate >= 100:
		return 1
	}
	return float64(rate) / 100
}
