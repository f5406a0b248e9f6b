package session

import (
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/stats"
	"github.com/julianstephens/habitual/internal/utils"
)

// HabitStatus is one row of today's list.
type HabitStatus struct {
	Habit     models.Habit
	Completed bool
	LogID     string
}

// View is what the presentation layer renders. The zero View means no one
// is signed in.
type View struct {
	Owner  string
	Date   string
	Habits []HabitStatus
	Rate   int
	// All is every habit of the owner, due today or not, in reminder order.
	All []models.Habit
}

func (v View) SignedIn() bool { return v.Owner != "" }

func buildView(owner, today string, all, due []models.Habit, logs []models.CompletionLog) View {
	byHabit := models.LogsByHabit(logs, owner, today)
	sorted := append([]models.Habit(nil), all...)
	utils.SortByReminder(sorted)
	rows := make([]HabitStatus, 0, len(due))
	for _, h := range due {
		row := HabitStatus{Habit: h}
		if l, ok := byHabit[h.ID]; ok {
			row.Completed = l.Completed
			row.LogID = l.ID
		}
		rows = append(rows, row)
	}
	return View{
		Owner:  owner,
		Date:   today,
		Habits: rows,
		Rate:   stats.CurrentRate(due, logs, today),
		All:    sorted,
	}
}

// mergeCreated adds freshly created logs to a snapshot until the next
// subscription delivery replaces it.
func mergeCreated(logs, created []models.CompletionLog) []models.CompletionLog {
	if len(created) == 0 {
		return logs
	}
	seen := make(map[string]bool, len(logs))
	for _, l := range logs {
		seen[l.HabitID] = true
	}
	out := append([]models.CompletionLog(nil), logs...)
	for _, l := range created {
		if !seen[l.HabitID] {
			out = append(out, l)
		}
	}
	return out
}

// latest replaces any pending value in a size-one channel.
func latest[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
