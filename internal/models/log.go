package models

// CompletionLog records whether a habit was completed on one local calendar
// date. At most one exists per (owner, habit, date).
type CompletionLog struct {
	ID        string `json:"-"`
	Owner     string `json:"owner"`
	HabitID   string `json:"habitId"`
	Date      string `json:"date"` // YYYY-MM-DD format
	Completed bool   `json:"completed"`
}

// LogsByHabit indexes the logs belonging to owner on date by habit id.
// When duplicates slipped in, the first one wins.
func LogsByHabit(logs []CompletionLog, owner, date string) map[string]CompletionLog {
	out := make(map[string]CompletionLog, len(logs))
	for _, l := range logs {
		if l.Owner != owner || l.Date != date {
			continue
		}
		if _, ok := out[l.HabitID]; !ok {
			out[l.HabitID] = l
		}
	}
	return out
}
