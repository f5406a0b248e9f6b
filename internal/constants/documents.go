package constants

// Collections in the document store
const (
	CollectionHabits = "habits"
	CollectionLogs   = "habit_logs"
)

// Document field names. They double as filter keys.
const (
	FieldOwner     = "owner"
	FieldTitle     = "title"
	FieldCategory  = "category"
	FieldSchedule  = "schedule"
	FieldReminder  = "reminder"
	FieldCreatedAt = "createdAt"
	FieldHabitID   = "habitId"
	FieldDate      = "date"
	FieldCompleted = "completed"
)

// LogUniqueIndex is the uniqueness backstop on completion logs.
const LogUniqueIndex = "habit_logs_owner_habit_date"
