package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitual/internal/constants"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/identity"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/session"
	"github.com/julianstephens/habitual/internal/storage/memory"
	"github.com/julianstephens/habitual/internal/tui/components/habits"
	"github.com/julianstephens/habitual/internal/tui/components/today"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	mgr := session.NewManager(session.Config{Store: memory.New(), Location: time.UTC}, identity.Static{UserID: "alice"})
	now := func() time.Time { return time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC) }
	m := NewModel(mgr, time.UTC, now)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func aliceView() viewMsg {
	return viewMsg(session.View{
		Owner: "alice",
		Date:  "2026-10-14",
		Rate:  50,
		Habits: []session.HabitStatus{
			{Habit: models.Habit{ID: "h1", Title: "Meditate", Schedule: models.EveryDay()}, Completed: true, LogID: "l1"},
			{Habit: models.Habit{ID: "h2", Title: "Stretch", Schedule: models.EveryDay()}, LogID: "l2"},
		},
		All: []models.Habit{
			{ID: "h1", Title: "Meditate", Schedule: models.EveryDay()},
			{ID: "h2", Title: "Stretch", Schedule: models.EveryDay()},
			{ID: "h3", Title: "Long run", Category: models.CategoryFitness, Schedule: models.Schedule{6: true}},
		},
	})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestViewBeforeFirstSnapshot(t *testing.T) {
	m := newTestModel(t)
	assert.Contains(t, m.View(), "Loading")
}

func TestApplyView(t *testing.T) {
	m := newTestModel(t)
	m, cmd := update(t, m, aliceView())
	require.NotNil(t, cmd, "must keep listening for views")

	out := m.View()
	assert.Contains(t, out, "Wednesday, October 14")
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "Meditate")
	assert.Contains(t, out, "alice")
}

func TestSignedOutView(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, aliceView())
	m, _ = update(t, m, viewMsg(session.View{}))

	assert.Contains(t, m.View(), "Not signed in")
	assert.NotContains(t, m.View(), "Meditate")
}

func TestTabSwitching(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, aliceView())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, constants.StateHabits, m.state)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, constants.StateProgress, m.state)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, constants.StateToday, m.state)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, constants.StateProgress, m.state)
}

func TestHistoryForOtherOwnerIgnored(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, aliceView())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	require.Equal(t, constants.StateProgress, m.state)

	m, _ = update(t, m, historyMsg{owner: "bob", logs: []models.CompletionLog{
		{Owner: "bob", HabitID: "x", Date: "2026-10-14", Completed: true},
	}})
	assert.Contains(t, m.View(), "Loading history")

	m, _ = update(t, m, historyMsg{owner: "alice", logs: []models.CompletionLog{
		{Owner: "alice", HabitID: "h1", Date: "2026-10-14", Completed: true},
	}})
	assert.Contains(t, m.View(), "100%")
}

func TestConfirmDelete(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, aliceView())

	m, _ = update(t, m, today.DeleteHabitMsg{ID: "h2", Title: "Stretch"})
	assert.Equal(t, constants.StateConfirmDelete, m.state)
	assert.Contains(t, m.View(), `Delete "Stretch"`)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.Equal(t, constants.StateToday, m.state)
	assert.Nil(t, cmd)

	m, _ = update(t, m, today.DeleteHabitMsg{ID: "h2", Title: "Stretch"})
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	assert.Equal(t, constants.StateToday, m.state)
	require.NotNil(t, cmd)
	// no tracker is running in this test
	res, ok := cmd().(resultMsg)
	require.True(t, ok)
	assert.ErrorIs(t, res.err, apperrors.ErrNoOwner)
}

func TestAddHabitRequiresOwner(t *testing.T) {
	m := newTestModel(t)
	m, cmd := update(t, m, today.AddHabitMsg{})
	assert.Equal(t, constants.StateToday, m.state)
	require.NotNil(t, cmd)
	res := cmd().(resultMsg)
	assert.ErrorIs(t, res.err, apperrors.ErrNoOwner)

	m, _ = update(t, m, aliceView())
	m, _ = update(t, m, today.AddHabitMsg{})
	assert.Equal(t, constants.StateAddHabit, m.state)
	assert.Equal(t, "09:30", m.habitForm.Reminder)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, constants.StateToday, m.state)
}

func TestHabitsTabListsEveryHabit(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, aliceView())
	assert.NotContains(t, m.View(), "Long run", "not due on a Wednesday")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, constants.StateHabits, m.state)
	assert.Contains(t, m.View(), "Long run")
}

func TestEditHabitFromHabitsTab(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, aliceView())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})

	run := models.Habit{ID: "h3", Title: "Long run", Category: models.CategoryFitness,
		Schedule: models.Schedule{6: true}, Reminder: models.ReminderTime{Hour: 6, Minute: 45}}
	m, cmd := update(t, m, habits.EditHabitMsg{Habit: run})
	require.NotNil(t, cmd)
	assert.Equal(t, constants.StateEditHabit, m.state)
	assert.Equal(t, "h3", m.editing)
	assert.Equal(t, &HabitFormModel{Title: "Long run", Category: "Fitness", Schedule: "Sun", Reminder: "06:45"}, m.habitForm)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, constants.StateHabits, m.state, "back to the tab the form was opened from")

	m, _ = update(t, m, habits.DeleteHabitMsg{ID: "h3", Title: "Long run"})
	assert.Equal(t, constants.StateConfirmDelete, m.state)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.Equal(t, constants.StateHabits, m.state)
}

func TestHabitFormPatch(t *testing.T) {
	fm := habitFormModelFrom(models.Habit{Title: "Read", Category: "Learning", Schedule: models.EveryDay(),
		Reminder: models.ReminderTime{Hour: 21}})
	fm.Schedule = "weekdays"

	patch, err := fm.Patch()
	require.NoError(t, err)
	require.NotNil(t, patch.Title)
	assert.Equal(t, "Read", *patch.Title)
	require.NotNil(t, patch.Schedule)
	assert.Equal(t, 5, patch.Schedule.Count())
	require.NotNil(t, patch.Reminder)
	assert.Equal(t, models.ReminderTime{Hour: 21}, *patch.Reminder)

	fm.Reminder = "25:00"
	_, err = fm.Patch()
	assert.Error(t, err)
}

func TestResultShowsWarning(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, aliceView())

	m, _ = update(t, m, resultMsg{status: "Deleted Stretch", err: &apperrors.CleanupWarning{HabitID: "h2", Err: errors.New("quota")}})
	assert.Contains(t, m.View(), "Warning:")
}

func TestViewsClosedQuits(t *testing.T) {
	m := newTestModel(t)
	m, cmd := update(t, m, viewsClosedMsg{})
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHabitFormInput(t *testing.T) {
	fm := &HabitFormModel{Title: "  Read  ", Category: "learning", Schedule: "mon,wed", Reminder: "07:15"}
	in, err := fm.Input()
	require.NoError(t, err)
	assert.Equal(t, "Read", in.Title)
	assert.Equal(t, models.CategoryLearning, in.Category)
	require.NotNil(t, in.Schedule)
	assert.Equal(t, 2, in.Schedule.Count())
	assert.Equal(t, models.ReminderTime{Hour: 7, Minute: 15}, in.Reminder)

	fm.Reminder = "7pm"
	_, err = fm.Input()
	assert.Error(t, err)
}
