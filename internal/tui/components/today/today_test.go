package today

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/session"
)

func statuses(ids ...string) []session.HabitStatus {
	out := make([]session.HabitStatus, len(ids))
	for i, id := range ids {
		out[i] = session.HabitStatus{Habit: models.Habit{ID: id, Title: "Habit " + id}}
	}
	return out
}

func selectedID(m Model) string {
	if i, ok := m.list.SelectedItem().(Item); ok {
		return i.Status.Habit.ID
	}
	return ""
}

func TestEmptyList(t *testing.T) {
	m := New(80, 20)
	assert.Contains(t, m.View(), "Nothing due today")
}

func TestToggleEmitsSelectedHabit(t *testing.T) {
	m := New(80, 20)
	m.SetHabits(statuses("a", "b"))

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
	require.NotNil(t, cmd)
	assert.Equal(t, ToggleHabitMsg{ID: "b"}, cmd())
}

func TestSetHabitsKeepsCursor(t *testing.T) {
	m := New(80, 20)
	m.SetHabits(statuses("a", "b", "c"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, "c", selectedID(m))

	m.SetHabits(statuses("c", "a"))
	assert.Equal(t, "c", selectedID(m))
}

func TestDeleteCarriesTitle(t *testing.T) {
	m := New(80, 20)
	m.SetHabits(statuses("a"))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	require.NotNil(t, cmd)
	assert.Equal(t, DeleteHabitMsg{ID: "a", Title: "Habit a"}, cmd())
}
