package habits

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitual/internal/models"
)

func habitList(ids ...string) []models.Habit {
	out := make([]models.Habit, len(ids))
	for i, id := range ids {
		out[i] = models.Habit{ID: id, Title: "Habit " + id, Schedule: models.Schedule{true}}
	}
	return out
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestEmptyHabitList(t *testing.T) {
	m := New(80, 20)
	assert.Contains(t, m.View(), "No habits yet")
}

func TestEditEmitsSelectedHabit(t *testing.T) {
	m := New(80, 20)
	hs := habitList("a", "b")
	m.SetHabits(hs)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := m.Update(runes("e"))
	require.NotNil(t, cmd)
	assert.Equal(t, EditHabitMsg{Habit: hs[1]}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, EditHabitMsg{Habit: hs[1]}, cmd())
}

func TestAddAndDelete(t *testing.T) {
	m := New(80, 20)
	_, cmd := m.Update(runes("d"))
	assert.Nil(t, cmd, "nothing selected")

	m.SetHabits(habitList("a"))
	_, cmd = m.Update(runes("d"))
	require.NotNil(t, cmd)
	assert.Equal(t, DeleteHabitMsg{ID: "a", Title: "Habit a"}, cmd())

	_, cmd = m.Update(runes("a"))
	require.NotNil(t, cmd)
	assert.Equal(t, AddHabitMsg{}, cmd())
}

func TestSetHabitsKeepsSelection(t *testing.T) {
	m := New(80, 20)
	m.SetHabits(habitList("a", "b", "c"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})

	m.SetHabits(habitList("x", "b"))
	i, ok := m.list.SelectedItem().(Item)
	require.True(t, ok)
	assert.Equal(t, "b", i.Habit.ID)
	assert.Contains(t, m.View(), "Habit x")
}
