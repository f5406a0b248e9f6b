package today

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitual/internal/session"
)

type ToggleHabitMsg struct {
	ID string
}

type AddHabitMsg struct{}

type DeleteHabitMsg struct {
	ID    string
	Title string
}

var (
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Strikethrough(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

type Item struct {
	Status session.HabitStatus
}

func (i Item) Title() string {
	if i.Status.Completed {
		return "[x] " + doneStyle.Render(i.Status.Habit.Title)
	}
	return "[ ] " + pendingStyle.Render(i.Status.Habit.Title)
}

func (i Item) Description() string {
	return fmt.Sprintf("%s | %s | %s", i.Status.Habit.Reminder, i.Status.Habit.Category, i.Status.Habit.Schedule)
}

func (i Item) FilterValue() string { return i.Status.Habit.Title }

type KeyMap struct {
	Toggle key.Binding
	Add    key.Binding
	Delete key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "toggle"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
	}
}

// Model is the checklist of habits due today.
type Model struct {
	list list.Model
	keys KeyMap
}

func New(width, height int) Model {
	l := list.New(nil, list.NewDefaultDelegate(), width, height)
	l.Title = "Today"
	l.SetShowTitle(false)
	l.SetShowHelp(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Toggle, keys.Add, keys.Delete}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Toggle, keys.Add, keys.Delete}
	}

	return Model{list: l, keys: keys}
}

// SetHabits replaces the items and keeps the cursor on the same habit when
// it is still listed.
func (m *Model) SetHabits(habits []session.HabitStatus) {
	selected := ""
	if i, ok := m.list.SelectedItem().(Item); ok {
		selected = i.Status.Habit.ID
	}

	items := make([]list.Item, len(habits))
	cursor := 0
	for i, h := range habits {
		items[i] = Item{Status: h}
		if h.Habit.ID == selected {
			cursor = i
		}
	}
	m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(cursor)
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Toggle):
			if i, ok := m.list.SelectedItem().(Item); ok {
				return m, func() tea.Msg { return ToggleHabitMsg{ID: i.Status.Habit.ID} }
			}
			return m, nil
		case key.Matches(msg, m.keys.Add):
			return m, func() tea.Msg { return AddHabitMsg{} }
		case key.Matches(msg, m.keys.Delete):
			if i, ok := m.list.SelectedItem().(Item); ok {
				return m, func() tea.Msg {
					return DeleteHabitMsg{ID: i.Status.Habit.ID, Title: i.Status.Habit.Title}
				}
			}
			return m, nil
		}
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 && m.list.FilterState() != list.Filtering {
		return "\n  Nothing due today.\n  Press 'a' to add a habit."
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}
