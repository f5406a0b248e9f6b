package habits

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitual/internal/models"
)

type AddHabitMsg struct{}

type EditHabitMsg struct {
	Habit models.Habit
}

type DeleteHabitMsg struct {
	ID    string
	Title string
}

type Item struct {
	Habit models.Habit
}

func (i Item) Title() string { return i.Habit.Title }

func (i Item) Description() string {
	return fmt.Sprintf("%s | %s | %s", i.Habit.Reminder, i.Habit.Category, i.Habit.Schedule)
}

func (i Item) FilterValue() string { return i.Habit.Title }

type KeyMap struct {
	Add    key.Binding
	Edit   key.Binding
	Delete key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e", "enter"),
			key.WithHelp("e", "edit"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
	}
}

// Model lists every habit of the owner, due today or not.
type Model struct {
	list list.Model
	keys KeyMap
}

func New(width, height int) Model {
	l := list.New(nil, list.NewDefaultDelegate(), width, height)
	l.Title = "Habits"
	l.SetShowTitle(false)
	l.SetShowHelp(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Add, keys.Edit, keys.Delete}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Add, keys.Edit, keys.Delete}
	}

	return Model{list: l, keys: keys}
}

func (m Model) Keys() KeyMap { return m.keys }

// SetHabits replaces the items, keeping the cursor on the selected habit.
func (m *Model) SetHabits(habits []models.Habit) {
	selected := ""
	if i, ok := m.list.SelectedItem().(Item); ok {
		selected = i.Habit.ID
	}

	items := make([]list.Item, len(habits))
	cursor := 0
	for i, h := range habits {
		items[i] = Item{Habit: h}
		if h.ID == selected {
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

	if msg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.Add):
			return m, func() tea.Msg { return AddHabitMsg{} }
		case key.Matches(msg, m.keys.Edit):
			if i, ok := m.list.SelectedItem().(Item); ok {
				return m, func() tea.Msg { return EditHabitMsg{Habit: i.Habit} }
			}
			return m, nil
		case key.Matches(msg, m.keys.Delete):
			if i, ok := m.list.SelectedItem().(Item); ok {
				return m, func() tea.Msg {
					return DeleteHabitMsg{ID: i.Habit.ID, Title: i.Habit.Title}
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
		return "\n  No habits yet.\n  Press 'a' to add one."
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}
