package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/session"
	"github.com/julianstephens/habitual/internal/tui/components/habits"
	"github.com/julianstephens/habitual/internal/tui/components/progress"
	"github.com/julianstephens/habitual/internal/tui/components/today"
)

type HabitFormModel struct {
	Title    string
	Category string
	Schedule string
	Reminder string
}

type deleteTarget struct {
	id    string
	title string
}

type Model struct {
	mgr           *session.Manager
	loc           *time.Location
	now           func() time.Time
	view          session.View
	received      bool
	state         constants.SessionState
	keys          KeyMap
	help          help.Model
	todayModel    today.Model
	habitsModel   habits.Model
	progressModel progress.Model
	form          *huh.Form
	habitForm     *HabitFormModel
	editing       string // id of the habit in the form, empty when adding
	returnTo      constants.SessionState
	habitToDelete deleteTarget
	status        string
	err           error
	quitting      bool
	width         int
	height        int
}

func NewModel(mgr *session.Manager, loc *time.Location, now func() time.Time) Model {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return Model{
		mgr:           mgr,
		loc:           loc,
		now:           now,
		state:         constants.StateToday,
		keys:          DefaultKeyMap(),
		help:          help.New(),
		todayModel:    today.New(0, 0),
		habitsModel:   habits.New(0, 0),
		progressModel: progress.New(0, 0),
	}
}

func (m Model) ShortHelp() []key.Binding {
	keys := []key.Binding{m.keys.Tab, m.keys.Quit, m.keys.Help}
	switch m.state {
	case constants.StateToday:
		keys = append(keys, m.keys.Toggle, m.keys.Add, m.keys.Delete)
	case constants.StateHabits:
		hk := m.habitsModel.Keys()
		keys = append(keys, hk.Add, hk.Edit, hk.Delete)
	case constants.StateProgress:
		pk := m.progressModel.Keys()
		keys = append(keys, pk.Prev, pk.Next, pk.Period)
	}
	return keys
}

func (m Model) FullHelp() [][]key.Binding {
	global := []key.Binding{m.keys.Tab, m.keys.ShiftTab, m.keys.Quit, m.keys.Help}
	navigation := []key.Binding{m.keys.Up, m.keys.Down}

	var actions []key.Binding
	switch m.state {
	case constants.StateToday:
		actions = []key.Binding{m.keys.Toggle, m.keys.Add, m.keys.Delete}
	case constants.StateHabits:
		hk := m.habitsModel.Keys()
		actions = []key.Binding{hk.Add, hk.Edit, hk.Delete}
	case constants.StateProgress:
		pk := m.progressModel.Keys()
		actions = []key.Binding{pk.Prev, pk.Next, pk.Period}
	}

	return [][]key.Binding{global, navigation, actions}
}

func (m Model) Init() tea.Cmd {
	return waitForView(m.mgr.Views())
}
