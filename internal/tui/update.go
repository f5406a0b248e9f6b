package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitual/internal/constants"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/session"
	"github.com/julianstephens/habitual/internal/tui/components/habits"
	"github.com/julianstephens/habitual/internal/tui/components/today"
	"github.com/julianstephens/habitual/internal/utils"
)

// tabs are the states reachable with tab/shift+tab.
var tabs = []constants.SessionState{constants.StateToday, constants.StateHabits, constants.StateProgress}

var tabTitles = []string{"Today", "Habits", "Progress"}

// inDialog reports whether state is the form or the delete confirmation.
func inDialog(state constants.SessionState) bool {
	switch state {
	case constants.StateAddHabit, constants.StateEditHabit, constants.StateConfirmDelete:
		return true
	}
	return false
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		h, v := docStyle.GetFrameSize()
		m.todayModel.SetSize(msg.Width-h, msg.Height-v-6)
		m.habitsModel.SetSize(msg.Width-h, msg.Height-v-4)
		m.progressModel.SetSize(msg.Width-h, msg.Height-v-6)
		return m, nil

	case viewMsg:
		return m.applyView(msg)

	case viewsClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case historyMsg:
		if msg.owner != m.view.Owner {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.progressModel.SetHistory(msg.logs)
		return m, nil

	case resultMsg:
		m.err = msg.err
		if msg.status != "" {
			m.status = msg.status
		}
		return m, nil
	}

	switch m.state {
	case constants.StateAddHabit, constants.StateEditHabit:
		return m.updateHabitForm(msg)
	case constants.StateConfirmDelete:
		return m.updateConfirmDelete(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Tab):
			return m.switchTab(1)
		case key.Matches(msg, m.keys.ShiftTab):
			return m.switchTab(-1)
		}
	}

	switch msg := msg.(type) {
	case today.ToggleHabitMsg:
		m.status = ""
		return m, toggleHabit(m.mgr, msg.ID)
	case today.AddHabitMsg, habits.AddHabitMsg:
		return m.openForm(newHabitFormModel(m.now().In(m.loc)), "")
	case habits.EditHabitMsg:
		return m.openForm(habitFormModelFrom(msg.Habit), msg.Habit.ID)
	case today.DeleteHabitMsg:
		return m.confirmDelete(msg.ID, msg.Title)
	case habits.DeleteHabitMsg:
		return m.confirmDelete(msg.ID, msg.Title)
	}

	var cmd tea.Cmd
	switch m.state {
	case constants.StateToday:
		m.todayModel, cmd = m.todayModel.Update(msg)
	case constants.StateHabits:
		m.habitsModel, cmd = m.habitsModel.Update(msg)
	case constants.StateProgress:
		m.progressModel, cmd = m.progressModel.Update(msg)
	}
	return m, cmd
}

// applyView takes a published snapshot and waits for the next one.
func (m Model) applyView(msg viewMsg) (tea.Model, tea.Cmd) {
	v := session.View(msg)
	prevOwner := m.view.Owner
	m.view = v
	m.received = true
	m.todayModel.SetHabits(v.Habits)
	m.habitsModel.SetHabits(v.All)
	if date, err := utils.ParseDateInLocation(v.Date, m.loc); err == nil {
		m.progressModel.SetToday(date)
	}

	cmds := []tea.Cmd{waitForView(m.mgr.Views())}
	if v.Owner != prevOwner {
		m.progressModel.Reset()
		m.status = ""
		m.err = nil
		if inDialog(m.state) {
			m.state = constants.StateToday
		}
	}
	// logs changed, so the heat map may have too
	if m.state == constants.StateProgress && v.SignedIn() {
		cmds = append(cmds, loadHistory(m.mgr.Current()))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) switchTab(step int) (tea.Model, tea.Cmd) {
	idx := 0
	for i, s := range tabs {
		if s == m.state {
			idx = i
		}
	}
	m.state = tabs[(idx+step+len(tabs))%len(tabs)]
	if m.state == constants.StateProgress && m.view.SignedIn() {
		return m, loadHistory(m.mgr.Current())
	}
	return m, nil
}

// openForm shows the habit form. editing is the id of the habit being
// edited, or empty to add a new one.
func (m Model) openForm(fm *HabitFormModel, editing string) (tea.Model, tea.Cmd) {
	if !m.view.SignedIn() {
		return m, noOwner
	}
	m.returnTo = m.state
	m.habitForm = fm
	m.editing = editing
	m.form = NewHabitForm(fm)
	m.state = constants.StateAddHabit
	if editing != "" {
		m.state = constants.StateEditHabit
	}
	return m, m.form.Init()
}

func (m Model) confirmDelete(id, title string) (tea.Model, tea.Cmd) {
	m.returnTo = m.state
	m.habitToDelete = deleteTarget{id: id, title: title}
	m.state = constants.StateConfirmDelete
	return m, nil
}

func (m Model) updateHabitForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
		m.state = m.returnTo
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.state = m.returnTo
		if m.editing != "" {
			patch, err := m.habitForm.Patch()
			if err != nil {
				m.err = err
				return m, cmd
			}
			return m, tea.Batch(cmd, editHabit(m.mgr.Current(), m.editing, patch))
		}
		in, err := m.habitForm.Input()
		if err != nil {
			m.err = err
			return m, cmd
		}
		return m, tea.Batch(cmd, addHabit(m.mgr.Current(), in))
	case huh.StateAborted:
		m.state = m.returnTo
	}
	return m, cmd
}

func (m Model) updateConfirmDelete(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Confirm):
		m.state = m.returnTo
		target := m.habitToDelete
		m.habitToDelete = deleteTarget{}
		return m, deleteHabit(m.mgr.Current(), target.id, target.title)
	case key.Matches(keyMsg, m.keys.Cancel), key.Matches(keyMsg, m.keys.Quit):
		m.state = m.returnTo
		m.habitToDelete = deleteTarget{}
	}
	return m, nil
}

// errorLine renders the last error, or the warning prefix for partial failures.
func (m Model) errorLine() string {
	if m.err == nil {
		return ""
	}
	return apperrors.Format(m.err)
}
