package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/embervale/forumfed/domain"
	"github.com/embervale/forumfed/ui/admin"
	"github.com/embervale/forumfed/ui/common"
	"github.com/embervale/forumfed/ui/followers"
	"github.com/embervale/forumfed/ui/header"
	"github.com/embervale/forumfed/ui/queue"
)

// MainModel is the operator's ops console: a single-panel bubbletea shell
// that cycles, via Tab/Shift+Tab, across the three views an admin needs to
// watch the federation engine live — local accounts, community follower
// counts, and the outbound delivery queue plus recent inbound activity.
type MainModel struct {
	account domain.Person
	width   int
	height  int
	state   common.SessionState

	headerModel    header.Model
	adminModel     admin.Model
	followersModel followers.Model
	queueModel     queue.Model
}

var orderedViews = []common.SessionState{common.AdminPanelView, common.FollowersView, common.QueueView}

func NewModel(account domain.Person, width, height int) MainModel {
	w := common.DefaultWindowWidth(width)
	h := common.DefaultWindowHeight(height)
	if w < 80 {
		w = 80
	}
	if h < 20 {
		h = 20
	}

	return MainModel{
		account: account,
		width:   w,
		height:  h,
		state:   common.AdminPanelView,

		headerModel:    header.Model{Width: w, Acc: &account},
		adminModel:     admin.InitialModel(account.Id, w, common.CalculateAvailableHeight(h)),
		followersModel: followers.InitialModel(w, common.CalculateAvailableHeight(h)),
		queueModel:     queue.InitialModel(w, common.CalculateAvailableHeight(h)),
	}
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(m.adminModel.Init(), m.followersModel.Init(), m.queueModel.Init())
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = common.DefaultWindowWidth(msg.Width)
		m.height = common.DefaultWindowHeight(msg.Height)
		m.headerModel.Width = m.width
		m.adminModel.Width = m.width
		m.adminModel.Height = common.CalculateAvailableHeight(m.height)
		m.followersModel.Width = m.width
		m.followersModel.Height = common.CalculateAvailableHeight(m.height)
		m.queueModel.Width = m.width
		m.queueModel.Height = common.CalculateAvailableHeight(m.height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			return m.switchView(nextView(m.state))
		case "shift+tab":
			return m.switchView(prevView(m.state))
		}
	}

	return m.routeToActive(msg)
}

func (m MainModel) switchView(next common.SessionState) (tea.Model, tea.Cmd) {
	m.state = next
	return m.routeToActive(common.ActivateViewMsg{})
}

func (m MainModel) routeToActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.state {
	case common.AdminPanelView:
		am, cmd := m.adminModel.Update(msg)
		m.adminModel = am
		return m, cmd
	case common.FollowersView:
		fm, cmd := m.followersModel.Update(msg)
		m.followersModel = fm
		return m, cmd
	case common.QueueView:
		qm, cmd := m.queueModel.Update(msg)
		m.queueModel = qm
		return m, cmd
	}
	return m, nil
}

func nextView(current common.SessionState) common.SessionState {
	for i, v := range orderedViews {
		if v == current {
			return orderedViews[(i+1)%len(orderedViews)]
		}
	}
	return orderedViews[0]
}

func prevView(current common.SessionState) common.SessionState {
	for i, v := range orderedViews {
		if v == current {
			return orderedViews[(i-1+len(orderedViews))%len(orderedViews)]
		}
	}
	return orderedViews[0]
}

func (m MainModel) View() string {
	var s strings.Builder

	s.WriteString(m.headerModel.View())
	s.WriteString("\n")

	s.WriteString(lipgloss.NewStyle().
		Width(m.width).
		Margin(1, 0).
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(common.COLOR_DIM)).
		Render(m.activeView()))

	s.WriteString("\n")
	s.WriteString(common.HelpStyle.Render(fmt.Sprintf("[tab] next view  [shift+tab] prev view  [%s]  [q] quit", m.tabLabel())))

	return s.String()
}

func (m MainModel) activeView() string {
	switch m.state {
	case common.AdminPanelView:
		return m.adminModel.View()
	case common.FollowersView:
		return m.followersModel.View()
	case common.QueueView:
		return m.queueModel.View()
	}
	return ""
}

func (m MainModel) tabLabel() string {
	switch m.state {
	case common.AdminPanelView:
		return "admin: m=mute"
	case common.FollowersView:
		return "followers: r=refresh"
	case common.QueueView:
		return "queue: r=refresh"
	}
	return ""
}
