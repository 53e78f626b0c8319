package followers

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/embervale/forumfed/db"
	"github.com/embervale/forumfed/ui/common"
	"log"
)

// Model shows the accepted follower count of every locally-hosted
// Community, matching the operator console's promise to watch "community
// follower counts" live.
type Model struct {
	Counts   []db.CommunityFollowerCount
	Selected int
	Offset   int // Pagination offset
	Width    int
	Height   int
}

func InitialModel(width, height int) Model {
	return Model{
		Counts:   []db.CommunityFollowerCount{},
		Selected: 0,
		Offset:   0,
		Width:    width,
		Height:   height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadCounts()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case countsLoadedMsg:
		m.Counts = msg.counts
		m.Offset = 0
		m.Selected = 0
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Selected > 0 {
				m.Selected--
				if m.Selected < m.Offset {
					m.Offset = m.Selected
				}
			}
		case "down", "j":
			if m.Selected < len(m.Counts)-1 {
				m.Selected++
				if m.Selected >= m.Offset+common.DefaultItemsPerPage {
					m.Offset = m.Selected - common.DefaultItemsPerPage + 1
				}
			}
		case "r":
			return m, loadCounts()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("community followers (%d communities)", len(m.Counts))))
	s.WriteString("\n\n")

	if len(m.Counts) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("No local communities yet."))
		return s.String()
	}

	start := m.Offset
	end := min(start+common.DefaultItemsPerPage, len(m.Counts))

	for i := start; i < end; i++ {
		row := m.Counts[i]
		text := fmt.Sprintf("c/%s%s%d followers", row.Community.Name, strings.Repeat(" ", maxPadding(row.Community.Name)), row.FollowerCount)

		if i == m.Selected {
			s.WriteString(common.ListSelectedPrefix + common.ListItemSelectedStyle.Render(text))
		} else {
			s.WriteString(common.ListUnselectedPrefix + common.ListItemStyle.Render(text))
		}
		s.WriteString("\n")
	}

	if len(m.Counts) > common.DefaultItemsPerPage {
		s.WriteString("\n")
		paginationText := fmt.Sprintf("showing %d-%d of %d", start+1, end, len(m.Counts))
		s.WriteString(common.ListBadgeStyle.Render(paginationText))
	}

	return s.String()
}

// maxPadding keeps the follower-count column loosely aligned without
// pulling in a table-rendering dependency for three fields.
func maxPadding(name string) int {
	if len(name) >= 24 {
		return 1
	}
	return 24 - len(name)
}

type countsLoadedMsg struct {
	counts []db.CommunityFollowerCount
}

func loadCounts() tea.Cmd {
	return func() tea.Msg {
		database := db.GetDB()
		err, counts := database.ReadLocalCommunityFollowerCounts()
		if err != nil {
			log.Printf("Failed to load community follower counts: %v", err)
			return countsLoadedMsg{counts: []db.CommunityFollowerCount{}}
		}
		if counts == nil {
			return countsLoadedMsg{counts: []db.CommunityFollowerCount{}}
		}
		return countsLoadedMsg{counts: *counts}
	}
}
