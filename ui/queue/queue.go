package queue

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/embervale/forumfed/db"
	"github.com/embervale/forumfed/domain"
	"github.com/embervale/forumfed/ui/common"
	"log"
)

// Model watches the outbound delivery queue depth and the most recently
// accepted inbound activities, the other two things the operator console
// promises to show live alongside community follower counts.
type Model struct {
	PendingCount int
	RecentTasks  []domain.Task
	RecentSeen   []domain.SeenActivity
	Width        int
	Height       int
}

func InitialModel(width, height int) Model {
	return Model{
		RecentTasks: []domain.Task{},
		RecentSeen:  []domain.SeenActivity{},
		Width:       width,
		Height:      height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadQueue()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case queueLoadedMsg:
		m.PendingCount = msg.pendingCount
		m.RecentTasks = msg.recentTasks
		m.RecentSeen = msg.recentSeen
		return m, nil

	case common.ActivateViewMsg:
		return m, tea.Batch(loadQueue(), refreshAfter())

	case refreshTickMsg:
		return m, tea.Batch(loadQueue(), refreshAfter())

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return m, loadQueue()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("delivery queue (%d pending)", m.PendingCount)))
	s.WriteString("\n\n")

	s.WriteString(common.ListBadgeStyle.Render("recent tasks"))
	s.WriteString("\n")
	if len(m.RecentTasks) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("No tasks enqueued yet."))
		s.WriteString("\n")
	}
	for _, t := range m.RecentTasks {
		status := fmt.Sprintf("%-22s attempt %d/%d", t.Kind, t.Attempts, t.MaxAttempts)
		if t.LatestErr != "" {
			status += common.ListErrorStyle.Render(" last error: " + truncate(t.LatestErr, 60))
		}
		s.WriteString(common.ListUnselectedPrefix + status)
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(common.ListBadgeStyle.Render("recent inbound activities"))
	s.WriteString("\n")
	if len(m.RecentSeen) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("Nothing received yet."))
		s.WriteString("\n")
	}
	for _, seen := range m.RecentSeen {
		line := fmt.Sprintf("%s  %s", seen.ReceivedAt.Format("15:04:05"), truncate(seen.APId, 80))
		s.WriteString(common.ListUnselectedPrefix + line)
		s.WriteString("\n")
	}

	return s.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

type queueLoadedMsg struct {
	pendingCount int
	recentTasks  []domain.Task
	recentSeen   []domain.SeenActivity
}

// refreshTickMsg drives the queue screen's self-refresh while it is the
// active view, the same way the predecessor's timeline screens polled.
type refreshTickMsg struct{}

func refreshAfter() tea.Cmd {
	return tea.Tick(common.TimelineRefreshSeconds*time.Second, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func loadQueue() tea.Cmd {
	return func() tea.Msg {
		database := db.GetDB()

		err, count := database.ReadPendingTaskCount()
		if err != nil {
			log.Printf("Failed to read pending task count: %v", err)
		}

		err, tasks := database.ReadRecentTasks(common.DefaultItemsPerPage)
		if err != nil {
			log.Printf("Failed to load recent tasks: %v", err)
			tasks = &[]domain.Task{}
		}

		err, seen := database.ReadRecentSeenActivities(common.DefaultItemsPerPage)
		if err != nil {
			log.Printf("Failed to load recent activities: %v", err)
			seen = &[]domain.SeenActivity{}
		}

		return queueLoadedMsg{pendingCount: count, recentTasks: *tasks, recentSeen: *seen}
	}
}
