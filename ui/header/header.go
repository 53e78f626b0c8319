package header

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/embervale/forumfed/domain"
	"github.com/embervale/forumfed/ui/common"
	"github.com/embervale/forumfed/util"
	"github.com/mattn/go-runewidth"
)

type Model struct {
	Width int
	Acc   *domain.Person
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) View() string {
	return GetHeaderStyle(m.Acc, m.Width)
}

// GetHeaderStyle renders the single-line operator-console header: identity
// on the left, version centered, join date on the right.
func GetHeaderStyle(acc *domain.Person, width int) string {
	leftText := fmt.Sprintf("@%s", acc.Username)
	centerText := util.GetNameAndVersion()
	rightText := fmt.Sprintf("joined: %s", acc.CreatedAt.Format("2006-01-02"))

	leftLen := runewidth.StringWidth(leftText)
	centerLen := runewidth.StringWidth(centerText)
	rightLen := runewidth.StringWidth(rightText)

	totalTextLen := leftLen + centerLen + rightLen
	totalSpacing := maxInt(width-totalTextLen-common.HeaderTotalPadding, 2)

	leftSpacing := totalSpacing / 2
	rightSpacing := totalSpacing - leftSpacing

	spaces := func(n int) string {
		if n < 0 {
			n = 0
		}
		return strings.Repeat(" ", n)
	}

	header := fmt.Sprintf("  %s%s%s%s%s  ",
		leftText,
		spaces(leftSpacing),
		centerText,
		spaces(rightSpacing),
		rightText,
	)

	return lipgloss.NewStyle().
		Width(width).
		MaxWidth(width).
		Background(lipgloss.Color(common.COLOR_ACCENT)).
		Foreground(lipgloss.Color(common.COLOR_WHITE)).
		Bold(true).
		Render(header)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
