package common

import "github.com/charmbracelet/lipgloss"

// Layout constants for the TUI
// These values are derived from the actual styling applied to components

const (
	// HeaderHeight is the height of the header bar (single line with Inline(true))
	HeaderHeight = 1

	// HeaderNewline is the newline added after the header in View()
	HeaderNewline = 1

	// FooterHeight is the height of the help/footer text
	FooterHeight = 1

	// PanelMarginVertical is the vertical margin applied to each panel (Margin(1) = 1 top + 1 bottom)
	PanelMarginVertical = 2

	// PanelMarginLeft is the left margin applied to the panel (MarginLeft(1))
	PanelMarginLeft = 1

	// BorderWidth is the width of a normal border (1 char on each side)
	BorderWidth = 1

	// HeaderSidePadding is the padding on each side of the header (2 spaces each side)
	HeaderSidePadding = 2

	// DefaultItemHeight is the estimated height of a single list item in lines
	DefaultItemHeight = 3

	// MinItemsPerPage is the minimum number of items to show per page
	MinItemsPerPage = 3

	// DefaultItemsPerPage is used when dynamic calculation isn't possible
	DefaultItemsPerPage = 10

	// HeaderTotalPadding is the total horizontal padding for header content (2 spaces each side)
	// Used in header.go for spacing calculation: width - totalTextLen - 4
	HeaderTotalPadding = 4

	// TimelineRefreshSeconds is the interval for auto-refreshing the queue view
	TimelineRefreshSeconds = 10
)

// VerticalLayoutOffset returns the total vertical space taken by header, footer, and margins
// Use this to calculate available height for panel content
func VerticalLayoutOffset() int {
	return HeaderHeight + HeaderNewline + PanelMarginVertical + FooterHeight
}

// CalculateAvailableHeight returns the height available for panel content
// after accounting for header, footer, and panel margins
func CalculateAvailableHeight(totalHeight int) int {
	return totalHeight - VerticalLayoutOffset()
}

// CalculateItemsPerPage returns the number of items that fit in the available height
// based on the estimated item height
func CalculateItemsPerPage(availableHeight, itemHeight int) int {
	if itemHeight <= 0 {
		itemHeight = DefaultItemHeight
	}
	items := availableHeight / itemHeight
	if items < MinItemsPerPage {
		return MinItemsPerPage
	}
	return items
}

// CalculateContentWidth returns the width for content inside a panel
// after accounting for internal padding
func CalculateContentWidth(panelWidth, padding int) int {
	return panelWidth - (padding * 2)
}

// MeasureHeight returns the height of a rendered string using lipgloss
func MeasureHeight(rendered string) int {
	return lipgloss.Height(rendered)
}

// MeasureWidth returns the width of a rendered string using lipgloss
func MeasureWidth(rendered string) int {
	return lipgloss.Width(rendered)
}
