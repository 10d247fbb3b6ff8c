package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#7C3AED")
	ownColor     = lipgloss.Color("#10B981")
	mutedColor   = lipgloss.Color("#9CA3AF")
	errorColor   = lipgloss.Color("#EF4444")
	readColor    = lipgloss.Color("#38BDF8")
	focusColor   = lipgloss.Color("#F59E0B")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Padding(0, 1)
	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	focusedPaneStyle = paneStyle.BorderForeground(focusColor)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(ownColor).
				Bold(true).
				PaddingLeft(1).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(ownColor)
	itemStyle = lipgloss.NewStyle().PaddingLeft(2)

	ownMessageStyle   = lipgloss.NewStyle().Foreground(ownColor)
	otherMessageStyle = lipgloss.NewStyle().Foreground(primaryColor)
	selectedMsgStyle  = lipgloss.NewStyle().Reverse(true)
	dividerStyle      = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)

	// отметка прочтения: контурная у непрочитанного, цветная у прочитанного
	sentReceiptStyle = lipgloss.NewStyle().Foreground(mutedColor)
	readReceiptStyle = lipgloss.NewStyle().Foreground(readColor).Bold(true)

	statusStyle = lipgloss.NewStyle().Foreground(mutedColor).Padding(0, 1)
)
