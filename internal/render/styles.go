// Package render formats mixer, ranking and consensus output for the
// terminal.
package render

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorDanger    = lipgloss.Color("196") // Red
)

// Title style for section headings.
var Title = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	Padding(0, 1)

// TimeBandHeader style for time band labels (e.g., "Just Now", "Today").
var TimeBandHeader = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	MarginTop(1).
	Padding(0, 1)

// SourceBadge style for the feed a post came from.
var SourceBadge = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

var (
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	secondary   = lipgloss.NewStyle().Foreground(colorSecondary)
	agreeStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
	rejectStyle = lipgloss.NewStyle().Foreground(colorDanger)
	scoreStyle  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
)

// Empty style for placeholder text.
var Empty = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)
