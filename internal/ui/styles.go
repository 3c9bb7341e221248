package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/unblockhq/unblock/models"
)

var (
	// Colors
	ColorPrimary   = lipgloss.Color("205") // Pink
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("160") // Red
	ColorWarning   = lipgloss.Color("214") // Orange/Yellow
	ColorText      = lipgloss.Color("252") // White/Gray
	ColorCyan      = lipgloss.Color("87")  // Cyan for in-flight work
	ColorBlue      = lipgloss.Color("75")  // Blue for review states

	// Base Styles
	StyleTitle   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorSecondary)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleText    = lipgloss.NewStyle().Foreground(ColorText)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	StyleBoardFrame = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorSecondary).
			Padding(0, 1)
)

// statusStyles maps each lifecycle status to a display style.
var statusStyles = map[models.TaskStatus]lipgloss.Style{
	models.StatusOpen:             StyleSuccess,
	models.StatusClaimed:          lipgloss.NewStyle().Foreground(ColorCyan),
	models.StatusFulfilled:        lipgloss.NewStyle().Foreground(ColorCyan),
	models.StatusScored:           lipgloss.NewStyle().Foreground(ColorBlue),
	models.StatusUnderReview:      lipgloss.NewStyle().Foreground(ColorBlue),
	models.StatusVerifiedPaid:     StyleSuccess,
	models.StatusDisputed:         StyleError,
	models.StatusExpiredRefunded:  StyleSubtle,
	models.StatusAnswered:         lipgloss.NewStyle().Foreground(ColorCyan),
	models.StatusConfirmedPaid:    StyleSuccess,
	models.StatusRejectedRefunded: StyleError,
}

// RenderStatus colors a lifecycle status for terminal display.
func RenderStatus(status models.TaskStatus) string {
	if style, ok := statusStyles[status]; ok {
		return style.Render(string(status))
	}
	return StyleText.Render(string(status))
}

// RenderTier colors a trust tier label. Suspended supervisors read as
// errors, probation as a warning, everything else as healthy.
func RenderTier(info models.TierInfo) string {
	switch info.Tier {
	case models.TierSuspended:
		return StyleError.Render(info.Label)
	case models.TierProbation:
		return StyleWarning.Render(info.Label)
	case models.TierAutonomous:
		return StyleSuccess.Render(info.Label)
	default:
		return StyleText.Render(info.Label)
	}
}
