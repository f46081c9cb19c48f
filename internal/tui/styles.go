package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared by every view. Adaptive colours keep the views readable on
// light terminals.
var (
	accent  = lipgloss.AdaptiveColor{Light: "25", Dark: "39"}
	muted   = lipgloss.AdaptiveColor{Light: "244", Dark: "241"}
	good    = lipgloss.AdaptiveColor{Light: "28", Dark: "78"}
	bad     = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	caution = lipgloss.AdaptiveColor{Light: "130", Dark: "214"}
	ink     = lipgloss.AdaptiveColor{Light: "235", Dark: "252"}
)

// welcome and indexing screens
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accent)
	subtitleStyle = lipgloss.NewStyle().Foreground(muted).Italic(true)
	panelStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1).
			MarginLeft(2)
	phaseStyle   = lipgloss.NewStyle().Foreground(accent)
	successStyle = lipgloss.NewStyle().Foreground(good)
	errorStyle   = lipgloss.NewStyle().Foreground(bad)
	warnStyle    = lipgloss.NewStyle().Foreground(caution)
	dimStyle     = lipgloss.NewStyle().Foreground(muted)
)

// ask view
var (
	userMsgStyle      = lipgloss.NewStyle().Bold(true).Foreground(accent)
	assistantMsgStyle = lipgloss.NewStyle().Foreground(ink)
	sourceStyle       = lipgloss.NewStyle().Foreground(muted).Italic(true).PaddingLeft(2)
	statusBarStyle    = lipgloss.NewStyle().
				Foreground(ink).
				Background(lipgloss.AdaptiveColor{Light: "252", Dark: "236"}).
				Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
)
