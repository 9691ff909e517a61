// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Palette tuned for dark terminals.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED") // titles
	ColorMuted     = lipgloss.Color("#6B7280") // secondary text, teardown order
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorHighlight = lipgloss.Color("#3B82F6") // service ids, interface names
)

var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	SubtitleStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	SuccessStyle  = lipgloss.NewStyle().Foreground(ColorSuccess)
	ErrorStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	WarningStyle  = lipgloss.NewStyle().Foreground(ColorWarning)
	ServiceStyle  = lipgloss.NewStyle().Foreground(ColorHighlight)

	// kindStyle labels each problem in check output.
	kindStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorError).PaddingRight(1)
)
