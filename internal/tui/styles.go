package tui

import "github.com/charmbracelet/lipgloss"

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	// TitleStyle styles the line above the table.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))

	statusStyles = map[string]lipgloss.Style{
		// Terminal states
		"installed": lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"reused":    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"resolved":  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"current":   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),

		// Active states
		"resolving":   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"downloading": lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"extracting":  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"chowning":    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"replacing":   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),

		// Needs attention
		"outdated": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"missing":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"skipped":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),

		// Error
		"failed": lipgloss.NewStyle().Foreground(lipgloss.Color("1")),

		// Pending
		"pending": lipgloss.NewStyle().Faint(true),
	}

	terminalStatuses = map[string]bool{
		"installed": true,
		"reused":    true,
		"resolved":  true,
		"current":   true,
		"outdated":  true,
		"missing":   true,
		"skipped":   true,
		"failed":    true,
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
