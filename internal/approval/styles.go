package approval

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - args, fences

	toolStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")) // Blue - tool names

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")) // Cyan - paths

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")) // Yellow - approval banner

	removedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // Red - find text

	addedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // Green - replacement text

	fence = dimStyle.Render("```")
)

// renderLines styles each line separately so colour codes never span a
// newline.
func renderLines(style lipgloss.Style, s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = style.Render(l)
	}
	return strings.Join(lines, "\n")
}
