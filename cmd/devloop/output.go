package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"gopkg.in/yaml.v3"

	"github.com/vinayprograms/devloop/internal/agents"
)

const wrapWidth = 88

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	severityStyles = map[string]lipgloss.Style{
		agents.SeverityCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		agents.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		agents.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		agents.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	}
)

// renderCycle is the one-line status printed after each cycle.
func renderCycle(cycle, maxCycles int, v *agents.Verdict) string {
	label := failStyle.Render("✗ fail")
	if v.Passed() {
		label = successStyle.Render("✓ success")
	}
	return fmt.Sprintf("%s %s %s",
		headerStyle.Render(fmt.Sprintf("Cycle %d/%d:", cycle, maxCycles)),
		label,
		dimStyle.Render(fmt.Sprintf("(%d breaking bug(s))", len(v.BreakingBugs))))
}

// writeVerdict writes v in the requested format.
func writeVerdict(w io.Writer, v *agents.Verdict, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		_, err := io.WriteString(w, renderVerdict(v))
		return err
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// renderVerdict formats a verdict for the terminal.
func renderVerdict(v *agents.Verdict) string {
	var b strings.Builder

	result := failStyle.Render("✗ " + v.Result)
	if v.Passed() {
		result = successStyle.Render("✓ " + v.Result)
	}
	b.WriteString(headerStyle.Render("Result: ") + result + "\n")

	if v.Summary != "" {
		b.WriteString("\n" + headerStyle.Render("Summary") + "\n")
		b.WriteString(indent.String(wordwrap.String(v.Summary, wrapWidth), 2) + "\n")
	}

	if len(v.BreakingBugs) > 0 {
		b.WriteString("\n" + headerStyle.Render(fmt.Sprintf("Breaking bugs (%d)", len(v.BreakingBugs))) + "\n")
		for i, bug := range v.BreakingBugs {
			style, ok := severityStyles[bug.Severity]
			if !ok {
				style = dimStyle
			}
			b.WriteString(fmt.Sprintf("  %d. %s %s\n", i+1,
				style.Render("["+bug.Severity+"]"),
				wordwrap.String(bug.Description, wrapWidth)))
			if bug.ReproduceSteps != "" {
				b.WriteString(dimStyle.Render("     Steps to reproduce:") + "\n")
				b.WriteString(indent.String(wordwrap.String(bug.ReproduceSteps, wrapWidth-5), 5) + "\n")
			}
		}
	}
	return b.String()
}
