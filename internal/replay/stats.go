package replay

import (
	"fmt"
	"io"
	"sort"

	"github.com/vinayprograms/devloop/internal/session"
)

// Stats holds aggregate statistics for a transcript.
type Stats struct {
	// Per-stage durations
	StageDurations map[string]int64

	// Tool calls by name
	ToolCalls    map[string]int
	ToolFailures map[string]int
	ToolTotalMs  int64

	// Operator decisions by outcome
	Approvals map[string]int

	// Background processes reaped at teardown
	Teardowns int
}

// ComputeStats calculates aggregate statistics from transcript events.
func ComputeStats(t *Transcript) *Stats {
	stats := &Stats{
		StageDurations: make(map[string]int64),
		ToolCalls:      make(map[string]int),
		ToolFailures:   make(map[string]int),
		Approvals:      make(map[string]int),
	}

	for _, event := range t.Events {
		switch event.Type {
		case session.EventStageEnd:
			stats.StageDurations[event.Agent] += event.DurationMs
		case session.EventToolResult:
			stats.ToolCalls[event.Tool]++
			stats.ToolTotalMs += event.DurationMs
			if event.Success != nil && !*event.Success {
				stats.ToolFailures[event.Tool]++
			}
		case session.EventApproval:
			stats.Approvals[event.Decision]++
		case session.EventTeardown:
			stats.Teardowns++
		}
	}
	return stats
}

// TotalToolCalls sums calls across tools.
func (s *Stats) TotalToolCalls() int {
	n := 0
	for _, c := range s.ToolCalls {
		n += c
	}
	return n
}

// PrintStats writes the statistics block.
func PrintStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("STATS"))

	for _, stage := range sortedKeys(stats.StageDurations) {
		fmt.Fprintf(w, "  %s %s\n",
			labelStyle.Render(fmt.Sprintf("%-8s", stage+":")),
			valueStyle.Render(fmt.Sprintf("%dms", stats.StageDurations[stage])))
	}

	if total := stats.TotalToolCalls(); total > 0 {
		fmt.Fprintf(w, "  %s %s %s\n",
			labelStyle.Render("tools:  "),
			valueStyle.Render(fmt.Sprintf("%d calls", total)),
			dimStyle.Render(fmt.Sprintf("(%dms)", stats.ToolTotalMs)))
		for _, name := range sortedKeys(stats.ToolCalls) {
			line := fmt.Sprintf("%d", stats.ToolCalls[name])
			if f := stats.ToolFailures[name]; f > 0 {
				line += errorStyle.Render(fmt.Sprintf(" (%d failed)", f))
			}
			fmt.Fprintf(w, "    %s %s\n", toolStyle.Render(fmt.Sprintf("%-28s", name)), line)
		}
	}

	if len(stats.Approvals) > 0 {
		fmt.Fprintf(w, "  %s", labelStyle.Render("approvals:"))
		for _, d := range sortedKeys(stats.Approvals) {
			fmt.Fprintf(w, " %s=%d", decisionStyle(d).Render(d), stats.Approvals[d])
		}
		fmt.Fprintln(w)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
