package replay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/devloop/internal/session"
)

// continuation is the indent for lines that belong to the previous event.
const continuation = "      │          │   "

// formatEvent formats a single event for display.
func (r *Replayer) formatEvent(seq int, event *session.Event) {
	ts := timeStyle.Render(event.Timestamp.Format("15:04:05"))
	seqNum := seqStyle.Render(fmt.Sprintf("%d", seq))

	switch event.Type {
	case session.EventStageStart:
		r.fmtStageStart(seqNum, ts, event)
	case session.EventStageEnd:
		r.fmtStageEnd(seqNum, ts, event)
	case session.EventToolCall:
		r.fmtToolCall(seqNum, ts, event)
	case session.EventToolResult:
		r.fmtToolResult(seqNum, ts, event)
	case session.EventApproval:
		r.fmtApproval(seqNum, ts, event)
	case session.EventTeardown:
		r.fmtTeardown(seqNum, ts, event)
	default:
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, dimStyle.Render(event.Type))
	}
}

func (r *Replayer) fmtStageStart(seqNum, ts string, event *session.Event) {
	fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts,
		stageStyle(event.Agent).Render(strings.ToUpper(event.Agent)+" START"))
	if r.verbosity >= 1 && event.Content != "" {
		r.printContent(event.Content)
	}
}

func (r *Replayer) fmtStageEnd(seqNum, ts string, event *session.Event) {
	fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
		stageStyle(event.Agent).Render(strings.ToUpper(event.Agent)+" END"),
		dimStyle.Render(fmt.Sprintf("(%dms)", event.DurationMs)))
	if event.Error != "" {
		r.printError(event.Error)
	}
	if r.verbosity >= 1 && event.Content != "" {
		r.printContent(event.Content)
	}
}

func (r *Replayer) fmtToolCall(seqNum, ts string, event *session.Event) {
	fmt.Fprintf(r.output, "%s │ %s │ %s%s %s%s\n", seqNum, ts,
		agentPrefix(event.Agent),
		toolStyle.Render("→"),
		toolStyle.Render(event.Tool),
		argsHint(event.Tool, event.Args))
	if r.verbosity >= 1 && len(event.Args) > 0 {
		r.printArgs(event.Args)
	}
}

func (r *Replayer) fmtToolResult(seqNum, ts string, event *session.Event) {
	mark := successStyle.Render("✓")
	if event.Success != nil && !*event.Success {
		mark = errorStyle.Render("✗")
	}
	fmt.Fprintf(r.output, "%s │ %s │ %s%s %s %s\n", seqNum, ts,
		agentPrefix(event.Agent),
		mark,
		toolStyle.Render(event.Tool),
		dimStyle.Render(fmt.Sprintf("(%dms)", event.DurationMs)))
	if event.Error != "" {
		r.printError(event.Error)
	}
	if r.verbosity >= 2 && event.Content != "" {
		r.printContent(event.Content)
	}
}

func (r *Replayer) fmtApproval(seqNum, ts string, event *session.Event) {
	fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
		approvalStyle.Render("APPROVAL"),
		toolStyle.Render(event.Tool),
		decisionStyle(event.Decision).Render(event.Decision))
}

func (r *Replayer) fmtTeardown(seqNum, ts string, event *session.Event) {
	fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
		warnStyle.Render("TEARDOWN"),
		dimStyle.Render(event.Content))
}

func (r *Replayer) printContent(content string) {
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(r.output, "%s%s\n", continuation, line)
	}
}

func (r *Replayer) printArgs(args map[string]interface{}) {
	data, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return
	}
	r.printContent(dimStyle.Render(string(data)))
}

func (r *Replayer) printError(err string) {
	fmt.Fprintf(r.output, "%s%s %s\n", continuation, errorStyle.Render("error:"), err)
}

// agentPrefix marks events of the verification stage.
func agentPrefix(agent string) string {
	if agent == "" || agent == "build" {
		return ""
	}
	return verifyStyle.Render("["+agent+"]") + " "
}

// argsHint is a one-line summary of the most telling argument of a tool.
func argsHint(tool string, args map[string]interface{}) string {
	if args == nil {
		return ""
	}

	var hint string
	switch tool {
	case "read_file", "write_file", "edit_file", "change_working_directory":
		if p, ok := args["path"].(string); ok {
			hint = truncateHint(p, 80)
		}
	case "bash":
		if cmd, ok := args["cmd"].(string); ok {
			hint = truncateHint(cmd, 60)
		}
		if bg, ok := args["background"].(bool); ok && bg {
			hint += " &"
		}
	default:
		if strings.HasPrefix(tool, "mcp_") {
			if u, ok := args["url"].(string); ok {
				hint = truncateHint(u, 80)
			}
		}
	}

	if hint == "" {
		return ""
	}
	return dimStyle.Render(fmt.Sprintf(" [%s]", hint))
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case session.StatusComplete:
		return successStyle
	case session.StatusFailed:
		return errorStyle
	default:
		return warnStyle
	}
}

func resultStyle(result string) lipgloss.Style {
	switch result {
	case "success":
		return successStyle
	case "fail", "error":
		return errorStyle
	default:
		return valueStyle
	}
}

func decisionStyle(decision string) lipgloss.Style {
	switch decision {
	case "approve":
		return successStyle
	case "deny":
		return errorStyle
	default:
		return warnStyle
	}
}

func planMarker(status string) string {
	switch status {
	case "completed":
		return successStyle.Render("[x]")
	case "in_progress":
		return warnStyle.Render("[~]")
	default:
		return dimStyle.Render("[ ]")
	}
}

func truncateHint(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
