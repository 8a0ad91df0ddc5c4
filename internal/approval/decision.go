// Package approval interposes a human decision on selected tool calls.
package approval

import "strings"

// Decision is the operator's answer to an approval prompt.
type Decision int

const (
	Approve  Decision = iota // run this call
	Deny                     // don't run; ask for new instructions
	SkipTool                 // run, and stop asking for this tool
	SkipAll                  // run, and stop asking for every tool
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case Deny:
		return "deny"
	case SkipTool:
		return "skip_tool"
	case SkipAll:
		return "skip_all"
	default:
		return "unknown"
	}
}

// ParseDecision maps an operator response to a decision. Empty input means
// approve. ok is false for anything unrecognized.
func ParseDecision(response string) (d Decision, ok bool) {
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes", "":
		return Approve, true
	case "n", "no":
		return Deny, true
	case "s", "skip", "skip for this tool":
		return SkipTool, true
	case "sa", "skip all", "skip all approvals", "skip all approvals for all tools":
		return SkipAll, true
	default:
		return 0, false
	}
}
