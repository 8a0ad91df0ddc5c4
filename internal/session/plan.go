package session

import (
	"fmt"
	"strings"
)

// PlanStatus is the state of a plan item.
type PlanStatus string

const (
	PlanActive     PlanStatus = "active"
	PlanInProgress PlanStatus = "in_progress"
	PlanCompleted  PlanStatus = "completed"
)

// PlanItem is one entry in the agent's self-maintained task list.
type PlanItem struct {
	Title  string     `json:"title"`
	Status PlanStatus `json:"status"`
}

// ParseStatus accepts the canonical status names plus the spaced spelling
// "in progress", case-insensitively.
func ParseStatus(s string) (PlanStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return PlanActive, nil
	case "in_progress", "in progress", "in-progress":
		return PlanInProgress, nil
	case "completed":
		return PlanCompleted, nil
	default:
		return "", fmt.Errorf("invalid status %q: must be one of active, in_progress, completed", s)
	}
}
