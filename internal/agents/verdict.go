package agents

import (
	"fmt"
	"strings"
)

// Verification outcomes.
const (
	ResultSuccess = "success"
	ResultFail    = "fail"
)

// Bug severities.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

var severities = []string{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Bug is one breaking defect found during verification.
type Bug struct {
	Description    string `json:"description" yaml:"description"`
	ReproduceSteps string `json:"reproduce_steps" yaml:"reproduce_steps"`
	Severity       string `json:"severity" yaml:"severity"`
}

// Verdict is the structured result of a verification stage.
type Verdict struct {
	Result       string `json:"result" yaml:"result"`
	BreakingBugs []Bug  `json:"breaking_bugs" yaml:"breaking_bugs"`
	Summary      string `json:"summary" yaml:"summary"`
}

// Passed reports whether the verdict is a success.
func (v *Verdict) Passed() bool {
	return v != nil && v.Result == ResultSuccess
}

// Validate checks the enumerated fields.
func (v *Verdict) Validate() error {
	var problems []string
	if v.Result != ResultSuccess && v.Result != ResultFail {
		problems = append(problems, fmt.Sprintf("result must be %q or %q, got %q", ResultSuccess, ResultFail, v.Result))
	}
	for i, b := range v.BreakingBugs {
		if !validSeverity(b.Severity) {
			problems = append(problems, fmt.Sprintf("breaking_bugs[%d].severity must be one of %s, got %q",
				i, strings.Join(severities, ", "), b.Severity))
		}
		if strings.TrimSpace(b.Description) == "" {
			problems = append(problems, fmt.Sprintf("breaking_bugs[%d].description is required", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func validSeverity(s string) bool {
	for _, sev := range severities {
		if s == sev {
			return true
		}
	}
	return false
}

// VerdictSchema is the JSON schema the verification model must answer with.
func VerdictSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"result", "breaking_bugs", "summary"},
		"properties": map[string]interface{}{
			"result": map[string]interface{}{
				"type":        "string",
				"enum":        []string{ResultSuccess, ResultFail},
				"description": "Overall test result",
			},
			"breaking_bugs": map[string]interface{}{
				"type":        "array",
				"description": "List of critical bugs that break functionality",
				"items": map[string]interface{}{
					"type":     "object",
					"required": []string{"description", "reproduce_steps", "severity"},
					"properties": map[string]interface{}{
						"description": map[string]interface{}{
							"type":        "string",
							"description": "Clear description of the bug",
						},
						"reproduce_steps": map[string]interface{}{
							"type":        "string",
							"description": "Steps to reproduce the bug",
						},
						"severity": map[string]interface{}{
							"type": "string",
							"enum": severities,
						},
					},
				},
			},
			"summary": map[string]interface{}{
				"type":        "string",
				"description": "Brief summary of testing results",
			},
		},
	}
}
