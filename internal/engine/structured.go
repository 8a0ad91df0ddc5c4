package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/vinayprograms/agentkit/llm"
)

// structuredOutputPrompt is appended to the instructions when a run must end
// in a JSON document.
const structuredOutputPrompt = `

Always respond with a JSON object that's compatible with this schema:

%s

Don't include any text or Markdown fencing before or after.`

// RunStructured is Run for a final answer that must be a JSON object matching
// schema. The answer is decoded into out and checked with validate (which may
// be nil). Answers that fail to decode, omit a key the schema requires, or
// fail validation are sent back to the model as feedback, up to MaxRetries
// times. out is reset before each attempt is decoded.
func (a *Agent) RunStructured(ctx context.Context, prompt string, tb Toolbox, schema map[string]interface{}, out interface{}, validate func() error) error {
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output schema: %w", err)
	}

	ctx, span := startAgentSpan(ctx, a.Name)
	c := a.newConversation(a.Instructions+fmt.Sprintf(structuredOutputPrompt, schemaJSON), prompt, tb)

	var lastOutput string
	err = func() error {
		for attempt := 0; ; attempt++ {
			output, err := c.untilAnswer(ctx)
			if err != nil {
				return err
			}
			lastOutput = output

			problem := decodeOutput(output, schema, out, validate)
			if problem == nil {
				return nil
			}
			if attempt >= a.MaxRetries {
				return fmt.Errorf("%w: invalid structured output after %d attempts: %v",
					ErrRetriesExhausted, attempt+1, problem)
			}

			a.logger.Warn("output rejected", map[string]interface{}{
				"attempt": attempt + 1,
				"error":   problem.Error(),
				"output":  truncateForLog(output, 500),
			})
			c.messages = append(c.messages,
				llm.Message{Role: "assistant", Content: output},
				llm.Message{Role: "user", Content: fmt.Sprintf(
					"Your response could not be accepted: %v\n\nFix the errors and respond again with only the JSON object.", problem)},
			)
		}
	}()

	endAgentSpan(span, lastOutput, err)
	return err
}

// decodeOutput extracts the JSON object from output, checks the schema's
// required top-level keys, decodes it into a zeroed out and validates it.
func decodeOutput(output string, schema map[string]interface{}, out interface{}, validate func() error) error {
	raw := extractJSON(output)
	if raw == "" {
		return fmt.Errorf("no JSON object found in response")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	var missing []string
	for _, key := range requiredKeys(schema) {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	// Nothing from a rejected attempt may leak into this one.
	if v := reflect.ValueOf(out); v.Kind() == reflect.Ptr && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if validate != nil {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// requiredKeys returns the schema's top-level "required" list.
func requiredKeys(schema map[string]interface{}) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []interface{}:
		keys := make([]string, 0, len(req))
		for _, k := range req {
			if s, ok := k.(string); ok {
				keys = append(keys, s)
			}
		}
		return keys
	default:
		return nil
	}
}

// extractJSON returns the first balanced {...} block in content, skipping
// braces inside JSON strings.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

// truncateForLog truncates a string for logging purposes.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
