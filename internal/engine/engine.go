// Package engine drives an LLM through a tool-calling loop until it produces
// a final answer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/devloop/internal/tools"
)

// ErrRetriesExhausted means the model kept failing the same tool call, or
// kept producing unparseable output, beyond the agent's retry budget.
var ErrRetriesExhausted = errors.New("retry budget exhausted")

// Toolbox is the set of tools offered to the model.
type Toolbox interface {
	Definitions() []llm.ToolDef
	Call(ctx context.Context, name string, args map[string]interface{}) (interface{}, error)
}

// Agent is a named model configuration: a provider, instructions and a retry
// budget.
type Agent struct {
	Name         string
	Instructions string
	// MaxRetries bounds consecutive retryable failures of any one tool, and
	// separately the number of rejected structured outputs.
	MaxRetries int

	provider llm.Provider
	logger   *logging.Logger

	// OnToolResult, if set, is called after every tool call.
	OnToolResult func(name string, args map[string]interface{}, result interface{}, err error, d time.Duration)
}

// New creates an agent.
func New(name string, provider llm.Provider, instructions string, maxRetries int) *Agent {
	return &Agent{
		Name:         name,
		Instructions: instructions,
		MaxRetries:   maxRetries,
		provider:     provider,
		logger:       logging.New().WithComponent("engine." + name),
	}
}

// Run sends prompt to the model and executes its tool calls until it answers
// without any. Returns the final answer text.
func (a *Agent) Run(ctx context.Context, prompt string, tb Toolbox) (string, error) {
	ctx, span := startAgentSpan(ctx, a.Name)
	c := a.newConversation(a.Instructions, prompt, tb)
	output, err := c.untilAnswer(ctx)
	endAgentSpan(span, output, err)
	return output, err
}

// conversation is one run's message history and retry accounting.
type conversation struct {
	agent       *Agent
	tb          Toolbox
	messages    []llm.Message
	toolDefs    []llm.ToolDef
	toolRetries map[string]int
}

func (a *Agent) newConversation(system, prompt string, tb Toolbox) *conversation {
	var defs []llm.ToolDef
	if tb != nil {
		defs = tb.Definitions()
	}
	return &conversation{
		agent: a,
		tb:    tb,
		messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		toolDefs:    defs,
		toolRetries: make(map[string]int),
	}
}

// untilAnswer loops chat turns until the model replies without tool calls.
func (c *conversation) untilAnswer(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		llmStart := time.Now()
		resp, err := c.agent.provider.Chat(ctx, llm.ChatRequest{
			Messages: c.messages,
			Tools:    c.toolDefs,
		})
		if err != nil {
			return "", fmt.Errorf("LLM error: %w", err)
		}
		c.agent.logger.Debug("llm turn", map[string]interface{}{
			"duration_ms": time.Since(llmStart).Milliseconds(),
			"tool_calls":  len(resp.ToolCalls),
		})

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		c.messages = append(c.messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		// Calls run one at a time in the order the model asked for them.
		for _, tc := range resp.ToolCalls {
			msg, err := c.executeTool(ctx, tc)
			if err != nil {
				return "", err
			}
			c.messages = append(c.messages, msg)
		}
	}
}

// executeTool runs one call and turns its outcome into a tool message. Only
// fatal errors and an exhausted retry budget are returned as errors.
func (c *conversation) executeTool(ctx context.Context, tc llm.ToolCallResponse) (llm.Message, error) {
	a := c.agent
	start := time.Now()

	var result interface{}
	var err error
	if c.tb == nil {
		err = tools.Retryable("unknown tool: %s", tc.Name)
	} else {
		result, err = c.tb.Call(ctx, tc.Name, tc.Args)
	}
	duration := time.Since(start)

	if a.OnToolResult != nil {
		a.OnToolResult(tc.Name, tc.Args, result, err, duration)
	}

	if err != nil {
		if !tools.IsRetryable(err) {
			a.logger.Error("tool failed", map[string]interface{}{
				"tool":  tc.Name,
				"error": err.Error(),
			})
			return llm.Message{}, fmt.Errorf("tool %s: %w", tc.Name, err)
		}

		c.toolRetries[tc.Name]++
		a.logger.Warn("tool retry", map[string]interface{}{
			"tool":    tc.Name,
			"attempt": c.toolRetries[tc.Name],
			"error":   err.Error(),
		})
		if c.toolRetries[tc.Name] > a.MaxRetries {
			return llm.Message{}, fmt.Errorf("%w: tool %s failed %d times, last error: %v",
				ErrRetriesExhausted, tc.Name, c.toolRetries[tc.Name], err)
		}
		return llm.Message{
			Role:       "tool",
			Content:    fmt.Sprintf("Error: %v", err),
			ToolCallID: tc.ID,
		}, nil
	}

	delete(c.toolRetries, tc.Name)
	a.logger.Info("tool executed", map[string]interface{}{
		"tool":        tc.Name,
		"duration_ms": duration.Milliseconds(),
	})
	return llm.Message{
		Role:       "tool",
		Content:    tools.String(result),
		ToolCallID: tc.ID,
	}, nil
}
