// Package agents defines the build and verification stages of a cycle.
package agents

import (
	"context"
	"time"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/vinayprograms/devloop/internal/approval"
	"github.com/vinayprograms/devloop/internal/engine"
	"github.com/vinayprograms/devloop/internal/session"
)

// DefaultBuildRetries is the coding agent's per-tool retry budget.
const DefaultBuildRetries = 30

// Coder is the build stage: a coding agent working through the approval
// gateway.
type Coder struct {
	agent   *engine.Agent
	gateway *approval.Gateway
}

// NewCoder creates the build stage. maxRetries <= 0 uses DefaultBuildRetries.
func NewCoder(provider llm.Provider, gateway *approval.Gateway, maxRetries int) *Coder {
	if maxRetries <= 0 {
		maxRetries = DefaultBuildRetries
	}
	return &Coder{
		agent:   engine.New("build", provider, CoderInstructions, maxRetries),
		gateway: gateway,
	}
}

// Build runs the coding agent on the session's task and returns its
// implementation note.
func (c *Coder) Build(ctx context.Context, sess *session.Session) (string, error) {
	sess.AddEvent(session.Event{Type: session.EventStageStart, Agent: c.agent.Name, Content: sess.Task})
	start := time.Now()

	note, err := c.agent.Run(ctx, sess.Task, c.gateway.Bind(sess))

	evt := session.Event{
		Type:       session.EventStageEnd,
		Agent:      c.agent.Name,
		Content:    note,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		evt.Error = err.Error()
	}
	sess.AddEvent(evt)
	return note, err
}
