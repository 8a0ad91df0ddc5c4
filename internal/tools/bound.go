package tools

import (
	"context"
	"time"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/vinayprograms/devloop/internal/session"
)

// Bound is a registry tied to one session. Every call is recorded in the
// session event log.
type Bound struct {
	registry *Registry
	sess     *session.Session
	agent    string
}

// Bind ties r to sess. agent labels the events.
func Bind(r *Registry, sess *session.Session, agent string) *Bound {
	return &Bound{registry: r, sess: sess, agent: agent}
}

// Definitions returns the registry's tool definitions.
func (b *Bound) Definitions() []llm.ToolDef {
	return b.registry.Definitions()
}

// Call executes a tool against the bound session.
func (b *Bound) Call(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	b.sess.AddEvent(session.Event{
		Type:  session.EventToolCall,
		Agent: b.agent,
		Tool:  name,
		Args:  args,
	})

	start := time.Now()
	result, err := b.registry.Execute(ctx, b.sess, name, args)

	success := err == nil
	evt := session.Event{
		Type:       session.EventToolResult,
		Agent:      b.agent,
		Tool:       name,
		Success:    &success,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		evt.Error = err.Error()
	} else {
		evt.Content = truncate(String(result), 2000)
	}
	b.sess.AddEvent(evt)

	return result, err
}

// Session returns the bound session.
func (b *Bound) Session() *session.Session {
	return b.sess
}
