package approval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/devloop/internal/session"
	"github.com/vinayprograms/devloop/internal/tools"
)

// DefaultGated are the tools that need approval unless configured otherwise.
var DefaultGated = []string{"bash", "write_file", "edit_file"}

// DeniedMessage is returned to the model in place of a declined call's result.
const DeniedMessage = "Tool execution declined by user. New instructions: %s"

// Gateway forwards tool calls to a registry after echoing them and, for gated
// tools, obtaining the operator's approval. The gated set only ever shrinks.
type Gateway struct {
	registry *tools.Registry
	prompter Prompter

	mu     sync.Mutex // one pending decision at a time
	gated  map[string]bool
	logger *logging.Logger
}

// NewGateway creates a gateway. A nil gated list uses DefaultGated; an empty
// non-nil list gates nothing.
func NewGateway(registry *tools.Registry, prompter Prompter, gated []string) *Gateway {
	if gated == nil {
		gated = DefaultGated
	}
	set := make(map[string]bool, len(gated))
	for _, name := range gated {
		set[name] = true
	}
	return &Gateway{
		registry: registry,
		prompter: prompter,
		gated:    set,
		logger:   logging.New().WithComponent("approval"),
	}
}

// Gated returns the currently gated tool names, sorted.
func (g *Gateway) Gated() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.gated))
	for name := range g.gated {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsGated reports whether name currently needs approval.
func (g *Gateway) IsGated(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gated[name]
}

// Call echoes the call, asks for approval when the tool is gated and forwards
// it to the registry. A denial is not an error: it returns the operator's
// redirection as the result and the registry is never invoked.
func (g *Gateway) Call(ctx context.Context, sess *session.Session, name string, args map[string]interface{}) (interface{}, error) {
	g.mu.Lock()
	g.prompter.Echo(name, args)

	if g.gated[name] {
		decision, err := g.prompter.Confirm(ctx, name, args)
		if err != nil {
			g.mu.Unlock()
			return nil, fmt.Errorf("approval for %s: %w", name, err)
		}
		g.apply(name, decision)
		sess.AddEvent(session.Event{
			Type:     session.EventApproval,
			Tool:     name,
			Decision: decision.String(),
		})

		if decision == Deny {
			instructions, err := g.prompter.Redirect(ctx)
			g.mu.Unlock()
			if err != nil {
				return nil, fmt.Errorf("instructions after denying %s: %w", name, err)
			}
			g.logger.Info("tool call denied", map[string]interface{}{
				"tool":         name,
				"instructions": instructions,
			})
			return fmt.Sprintf(DeniedMessage, instructions), nil
		}
	}
	g.mu.Unlock()

	return tools.Bind(g.registry, sess, "build").Call(ctx, name, args)
}

// apply updates the gated set for a skip decision. Caller holds g.mu.
func (g *Gateway) apply(name string, d Decision) {
	switch d {
	case SkipTool:
		delete(g.gated, name)
		g.logger.Info("approvals skipped for tool", map[string]interface{}{"tool": name})
	case SkipAll:
		g.gated = make(map[string]bool)
		g.logger.Info("approvals skipped for all tools", nil)
	}
}

// Bind returns a toolbox that routes the session's calls through the gateway.
func (g *Gateway) Bind(sess *session.Session) *Bound {
	return &Bound{gateway: g, sess: sess}
}

// Bound is a Gateway tied to one session.
type Bound struct {
	gateway *Gateway
	sess    *session.Session
}

// Definitions returns the underlying registry's tool definitions.
func (b *Bound) Definitions() []llm.ToolDef {
	return b.gateway.registry.Definitions()
}

// Call routes one tool call through the gateway.
func (b *Bound) Call(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	return b.gateway.Call(ctx, b.sess, name, args)
}
