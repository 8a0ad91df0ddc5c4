package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/mcp"

	"github.com/vinayprograms/devloop/internal/tools"
)

// RemoteTool is one tool offered by an external tool server.
type RemoteTool struct {
	Server      string
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// RemoteTools is a source of externally hosted tools, such as browser
// automation.
type RemoteTools interface {
	Tools() []RemoteTool
	Call(ctx context.Context, server, tool string, args map[string]interface{}) (string, error)
}

// MCPTools adapts an MCP manager to RemoteTools.
type MCPTools struct {
	manager *mcp.Manager
}

// NewMCPTools wraps m. A nil manager offers no tools.
func NewMCPTools(m *mcp.Manager) *MCPTools {
	return &MCPTools{manager: m}
}

// Tools lists every tool of every connected server.
func (m *MCPTools) Tools() []RemoteTool {
	if m.manager == nil {
		return nil
	}
	var out []RemoteTool
	for _, t := range m.manager.AllTools() {
		out = append(out, RemoteTool{
			Server:      t.Server,
			Name:        t.Tool.Name,
			Description: t.Tool.Description,
			InputSchema: t.Tool.InputSchema,
		})
	}
	return out
}

// Call invokes a tool and returns its text content.
func (m *MCPTools) Call(ctx context.Context, server, tool string, args map[string]interface{}) (string, error) {
	if m.manager == nil {
		return "", fmt.Errorf("no MCP manager configured")
	}
	result, err := m.manager.CallTool(ctx, server, tool, args)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	for _, c := range result.Content {
		if c.Type == "text" {
			output.WriteString(c.Text)
		}
	}
	return output.String(), nil
}

// remoteName is the name a remote tool is offered to the model under.
func remoteName(server, tool string) string {
	return fmt.Sprintf("mcp_%s_%s", server, tool)
}

type remoteRef struct {
	server, tool string
}

// verifyToolbox combines the local planning tools with remote tools.
// Failures of remote tools are fed back to the model.
type verifyToolbox struct {
	local  *tools.Bound
	remote RemoteTools
	defs   []llm.ToolDef
	refs   map[string]remoteRef
}

func newVerifyToolbox(local *tools.Bound, remote RemoteTools) *verifyToolbox {
	tb := &verifyToolbox{
		local:  local,
		remote: remote,
		defs:   local.Definitions(),
		refs:   make(map[string]remoteRef),
	}
	if remote != nil {
		for _, t := range remote.Tools() {
			name := remoteName(t.Server, t.Name)
			tb.refs[name] = remoteRef{server: t.Server, tool: t.Name}
			tb.defs = append(tb.defs, llm.ToolDef{
				Name:        name,
				Description: fmt.Sprintf("[MCP:%s] %s", t.Server, t.Description),
				Parameters:  t.InputSchema,
			})
		}
	}
	return tb
}

func (tb *verifyToolbox) Definitions() []llm.ToolDef {
	return tb.defs
}

func (tb *verifyToolbox) Call(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	ref, ok := tb.refs[name]
	if !ok {
		return tb.local.Call(ctx, name, args)
	}
	out, err := tb.remote.Call(ctx, ref.server, ref.tool, args)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, tools.Retryable("%s: %v", name, err)
	}
	return out, nil
}
